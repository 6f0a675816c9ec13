package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/internal/infra/storage"
)

var _ scraping.ProcessingLogRepository = (*ProcessingLogStore)(nil)

// ProcessingLogStore provides persistent storage for per-boundary audit logs.
type ProcessingLogStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewProcessingLogStore creates a processing log store using the provided
// connection pool.
func NewProcessingLogStore(pool *pgxpool.Pool, tracer trace.Tracer) *ProcessingLogStore {
	return &ProcessingLogStore{pool: pool, tracer: tracer}
}

// Save inserts a processing log entry. Logs are append-only.
func (s *ProcessingLogStore) Save(ctx context.Context, log *scraping.ProcessingLog) error {
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.save_processing_log", []attribute.KeyValue{
		attribute.String("session_id", log.SessionID().String()),
		attribute.Int("boundary_index", log.BoundaryIndex()),
	}, func(ctx context.Context) error {
		creationErrors, err := json.Marshal(log.CreationErrors())
		if err != nil {
			return fmt.Errorf("marshaling creation errors: %w", err)
		}
		items, err := json.Marshal(log.Items())
		if err != nil {
			return fmt.Errorf("marshaling items: %w", err)
		}

		_, err = s.pool.Exec(ctx, `
			INSERT INTO processing_logs (
				id, session_id, agency, boundary_index,
				items_found, items_created, items_existing, items_failed,
				creation_errors, items, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			log.ID(),
			log.SessionID(),
			string(log.Agency()),
			log.BoundaryIndex(),
			log.ItemsFound(),
			log.ItemsCreated(),
			log.ItemsExisting(),
			log.ItemsFailed(),
			creationErrors,
			items,
			log.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("saving processing log: %w", err)
		}
		return nil
	})
}

// ListBySession returns every log for the session in boundary order.
func (s *ProcessingLogStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*scraping.ProcessingLog, error) {
	var logs []*scraping.ProcessingLog
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.list_processing_logs", []attribute.KeyValue{
		attribute.String("session_id", sessionID.String()),
	}, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT id, session_id, agency, boundary_index,
			       items_found, items_created, items_existing, items_failed,
			       creation_errors, items, created_at
			FROM processing_logs
			WHERE session_id = $1
			ORDER BY boundary_index`,
			sessionID)
		if err != nil {
			return fmt.Errorf("querying processing logs: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id, sid                                              uuid.UUID
				agency                                               string
				boundaryIndex                                        int
				itemsFound, itemsCreated, itemsExisting, itemsFailed int
				creationErrorsRaw, itemsRaw                          []byte
				createdAt                                            time.Time
			)
			if err := rows.Scan(
				&id, &sid, &agency, &boundaryIndex,
				&itemsFound, &itemsCreated, &itemsExisting, &itemsFailed,
				&creationErrorsRaw, &itemsRaw, &createdAt,
			); err != nil {
				return fmt.Errorf("scanning processing log row: %w", err)
			}

			var creationErrors []scraping.ItemError
			if err := json.Unmarshal(creationErrorsRaw, &creationErrors); err != nil {
				return fmt.Errorf("unmarshaling creation errors: %w", err)
			}
			var items []scraping.ItemSummary
			if err := json.Unmarshal(itemsRaw, &items); err != nil {
				return fmt.Errorf("unmarshaling items: %w", err)
			}

			logs = append(logs, scraping.ReconstructProcessingLog(
				id, sid, enforcement.Agency(agency), boundaryIndex,
				itemsFound, itemsCreated, itemsExisting, itemsFailed,
				creationErrors, items, createdAt,
			))
		}
		return rows.Err()
	})
	return logs, err
}
