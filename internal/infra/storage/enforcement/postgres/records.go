// Package postgres persists enriched enforcement records.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/infra/storage"
)

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

var _ enforcement.RecordRepository = (*RecordStore)(nil)

// RecordStore provides persistent storage for enforcement records in postgres.
// Natural-key collisions surface as enforcement.ErrDuplicateRecord so the
// upsert pipeline can classify the record as existing.
type RecordStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewRecordStore creates a record store using the provided connection pool.
func NewRecordStore(pool *pgxpool.Pool, tracer trace.Tracer) *RecordStore {
	return &RecordStore{pool: pool, tracer: tracer}
}

// Create persists a new enforcement record and stamps LastSyncedAt. A
// collision on (agency, natural_key) returns a wrapped ErrDuplicateRecord.
func (s *RecordStore) Create(ctx context.Context, record *enforcement.Record) error {
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.create_record", []attribute.KeyValue{
		attribute.String("agency", string(record.Agency)),
		attribute.String("natural_key", record.NaturalKey),
	}, func(ctx context.Context) error {
		now := time.Now().UTC()
		_, err := s.pool.Exec(ctx, `
			INSERT INTO enforcement_records (
				id, agency, enforcement_type, natural_key, subject_name, date,
				action_type, monetary_amount, description, region, detail_url, last_synced_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			record.ID,
			string(record.Agency),
			string(record.EnforcementType),
			record.NaturalKey,
			record.SubjectName,
			record.Date,
			string(record.ActionType),
			record.MonetaryAmount,
			record.Description,
			record.Region,
			record.DetailURL,
			now,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("record %s/%s: %w", record.Agency, record.NaturalKey, enforcement.ErrDuplicateRecord)
			}
			return fmt.Errorf("creating record: %w", err)
		}
		record.LastSyncedAt = now
		return nil
	})
}

// FindByNaturalKey retrieves a record by its regulator-assigned identifier.
// Returns nil without error when no record exists.
func (s *RecordStore) FindByNaturalKey(ctx context.Context, agency enforcement.Agency, naturalKey string) (*enforcement.Record, error) {
	var record *enforcement.Record
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.find_record", []attribute.KeyValue{
		attribute.String("agency", string(agency)),
		attribute.String("natural_key", naturalKey),
	}, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx, `
			SELECT id, agency, enforcement_type, natural_key, subject_name, date,
			       action_type, monetary_amount, description, region, detail_url, last_synced_at
			FROM enforcement_records
			WHERE agency = $1 AND natural_key = $2`,
			string(agency), naturalKey)

		var (
			r                                 enforcement.Record
			agencyCol, typeCol, actionTypeCol string
		)
		err := row.Scan(
			&r.ID, &agencyCol, &typeCol, &r.NaturalKey, &r.SubjectName, &r.Date,
			&actionTypeCol, &r.MonetaryAmount, &r.Description, &r.Region, &r.DetailURL, &r.LastSyncedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("finding record: %w", err)
		}
		r.Agency = enforcement.Agency(agencyCol)
		r.EnforcementType = enforcement.Type(typeCol)
		r.ActionType = enforcement.ActionType(actionTypeCol)
		record = &r
		return nil
	})
	return record, err
}

// TouchLastSynced refreshes the record's last-synced timestamp.
func (s *RecordStore) TouchLastSynced(ctx context.Context, id uuid.UUID) error {
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.touch_record", []attribute.KeyValue{
		attribute.String("record_id", id.String()),
	}, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx,
			`UPDATE enforcement_records SET last_synced_at = now() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("touching record: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("record %s not found", id)
		}
		return nil
	})
}
