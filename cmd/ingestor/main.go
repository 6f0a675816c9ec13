package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/automaxprocs/maxprocs"

	appscraping "github.com/regscan/enforcement-ingest/internal/app/scraping"
	"github.com/regscan/enforcement-ingest/internal/config"
	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/internal/infra/broadcast"
	"github.com/regscan/enforcement-ingest/internal/infra/eventbus/kafka"
	"github.com/regscan/enforcement-ingest/internal/infra/fetch"
	enforcementStore "github.com/regscan/enforcement-ingest/internal/infra/storage/enforcement/postgres"
	scrapingStore "github.com/regscan/enforcement-ingest/internal/infra/storage/scraping/postgres"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
	"github.com/regscan/enforcement-ingest/pkg/common/otel"
)

const serviceType = "ingestor"

func main() {
	_, _ = maxprocs.Set()

	var (
		agency      = flag.String("agency", "", "agency to scrape (hse, ea)")
		kind        = flag.String("type", "", "enforcement type (case, notice)")
		actor       = flag.String("actor", "cli", "who requested this run, for the audit trail")
		startPage   = flag.Int("start-page", 0, "first page for page-based agencies")
		maxPages    = flag.Int("max-pages", 0, "page budget for page-based agencies")
		database    = flag.String("database", "", "HSE register database (convictions, appeals, notices)")
		country     = flag.String("country", "", "HSE country filter")
		dateFrom    = flag.String("date-from", "", "range start for date-based agencies (YYYY-MM-DD)")
		dateTo      = flag.String("date-to", "", "range end for date-based agencies (YYYY-MM-DD)")
		actionTypes = flag.String("action-types", "", "comma-separated action types for date-based agencies")
	)
	flag.Parse()

	if *agency == "" || *kind == "" {
		stdlog.Fatal("both -agency and -type are required")
	}

	hostname, err := os.Hostname()
	if err != nil {
		stdlog.Fatalf("failed to get hostname: %v", err)
	}

	var log *logger.Logger

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string { return otel.GetTraceID(ctx) }

	svcName := fmt.Sprintf("INGESTOR-%s", hostname)
	metadata := map[string]string{
		"service":  svcName,
		"hostname": hostname,
		"app":      serviceType,
	}

	log = logger.NewWithMetadata(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents, metadata)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prob := 1.0
	if raw := os.Getenv("OTEL_SAMPLING_RATIO"); raw != "" {
		prob, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			log.Error(ctx, "failed to parse OTEL_SAMPLING_RATIO", "error", err)
			os.Exit(1)
		}
	}
	tp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      serviceType,
		ExporterEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Probability:      prob,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"host.name":        hostname,
		},
		InsecureExporter: true,
	})
	if err != nil {
		log.Error(ctx, "failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer telemetryTeardown(ctx)

	tracer := tp.Tracer(serviceType)

	settings, err := config.Load(os.Getenv("SCRAPER_CONFIG_FILE"))
	if err != nil {
		log.Error(ctx, "failed to load settings", "error", err)
		os.Exit(1)
	}

	pool, err := openDatabase(ctx)
	if err != nil {
		log.Error(ctx, "failed to open db", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := runMigrations(ctx, pool); err != nil {
		log.Error(ctx, "failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "Migrations applied successfully. Starting ingestor...")

	mp := otel.GetMeterProvider()
	metricCollector, err := appscraping.NewScrapeMetrics(mp)
	if err != nil {
		log.Error(ctx, "failed to create metrics collector", "error", err)
		os.Exit(1)
	}

	kafkaCfg := &kafka.Config{
		Brokers:               strings.Split(os.Getenv("KAFKA_BROKERS"), ","),
		SessionLifecycleTopic: os.Getenv("KAFKA_SESSION_LIFECYCLE_TOPIC"),
		RecordProgressTopic:   os.Getenv("KAFKA_RECORD_PROGRESS_TOPIC"),
		ErrorsTopic:           os.Getenv("KAFKA_ERRORS_TOPIC"),
		ClientID:              svcName,
	}
	eventBus, err := kafka.ConnectWithRetry(kafkaCfg, log, metricCollector, tracer)
	if err != nil {
		log.Error(ctx, "failed to connect event bus", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := eventBus.Close(); err != nil {
			log.Error(ctx, "failed to close event bus", "error", err)
		}
	}()

	eventPublisher := kafka.NewDomainEventPublisher(eventBus)
	broadcaster := broadcast.NewProgressBroadcaster(eventPublisher, log)

	sessionRepo := scrapingStore.NewSessionStore(pool, tracer)
	logRepo := scrapingStore.NewProcessingLogStore(pool, tracer)
	recordRepo := enforcementStore.NewRecordStore(pool, tracer)

	manager := appscraping.NewSessionManager(sessionRepo, logRepo, broadcaster, log, metricCollector, tracer)
	pipeline := appscraping.NewUpsertPipeline(recordRepo, log, tracer)
	fetchers := fetch.NewFactory(settings, log, tracer)
	coordinator := appscraping.NewCoordinator(manager, fetchers, pipeline, log, metricCollector, tracer)
	service := appscraping.NewService(appscraping.NewRegistry(), settings, manager, coordinator, sessionRepo, log, tracer)

	handle, err := service.Start(ctx, enforcement.Agency(*agency), enforcement.Type(*kind), rawParams(
		*startPage, *maxPages, *database, *country, *dateFrom, *dateTo, *actionTypes,
	), *actor)
	if err != nil {
		log.Error(ctx, "failed to start session", "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "Session started",
		"session_id", handle.SessionID.String(),
		"strategy", handle.StrategyName)

	done := make(chan struct{})
	go func() {
		service.Wait()
		close(done)
	}()

	select {
	case sig := <-sigCh:
		log.Info(ctx, "Received shutdown signal", "signal", sig)
		service.StopAll()
		service.Wait()
	case <-done:
	}

	status, err := service.Status(ctx, handle.SessionID)
	if err != nil {
		log.Error(ctx, "failed to read final session status", "error", err)
		os.Exit(1)
	}
	log.Info(ctx, "Session finished",
		"session_id", handle.SessionID.String(),
		"status", string(status.Snapshot.Status),
		"progress", fmt.Sprintf("%.1f%%", status.Progress),
		"counters", status.Display.Counters)

	if status.Snapshot.Status == scraping.StatusFailed {
		os.Exit(1)
	}
}

// rawParams assembles the strategy parameter map from CLI flags, leaving out
// anything unset so strategy defaults apply.
func rawParams(startPage, maxPages int, database, country, dateFrom, dateTo, actionTypes string) appscraping.RawParams {
	raw := appscraping.RawParams{}
	if startPage > 0 {
		raw["start_page"] = startPage
	}
	if maxPages > 0 {
		raw["max_pages"] = maxPages
	}
	if database != "" {
		raw["database"] = database
	}
	if country != "" {
		raw["country"] = country
	}
	if dateFrom != "" {
		raw["date_from"] = dateFrom
	}
	if dateTo != "" {
		raw["date_to"] = dateTo
	}
	if actionTypes != "" {
		raw["action_types"] = strings.Split(actionTypes, ",")
	}
	return raw
}

func openDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := envOr("POSTGRES_USER", "postgres")
		password := envOr("POSTGRES_PASSWORD", "postgres")
		host := envOr("POSTGRES_HOST", "postgres")
		dbname := envOr("POSTGRES_DB", "enforcement")

		dsn = fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable",
			user, password, host, dbname)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("could not parse db config: %w", err)
	}
	poolCfg.MinConns = 2
	poolCfg.MaxConns = 10
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// runMigrations uses golang-migrate to apply all up migrations from
// db/migrations using a connection borrowed from the pool.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire connection: %w", err)
	}
	defer conn.Release()

	db := stdlib.OpenDBFromPool(pool)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("could not create pgx driver: %w", err)
	}

	migrationsPath := envOr("MIGRATIONS_PATH", "file://db/migrations")
	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}
