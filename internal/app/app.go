package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"ObservationScanner/internal/config"
	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/infrastructure/archive"
	"ObservationScanner/internal/infrastructure/checkpoint"
	"ObservationScanner/internal/infrastructure/scheduler"
	"ObservationScanner/internal/infrastructure/storage"
	"ObservationScanner/internal/logging"
	"ObservationScanner/internal/resolve"
	"ObservationScanner/internal/retry"
	"ObservationScanner/internal/usecase"
)

// Application wires configuration into the ingestion pipeline and its
// lifecycle.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	repository *storage.PostgresRepository
	checkpoint *checkpoint.FileStore
	pipeline   *usecase.Pipeline
	epoch      domain.PartitionKey
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	epoch, err := domain.ParsePartitionKey(cfg.Ingest.Epoch)
	if err != nil {
		return nil, fmt.Errorf("ingest epoch: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repository := storage.NewPostgresRepository(db, cfg.Ingest.BatchSize)
	checkpointStore := checkpoint.NewFileStore(
		cfg.Checkpoint.Path, epoch, baseLogger.With("component", "checkpoint"))

	policy := retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		Multiplier:   cfg.Retry.Multiplier,
	}
	source := archive.NewClient(cfg.Archive, policy, nil, baseLogger.With("component", "archive"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Store:      repository,
		Checkpoint: checkpointStore,
		Resolver:   resolve.New(cfg.Archive.DownloadBase),
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		repository: repository,
		checkpoint: checkpointStore,
		pipeline:   pipeline,
		epoch:      epoch,
	}, nil
}

// Run executes the ingestion job: one partition per invocation, or the
// whole remaining backfill when all is set.
func (a *Application) Run(ctx context.Context, all bool) error {
	if err := a.repository.EnsureSchema(ctx); err != nil {
		return err
	}

	if all {
		return a.pipeline.RunAll(ctx)
	}

	_, err := a.pipeline.Run(ctx)
	return err
}

// RunDaemon re-invokes the pipeline on the configured interval until
// ctx is cancelled.
func (a *Application) RunDaemon(ctx context.Context) error {
	if err := a.repository.EnsureSchema(ctx); err != nil {
		return err
	}

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval)
	runner := usecase.NewScheduler(driver, a.pipeline)
	if err := runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return runner.Stop(stopCtx)
}

// Progress renders the backfill breakdown from the checkpoint ledger.
func (a *Application) Progress() string {
	return usecase.ProgressReport(a.checkpoint, a.epoch, time.Now().UTC())
}

// Close releases the database handle.
func (a *Application) Close() error {
	return a.db.Close()
}
