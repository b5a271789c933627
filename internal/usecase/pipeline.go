package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/normalize"
	"ObservationScanner/internal/ports"
	"ObservationScanner/internal/resolve"
)

// runState tracks where a pipeline invocation is in its lifecycle.
type runState int

const (
	stateIdle runState = iota
	stateSelectingPartition
	stateFetching
	stateResolving
	stateUpserting
	stateCommitting
	stateDone
	stateAborted
)

func (s runState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSelectingPartition:
		return "selecting_partition"
	case stateFetching:
		return "fetching"
	case stateResolving:
		return "resolving"
	case stateUpserting:
		return "upserting"
	case stateCommitting:
		return "committing"
	case stateDone:
		return "done"
	case stateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source     ports.ArchiveSource
	Store      ports.ObservationStore
	Checkpoint ports.CheckpointStore
	Resolver   *resolve.Resolver
	Logger     *slog.Logger
	Now        func() time.Time
}

// Pipeline implements the partition-ingestion workflow: one partition
// per Run, sequential rows, batched writes, checkpoint on success.
type Pipeline struct {
	source     ports.ArchiveSource
	store      ports.ObservationStore
	checkpoint ports.CheckpointStore
	resolver   *resolve.Resolver
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	resolver := deps.Resolver
	if resolver == nil {
		resolver = resolve.New("")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		source:     deps.Source,
		store:      deps.Store,
		checkpoint: deps.Checkpoint,
		resolver:   resolver,
		logger:     deps.Logger,
		now:        now,
	}
}

// RunResult summarizes one invocation.
type RunResult struct {
	Partition    domain.PartitionKey
	Processed    int
	Ingested     int
	Skipped      int
	BackfillDone bool
}

// Run ingests the next pending partition. A fatal fetch or commit error
// aborts the run with the partition left pending; per-row failures only
// skip that row.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	logger := p.logWith("run_id", uuid.NewString())
	state := stateSelectingPartition

	key, ok := p.checkpoint.NextPending(p.now())
	if !ok {
		logger.Info("backfill complete, nothing pending")
		return RunResult{BackfillDone: true}, nil
	}
	result := RunResult{Partition: key}
	logger = logger.With("partition", string(key))

	start, end, err := key.Window()
	if err != nil {
		return result, fmt.Errorf("partition window: %w", err)
	}

	state = stateFetching
	rows, err := p.source.QueryPartition(ctx, start, end)
	if err != nil {
		state = stateAborted
		logger.Error("catalog query failed, partition left pending", "state", state.String(), "error", err)
		return result, fmt.Errorf("fetch partition %s: %w", key, err)
	}
	logger.Info("partition fetched", "rows", len(rows))

	for _, raw := range rows {
		result.Processed++

		if raw.ExternalID == "" {
			result.Skipped++
			continue
		}

		state = stateResolving
		obs, outcome, err := p.resolveRow(ctx, raw)
		switch outcome {
		case rowSkipped:
			result.Skipped++
			logger.Debug("row skipped", "external_id", raw.ExternalID, "reason", err)
			continue
		case rowFatal:
			state = stateAborted
			_ = p.store.Abort()
			logger.Error("run aborted", "state", state.String(), "external_id", raw.ExternalID, "error", err)
			return result, err
		}

		state = stateUpserting
		if err := p.store.Upsert(ctx, obs); err != nil {
			state = stateAborted
			_ = p.store.Abort()
			logger.Error("upsert failed, run aborted", "state", state.String(), "external_id", raw.ExternalID, "error", err)
			return result, fmt.Errorf("upsert %s: %w", raw.ExternalID, err)
		}
		result.Ingested++
	}

	state = stateCommitting
	if err := p.store.Flush(ctx); err != nil {
		state = stateAborted
		_ = p.store.Abort()
		logger.Error("final commit failed, partition left pending", "state", state.String(), "error", err)
		return result, fmt.Errorf("flush partition %s: %w", key, err)
	}

	p.checkpoint.MarkCompleted(key)
	p.checkpoint.AddIngested(result.Ingested)
	if err := p.checkpoint.Save(); err != nil {
		return result, fmt.Errorf("save checkpoint: %w", err)
	}

	state = stateDone
	logger.Info("partition completed",
		"state", state.String(),
		"processed", result.Processed,
		"ingested", result.Ingested,
		"skipped", result.Skipped,
		"total_ingested", p.checkpoint.TotalIngested(),
	)
	return result, nil
}

// RunAll drains pending partitions until the backfill completes or a
// run aborts.
func (p *Pipeline) RunAll(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := p.Run(ctx)
		if err != nil {
			return err
		}
		if result.BackfillDone {
			return nil
		}
	}
}

// rowOutcome is the explicit per-row verdict interpreted by Run.
type rowOutcome int

const (
	rowIngestible rowOutcome = iota
	rowSkipped
	rowFatal
)

// resolveRow fetches the product listing for one observation and
// resolves its assets. Listing failures and unusable listings skip only
// this row.
func (p *Pipeline) resolveRow(ctx context.Context, raw domain.RawObservation) (domain.Observation, rowOutcome, error) {
	products, err := p.source.ListProducts(ctx, raw.ExternalID)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Observation{}, rowFatal, err
		}
		return domain.Observation{}, rowSkipped, err
	}

	assets, err := p.resolver.Resolve(products)
	if err != nil {
		return domain.Observation{}, rowSkipped, err
	}

	return normalize.BuildObservation(raw, assets.PreviewURL, assets.DataFileURL), rowIngestible, nil
}

func (p *Pipeline) logWith(args ...any) *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.logger.With(args...)
}
