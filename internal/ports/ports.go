package ports

import (
	"context"
	"time"

	"ObservationScanner/internal/domain"
)

// ArchiveSource issues catalog and product-listing queries against the
// remote archive. The sole network boundary of the pipeline.
type ArchiveSource interface {
	QueryPartition(ctx context.Context, start, end time.Time) ([]domain.RawObservation, error)
	ListProducts(ctx context.Context, externalID string) ([]domain.RawProduct, error)
}

// ObservationStore is the batched upsert engine. Upserts accumulate in a
// transaction committed every batch-size records; Flush commits the
// remainder and Abort rolls back whatever is uncommitted.
type ObservationStore interface {
	Upsert(ctx context.Context, obs domain.Observation) error
	Flush(ctx context.Context) error
	Abort() error
}

// ObservationFilter narrows read-side listings.
type ObservationFilter struct {
	Instrument      string
	Target          string
	FilterName      string
	ProposalID      string
	DataproductType string
	DateFrom        *time.Time
	DateTo          *time.Time
	Search          string

	// Cone search: all three set or none.
	RA     *float64
	Dec    *float64
	Radius *float64

	Skip  int
	Limit int
}

// Stats aggregates the stored table for the read API.
type Stats struct {
	Total         int64
	ByInstrument  map[string]int64
	ByProductType map[string]int64
	EarliestObs   *time.Time
	LatestObs     *time.Time
}

// ObservationReader is the read-only query surface consumed by the API.
type ObservationReader interface {
	List(ctx context.Context, filter ObservationFilter) ([]domain.Observation, int64, error)
	Get(ctx context.Context, externalID string) (domain.Observation, error)
	Latest(ctx context.Context, limit int) ([]domain.Observation, error)
	Random(ctx context.Context) (domain.Observation, error)
	Instruments(ctx context.Context) ([]string, error)
	Targets(ctx context.Context, limit int) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
}

// CheckpointStore is the durable ledger of time-partitioned progress.
// A run assumes exclusive ownership; there is no concurrent-writer
// protection.
type CheckpointStore interface {
	NextPending(now time.Time) (domain.PartitionKey, bool)
	MarkCompleted(key domain.PartitionKey)
	Reset(key domain.PartitionKey)
	AddIngested(n int)
	TotalIngested() int
	Completed() []domain.PartitionKey
	LastRun() time.Time
	Save() error
}

// Scheduler controls when pipeline invocations execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
