// Package storage persists observation records into Postgres and serves
// the read-side queries of the API.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/ports"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// upsertColumns lists every ingestible column in insert order. The
// conflict clause replaces all of them, so re-ingesting an external id
// is a full overwrite, not a merge.
var upsertColumns = []string{
	"external_id",
	"target_name",
	"ra",
	"dec",
	"instrument",
	"filter_name",
	"observed_at",
	"preview_url",
	"data_file_url",
	"description",
	"proposal_id",
	"exposure_time",
	"dataproduct_type",
	"calib_level",
	"wavelength_region",
	"pi_name",
	"target_classification",
	"spectral_resolution",
	"wavelength_min",
	"wavelength_max",
	"dispersion_axis",
	"grating",
	"slit_width",
}

// PostgresRepository implements both the batched upsert engine and the
// read-only query surface over the observations table.
type PostgresRepository struct {
	db        *sql.DB
	batchSize int

	tx      *sql.Tx
	pending int
}

var (
	_ ports.ObservationStore  = (*PostgresRepository)(nil)
	_ ports.ObservationReader = (*PostgresRepository)(nil)
)

// NewPostgresRepository wires a sql.DB implementation. batchSize bounds
// how many upserts share one transaction before an automatic commit.
func NewPostgresRepository(db *sql.DB, batchSize int) *PostgresRepository {
	if batchSize < 1 {
		batchSize = 20
	}
	return &PostgresRepository{db: db, batchSize: batchSize}
}

// EnsureSchema creates the observations table and its secondary indexes.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS observations (
			id BIGSERIAL PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			target_name TEXT,
			ra DOUBLE PRECISION,
			dec DOUBLE PRECISION,
			instrument TEXT,
			filter_name TEXT,
			observed_at TIMESTAMPTZ,
			preview_url TEXT,
			data_file_url TEXT,
			description TEXT,
			proposal_id TEXT,
			exposure_time DOUBLE PRECISION,
			dataproduct_type TEXT,
			calib_level INTEGER,
			wavelength_region TEXT,
			pi_name TEXT,
			target_classification TEXT,
			spectral_resolution DOUBLE PRECISION,
			wavelength_min DOUBLE PRECISION,
			wavelength_max DOUBLE PRECISION,
			dispersion_axis INTEGER,
			grating TEXT,
			slit_width DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_instrument ON observations (instrument)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_target_name ON observations (target_name)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_proposal_id ON observations (proposal_id)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_filter_name ON observations (filter_name)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_dataproduct_type ON observations (dataproduct_type)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_observed_at ON observations (observed_at)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Upsert writes one record inside the current batch transaction,
// opening one if needed. Every batchSize records the transaction
// commits, bounding both its size and the work lost on a crash.
func (r *PostgresRepository) Upsert(ctx context.Context, obs domain.Observation) error {
	if r.tx == nil {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		r.tx = tx
		r.pending = 0
	}

	query, args, err := upsertQuery(obs).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", obs.ExternalID, err)
	}

	r.pending++
	if r.pending >= r.batchSize {
		return r.commit()
	}
	return nil
}

// Flush commits whatever remains of the current batch.
func (r *PostgresRepository) Flush(ctx context.Context) error {
	if r.tx == nil {
		return nil
	}
	return r.commit()
}

// Abort rolls back the uncommitted remainder of the current batch.
// Already-committed batches are untouched.
func (r *PostgresRepository) Abort() error {
	if r.tx == nil {
		return nil
	}
	err := r.tx.Rollback()
	r.tx = nil
	r.pending = 0
	if err != nil {
		return fmt.Errorf("rollback batch: %w", err)
	}
	return nil
}

func (r *PostgresRepository) commit() error {
	err := r.tx.Commit()
	r.tx = nil
	r.pending = 0
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func upsertQuery(obs domain.Observation) sq.InsertBuilder {
	return psql.Insert("observations").
		Columns(upsertColumns...).
		Values(
			obs.ExternalID,
			obs.TargetName,
			obs.RA,
			obs.Dec,
			obs.Instrument,
			obs.FilterName,
			obs.ObservedAt,
			obs.PreviewURL,
			obs.DataFileURL,
			obs.Description,
			obs.ProposalID,
			obs.ExposureTime,
			obs.DataproductType,
			obs.CalibLevel,
			obs.WavelengthRegion,
			obs.PIName,
			obs.TargetClassification,
			obs.SpectralResolution,
			obs.WavelengthMin,
			obs.WavelengthMax,
			obs.DispersionAxis,
			obs.Grating,
			obs.SlitWidth,
		).
		Suffix(`ON CONFLICT (external_id) DO UPDATE SET
			target_name = EXCLUDED.target_name,
			ra = EXCLUDED.ra,
			dec = EXCLUDED.dec,
			instrument = EXCLUDED.instrument,
			filter_name = EXCLUDED.filter_name,
			observed_at = EXCLUDED.observed_at,
			preview_url = EXCLUDED.preview_url,
			data_file_url = EXCLUDED.data_file_url,
			description = EXCLUDED.description,
			proposal_id = EXCLUDED.proposal_id,
			exposure_time = EXCLUDED.exposure_time,
			dataproduct_type = EXCLUDED.dataproduct_type,
			calib_level = EXCLUDED.calib_level,
			wavelength_region = EXCLUDED.wavelength_region,
			pi_name = EXCLUDED.pi_name,
			target_classification = EXCLUDED.target_classification,
			spectral_resolution = EXCLUDED.spectral_resolution,
			wavelength_min = EXCLUDED.wavelength_min,
			wavelength_max = EXCLUDED.wavelength_max,
			dispersion_axis = EXCLUDED.dispersion_axis,
			grating = EXCLUDED.grating,
			slit_width = EXCLUDED.slit_width,
			updated_at = NOW()`)
}
