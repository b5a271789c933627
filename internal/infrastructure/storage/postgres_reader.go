package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/ports"
)

// ErrNotFound marks a lookup for an external id that is not stored.
var ErrNotFound = errors.New("observation not found")

var selectColumns = []string{
	"id",
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
	"created_at",
	"updated_at",
}

// List returns a filtered page plus the total match count.
func (r *PostgresRepository) List(ctx context.Context, filter ports.ObservationFilter) ([]domain.Observation, int64, error) {
	where := filterConditions(filter)

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("observations").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count observations: %w", err)
	}

	builder := psql.Select(selectColumns...).
		From("observations").
		Where(where).
		OrderBy("observed_at DESC NULLS LAST", "id DESC").
		Offset(uint64(filter.Skip))
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	observations, err := r.queryObservations(ctx, builder)
	if err != nil {
		return nil, 0, err
	}
	return observations, total, nil
}

// Get looks up one record by external id.
func (r *PostgresRepository) Get(ctx context.Context, externalID string) (domain.Observation, error) {
	builder := psql.Select(selectColumns...).
		From("observations").
		Where(sq.Eq{"external_id": externalID})

	query, args, err := builder.ToSql()
	if err != nil {
		return domain.Observation{}, fmt.Errorf("build get: %w", err)
	}

	obs, err := scanObservation(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, ErrNotFound
	}
	if err != nil {
		return domain.Observation{}, fmt.Errorf("get observation: %w", err)
	}
	return obs, nil
}

// Latest returns the most recently observed records.
func (r *PostgresRepository) Latest(ctx context.Context, limit int) ([]domain.Observation, error) {
	builder := psql.Select(selectColumns...).
		From("observations").
		OrderBy("observed_at DESC NULLS LAST", "id DESC").
		Limit(uint64(limit))
	return r.queryObservations(ctx, builder)
}

// Random returns one uniformly chosen record.
func (r *PostgresRepository) Random(ctx context.Context) (domain.Observation, error) {
	builder := psql.Select(selectColumns...).
		From("observations").
		OrderBy("random()").
		Limit(1)

	query, args, err := builder.ToSql()
	if err != nil {
		return domain.Observation{}, fmt.Errorf("build random: %w", err)
	}

	obs, err := scanObservation(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Observation{}, ErrNotFound
	}
	if err != nil {
		return domain.Observation{}, fmt.Errorf("random observation: %w", err)
	}
	return obs, nil
}

// Instruments returns the distinct non-null instrument names.
func (r *PostgresRepository) Instruments(ctx context.Context) ([]string, error) {
	return r.distinctStrings(ctx, "instrument", 0)
}

// Targets returns distinct observed target names.
func (r *PostgresRepository) Targets(ctx context.Context, limit int) ([]string, error) {
	return r.distinctStrings(ctx, "target_name", limit)
}

// Stats aggregates the stored table.
func (r *PostgresRepository) Stats(ctx context.Context) (ports.Stats, error) {
	stats := ports.Stats{
		ByInstrument:  map[string]int64{},
		ByProductType: map[string]int64{},
	}

	var earliest, latest sql.NullTime
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(observed_at), MAX(observed_at) FROM observations`)
	if err := row.Scan(&stats.Total, &earliest, &latest); err != nil {
		return ports.Stats{}, fmt.Errorf("stats totals: %w", err)
	}
	if earliest.Valid {
		t := earliest.Time.UTC()
		stats.EarliestObs = &t
	}
	if latest.Valid {
		t := latest.Time.UTC()
		stats.LatestObs = &t
	}

	if err := r.groupCounts(ctx, "instrument", stats.ByInstrument); err != nil {
		return ports.Stats{}, err
	}
	if err := r.groupCounts(ctx, "dataproduct_type", stats.ByProductType); err != nil {
		return ports.Stats{}, err
	}
	return stats, nil
}

func (r *PostgresRepository) groupCounts(ctx context.Context, column string, into map[string]int64) error {
	builder := psql.Select(column, "COUNT(*)").
		From("observations").
		Where(column + " IS NOT NULL").
		GroupBy(column)

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build group by %s: %w", column, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan group row: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}

func (r *PostgresRepository) distinctStrings(ctx context.Context, column string, limit int) ([]string, error) {
	builder := psql.Select("DISTINCT " + column).
		From("observations").
		Where(column + " IS NOT NULL").
		OrderBy(column)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build distinct %s: %w", column, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		if v.Valid && v.String != "" {
			values = append(values, v.String)
		}
	}
	return values, rows.Err()
}

func (r *PostgresRepository) queryObservations(ctx context.Context, builder sq.SelectBuilder) ([]domain.Observation, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// filterConditions translates the filter into SQL predicates. Substring
// filters match case-insensitively, mirroring the read API contract.
func filterConditions(filter ports.ObservationFilter) sq.And {
	conditions := sq.And{}

	if filter.Instrument != "" {
		conditions = append(conditions, sq.ILike{"instrument": "%" + filter.Instrument + "%"})
	}
	if filter.Target != "" {
		conditions = append(conditions, sq.ILike{"target_name": "%" + filter.Target + "%"})
	}
	if filter.FilterName != "" {
		conditions = append(conditions, sq.ILike{"filter_name": "%" + filter.FilterName + "%"})
	}
	if filter.ProposalID != "" {
		conditions = append(conditions, sq.Eq{"proposal_id": filter.ProposalID})
	}
	if filter.DataproductType != "" {
		conditions = append(conditions, sq.Eq{"dataproduct_type": filter.DataproductType})
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, sq.GtOrEq{"observed_at": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		conditions = append(conditions, sq.Lt{"observed_at": *filter.DateTo})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conditions = append(conditions, sq.Or{
			sq.ILike{"target_name": pattern},
			sq.ILike{"description": pattern},
			sq.ILike{"external_id": pattern},
		})
	}
	if filter.RA != nil && filter.Dec != nil && filter.Radius != nil {
		// Small-angle planar distance in degrees; adequate for the
		// radii the API allows.
		conditions = append(conditions,
			sq.NotEq{"ra": nil},
			sq.NotEq{"dec": nil},
			sq.Expr(
				"power((ra - ?) * cos(radians(?)), 2) + power(dec - ?, 2) <= power(?, 2)",
				*filter.RA, *filter.Dec, *filter.Dec, *filter.Radius,
			),
		)
	}

	return conditions
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (domain.Observation, error) {
	var (
		obs                  domain.Observation
		targetName           sql.NullString
		ra, dec              sql.NullFloat64
		instrument           sql.NullString
		filterName           sql.NullString
		observedAt           sql.NullTime
		previewURL           sql.NullString
		dataFileURL          sql.NullString
		description          sql.NullString
		proposalID           sql.NullString
		exposureTime         sql.NullFloat64
		dataproductType      sql.NullString
		calibLevel           sql.NullInt64
		wavelengthRegion     sql.NullString
		piName               sql.NullString
		targetClassification sql.NullString
		spectralResolution   sql.NullFloat64
		wavelengthMin        sql.NullFloat64
		wavelengthMax        sql.NullFloat64
		dispersionAxis       sql.NullInt64
		grating              sql.NullString
		slitWidth            sql.NullFloat64
	)

	err := row.Scan(
		&obs.ID,
		&obs.ExternalID,
		&targetName,
		&ra,
		&dec,
		&instrument,
		&filterName,
		&observedAt,
		&previewURL,
		&dataFileURL,
		&description,
		&proposalID,
		&exposureTime,
		&dataproductType,
		&calibLevel,
		&wavelengthRegion,
		&piName,
		&targetClassification,
		&spectralResolution,
		&wavelengthMin,
		&wavelengthMax,
		&dispersionAxis,
		&grating,
		&slitWidth,
		&obs.CreatedAt,
		&obs.UpdatedAt,
	)
	if err != nil {
		return domain.Observation{}, err
	}

	obs.TargetName = nullString(targetName)
	obs.RA = nullFloat(ra)
	obs.Dec = nullFloat(dec)
	obs.Instrument = nullString(instrument)
	obs.FilterName = nullString(filterName)
	obs.ObservedAt = nullTime(observedAt)
	obs.PreviewURL = nullString(previewURL)
	obs.DataFileURL = nullString(dataFileURL)
	obs.Description = nullString(description)
	obs.ProposalID = nullString(proposalID)
	obs.ExposureTime = nullFloat(exposureTime)
	obs.DataproductType = nullString(dataproductType)
	obs.CalibLevel = nullInt(calibLevel)
	obs.WavelengthRegion = nullString(wavelengthRegion)
	obs.PIName = nullString(piName)
	obs.TargetClassification = nullString(targetClassification)
	obs.SpectralResolution = nullFloat(spectralResolution)
	obs.WavelengthMin = nullFloat(wavelengthMin)
	obs.WavelengthMax = nullFloat(wavelengthMax)
	obs.DispersionAxis = nullInt(dispersionAxis)
	obs.Grating = nullString(grating)
	obs.SlitWidth = nullFloat(slitWidth)
	return obs, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
