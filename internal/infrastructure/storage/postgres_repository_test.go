package storage

import (
	"strings"
	"testing"
	"time"

	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/ports"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestUpsertQueryShape(t *testing.T) {
	t.Parallel()

	obs := domain.Observation{
		ExternalID: "jw-1",
		TargetName: strPtr("M16"),
		RA:         floatPtr(274.7),
	}

	query, args, err := upsertQuery(obs).ToSql()
	if err != nil {
		t.Fatalf("ToSql error: %v", err)
	}

	if !strings.HasPrefix(query, "INSERT INTO observations") {
		t.Fatalf("unexpected query prefix: %s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (external_id) DO UPDATE SET") {
		t.Fatalf("missing conflict clause: %s", query)
	}
	if !strings.Contains(query, "updated_at = NOW()") {
		t.Fatalf("conflict clause must refresh updated_at: %s", query)
	}
	if len(args) != len(upsertColumns) {
		t.Fatalf("expected %d args, got %d", len(upsertColumns), len(args))
	}
	if !strings.Contains(query, "$23") || strings.Contains(query, "$24") {
		t.Fatalf("placeholder count mismatch: %s", query)
	}

	// Every ingestible column must be replaced on conflict.
	for _, col := range upsertColumns[1:] {
		if !strings.Contains(query, col+" = EXCLUDED."+col) {
			t.Fatalf("column %s not replaced on conflict", col)
		}
	}
}

func TestFilterConditions(t *testing.T) {
	t.Parallel()

	from := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	ra, dec, radius := 150.0, 2.2, 0.5
	filter := ports.ObservationFilter{
		Instrument:      "nircam",
		Target:          "smacs",
		ProposalID:      "2736",
		DataproductType: "image",
		DateFrom:        &from,
		Search:          "deep field",
		RA:              &ra,
		Dec:             &dec,
		Radius:          &radius,
	}

	query, args, err := filterConditions(filter).ToSql()
	if err != nil {
		t.Fatalf("ToSql error: %v", err)
	}

	for _, fragment := range []string{
		"instrument ILIKE ?",
		"target_name ILIKE ?",
		"proposal_id = ?",
		"dataproduct_type = ?",
		"observed_at >= ?",
		"description ILIKE ?",
		"ra IS NOT NULL",
		"dec IS NOT NULL",
		"power((ra - ?) * cos(radians(?)), 2)",
	} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("conditions %q missing %q", query, fragment)
		}
	}

	if args[0] != "%nircam%" {
		t.Fatalf("instrument pattern should be wrapped: %v", args[0])
	}
}

func TestFilterConditionsEmpty(t *testing.T) {
	t.Parallel()

	query, args, err := filterConditions(ports.ObservationFilter{}).ToSql()
	if err != nil {
		t.Fatalf("ToSql error: %v", err)
	}
	if len(args) != 0 {
		t.Fatalf("no filters should produce no args, got %v", args)
	}
	if query != "(1=1)" {
		t.Fatalf("empty filter should collapse to a tautology, got %q", query)
	}
}

func TestListQueryPagination(t *testing.T) {
	t.Parallel()

	builder := psql.Select(selectColumns...).
		From("observations").
		Where(filterConditions(ports.ObservationFilter{})).
		OrderBy("observed_at DESC NULLS LAST", "id DESC").
		Offset(20).
		Limit(10)

	query, _, err := builder.ToSql()
	if err != nil {
		t.Fatalf("ToSql error: %v", err)
	}
	if !strings.Contains(query, "LIMIT 10") || !strings.Contains(query, "OFFSET 20") {
		t.Fatalf("pagination clauses missing: %s", query)
	}
}
