package normalize

import (
	"testing"
	"time"

	"ObservationScanner/internal/domain"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestObservationFromRow(t *testing.T) {
	t.Parallel()

	row := map[string]any{
		"obs_id":            "jw02736-o001",
		"target_name":       "SMACS 0723",
		"s_ra":              110.83,
		"s_dec":             -73.45,
		"instrument_name":   "NIRCam",
		"filters":           "F200W",
		"t_min":             60000.0,
		"proposal_id":       "2736",
		"t_exptime":         "1245.6",
		"obs_title":         "Early Release Observations",
		"dataproduct_type":  "image",
		"calib_level":       3.0,
		"wavelength_region": "Infrared",
		"proposal_pi":       "Pontoppidan",
	}

	raw, ok := ObservationFromRow(row)
	if !ok {
		t.Fatal("expected row to parse")
	}
	if raw.ExternalID != "jw02736-o001" {
		t.Fatalf("unexpected id: %s", raw.ExternalID)
	}
	if raw.RA == nil || *raw.RA != 110.83 {
		t.Fatalf("unexpected ra: %v", raw.RA)
	}
	if raw.ExposureTime == nil || *raw.ExposureTime != 1245.6 {
		t.Fatalf("string-encoded exposure should parse: %v", raw.ExposureTime)
	}
	if raw.CalibLevel == nil || *raw.CalibLevel != 3 {
		t.Fatalf("unexpected calib level: %v", raw.CalibLevel)
	}
}

func TestObservationFromRowIDAliases(t *testing.T) {
	t.Parallel()

	raw, ok := ObservationFromRow(map[string]any{"obsid": "alias-1"})
	if !ok || raw.ExternalID != "alias-1" {
		t.Fatalf("obsid alias not honored: %v %v", raw.ExternalID, ok)
	}

	if _, ok := ObservationFromRow(map[string]any{"target_name": "orphan"}); ok {
		t.Fatal("row without identifier must not parse")
	}
	if _, ok := ObservationFromRow(map[string]any{"obs_id": "--"}); ok {
		t.Fatal("masked identifier must not parse")
	}
}

func TestBuildObservationGatesSpectrumFields(t *testing.T) {
	t.Parallel()

	raw := domain.RawObservation{
		ExternalID:         "jw01345-o012",
		DataproductType:    strPtr("image"),
		SpectralResolution: floatPtr(1000),
		EmMin:              floatPtr(0.000002),
		EmMax:              floatPtr(0.000005),
		Grating:            strPtr("G235H"),
	}

	obs := BuildObservation(raw, strPtr("http://p"), strPtr("http://d"))
	if obs.SpectralResolution != nil || obs.WavelengthMin != nil || obs.Grating != nil {
		t.Fatal("spectrum fields must be null for non-spectrum products")
	}

	raw.DataproductType = strPtr("spectrum")
	obs = BuildObservation(raw, nil, strPtr("http://d"))
	if obs.SpectralResolution == nil || *obs.SpectralResolution != 1000 {
		t.Fatalf("spectral resolution lost: %v", obs.SpectralResolution)
	}
	if obs.WavelengthMin == nil || *obs.WavelengthMin != 2.0 {
		t.Fatalf("em_min should convert to microns: %v", obs.WavelengthMin)
	}
	if obs.WavelengthMax == nil || *obs.WavelengthMax != 5.0 {
		t.Fatalf("em_max should convert to microns: %v", obs.WavelengthMax)
	}
}

func TestBuildObservationConvertsMJD(t *testing.T) {
	t.Parallel()

	raw := domain.RawObservation{ExternalID: "x", TMinMJD: floatPtr(60000.0)}
	obs := BuildObservation(raw, nil, nil)
	want := time.Date(2023, time.February, 25, 0, 0, 0, 0, time.UTC)
	if obs.ObservedAt == nil || !obs.ObservedAt.Equal(want) {
		t.Fatalf("observed_at = %v, want %v", obs.ObservedAt, want)
	}
}
