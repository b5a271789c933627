package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestStringHandlesMaskedValues(t *testing.T) {
	t.Parallel()

	for _, in := range []any{nil, "", "--", "N/A", "null", "  ", "rwxp•••••", map[string]any{}, []any{}} {
		if got := String(in); got != nil {
			t.Fatalf("String(%v) = %q, want nil", in, *got)
		}
	}

	got := String("  NGC 1365 ")
	if got == nil || *got != "NGC 1365" {
		t.Fatalf("String trimmed value mismatch: %v", got)
	}
}

func TestStringUnwrapsWrappedScalars(t *testing.T) {
	t.Parallel()

	got := String(map[string]any{"value": "NIRCam"})
	if got == nil || *got != "NIRCam" {
		t.Fatalf("wrapped string: %v", got)
	}

	got = String([]any{"MIRI"})
	if got == nil || *got != "MIRI" {
		t.Fatalf("single-element array: %v", got)
	}
}

func TestFloatConversions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want float64
	}{
		{42.5, 42.5},
		{"123.25", 123.25},
		{json.Number("7.5"), 7.5},
		{map[string]any{"value": 3.0}, 3.0},
		{int64(9), 9},
	}
	for _, c := range cases {
		got := Float(c.in)
		if got == nil || *got != c.want {
			t.Fatalf("Float(%v) = %v, want %v", c.in, got, c.want)
		}
	}

	for _, in := range []any{nil, "not a number", math.NaN(), math.Inf(1), map[string]any{"other": 1.0}} {
		if got := Float(in); got != nil {
			t.Fatalf("Float(%v) = %v, want nil", in, *got)
		}
	}
}

func TestTimeFromMJD(t *testing.T) {
	t.Parallel()

	got := TimeFromMJD(60000.0)
	if got == nil {
		t.Fatal("expected a timestamp for MJD 60000")
	}
	want := time.Date(2023, time.February, 25, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("MJD 60000 = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}

	halfDay := TimeFromMJD(59945.5)
	wantHalf := time.Date(2023, time.January, 1, 12, 0, 0, 0, time.UTC)
	if halfDay == nil || !halfDay.Equal(wantHalf) {
		t.Fatalf("MJD 59945.5 = %v, want %v", halfDay, wantHalf)
	}

	if got := TimeFromMJD("garbage"); got != nil {
		t.Fatalf("malformed MJD should be nil, got %v", got)
	}
	if got := TimeFromMJD(nil); got != nil {
		t.Fatalf("nil MJD should be nil, got %v", got)
	}
}

func TestWavelengthMicrons(t *testing.T) {
	t.Parallel()

	got := WavelengthMicrons(0.000002)
	if got == nil || math.Abs(*got-2.0) > 1e-9 {
		t.Fatalf("meters input: got %v, want 2.0", got)
	}

	got = WavelengthMicrons(3.5)
	if got == nil || *got != 3.5 {
		t.Fatalf("microns input: got %v, want 3.5", got)
	}

	if got := WavelengthMicrons("--"); got != nil {
		t.Fatalf("masked wavelength should be nil, got %v", got)
	}
}
