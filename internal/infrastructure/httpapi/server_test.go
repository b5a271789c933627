package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ObservationScanner/internal/domain"
	"ObservationScanner/internal/infrastructure/storage"
	"ObservationScanner/internal/ports"
)

type fakeReader struct {
	observations []domain.Observation
	lastFilter   ports.ObservationFilter
}

func (f *fakeReader) List(ctx context.Context, filter ports.ObservationFilter) ([]domain.Observation, int64, error) {
	f.lastFilter = filter
	return f.observations, int64(len(f.observations)), nil
}

func (f *fakeReader) Get(ctx context.Context, externalID string) (domain.Observation, error) {
	for _, obs := range f.observations {
		if obs.ExternalID == externalID {
			return obs, nil
		}
	}
	return domain.Observation{}, storage.ErrNotFound
}

func (f *fakeReader) Latest(ctx context.Context, limit int) ([]domain.Observation, error) {
	if limit > len(f.observations) {
		limit = len(f.observations)
	}
	return f.observations[:limit], nil
}

func (f *fakeReader) Random(ctx context.Context) (domain.Observation, error) {
	if len(f.observations) == 0 {
		return domain.Observation{}, storage.ErrNotFound
	}
	return f.observations[0], nil
}

func (f *fakeReader) Instruments(ctx context.Context) ([]string, error) {
	return []string{"MIRI", "NIRCam"}, nil
}

func (f *fakeReader) Targets(ctx context.Context, limit int) ([]string, error) {
	return []string{"M16", "SMACS 0723"}, nil
}

func (f *fakeReader) Stats(ctx context.Context) (ports.Stats, error) {
	return ports.Stats{
		Total:         int64(len(f.observations)),
		ByInstrument:  map[string]int64{"NIRCam": 1},
		ByProductType: map[string]int64{"image": 1},
	}, nil
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func testObservation() domain.Observation {
	observed := time.Date(2023, time.July, 12, 3, 0, 0, 0, time.UTC)
	return domain.Observation{
		ID:          1,
		ExternalID:  "jw-1",
		TargetName:  strPtr("SMACS 0723"),
		RA:          floatPtr(110.83),
		Dec:         floatPtr(-73.45),
		Instrument:  strPtr("NIRCam"),
		ObservedAt:  &observed,
		PreviewURL:  strPtr("https://archive/p.jpg"),
		DataFileURL: strPtr("https://archive/d.fits"),
		CreatedAt:   observed,
		UpdatedAt:   observed,
	}
}

func doRequest(t *testing.T, reader ports.ObservationReader, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	server := NewServer(reader, 100, nil)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v: %s", err, rec.Body.String())
		}
	}
	return rec, body
}

func TestListObservations(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{observations: []domain.Observation{testObservation()}}
	rec, body := doRequest(t, reader, "/observations?instrument=nircam&skip=5&limit=20")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if body["total"].(float64) != 1 {
		t.Fatalf("unexpected total: %v", body["total"])
	}
	if reader.lastFilter.Instrument != "nircam" || reader.lastFilter.Skip != 5 || reader.lastFilter.Limit != 20 {
		t.Fatalf("filter not propagated: %+v", reader.lastFilter)
	}

	results := body["results"].([]any)
	first := results[0].(map[string]any)
	if first["obs_id"] != "jw-1" {
		t.Fatalf("unexpected obs_id: %v", first["obs_id"])
	}
	coords := first["coordinates"].(map[string]any)
	if coords["ra"].(float64) != 110.83 {
		t.Fatalf("unexpected ra: %v", coords["ra"])
	}
	if _, ok := first["spectrum_metadata"]; ok {
		t.Fatal("image observation must not expose spectrum metadata")
	}
}

func TestListObservationsLimitClampedToMaxPageSize(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{}
	rec, _ := doRequest(t, reader, "/observations?limit=100000")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if reader.lastFilter.Limit != 100 {
		t.Fatalf("limit should clamp to max page size, got %d", reader.lastFilter.Limit)
	}
}

func TestListObservationsConeSearchValidation(t *testing.T) {
	t.Parallel()

	rec, _ := doRequest(t, &fakeReader{}, "/observations?ra=150.0&dec=2.2")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("partial cone parameters should 400, got %d", rec.Code)
	}

	reader := &fakeReader{}
	rec, _ = doRequest(t, reader, "/observations?ra=150.0&dec=2.2&radius=0.5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if reader.lastFilter.RA == nil || *reader.lastFilter.RA != 150.0 || *reader.lastFilter.Radius != 0.5 {
		t.Fatalf("cone filter not propagated: %+v", reader.lastFilter)
	}
}

func TestGetObservation(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{observations: []domain.Observation{testObservation()}}

	rec, body := doRequest(t, reader, "/observations/jw-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["obs_id"] != "jw-1" {
		t.Fatalf("unexpected body: %v", body)
	}

	rec, _ = doRequest(t, reader, "/observations/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing id should 404, got %d", rec.Code)
	}
}

func TestSpectrumMetadataNests(t *testing.T) {
	t.Parallel()

	obs := testObservation()
	obs.DataproductType = strPtr("spectrum")
	obs.SpectralResolution = floatPtr(1000)
	obs.WavelengthMin = floatPtr(2.0)
	obs.WavelengthMax = floatPtr(5.0)
	reader := &fakeReader{observations: []domain.Observation{obs}}

	_, body := doRequest(t, reader, "/observations/jw-1")
	spectrum, ok := body["spectrum_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("spectrum metadata missing: %v", body)
	}
	wavelength := spectrum["wavelength_range"].(map[string]any)
	if wavelength["unit"] != "microns" || wavelength["min"].(float64) != 2.0 {
		t.Fatalf("unexpected wavelength range: %v", wavelength)
	}
}

func TestAuxiliaryEndpoints(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{observations: []domain.Observation{testObservation()}}

	rec, body := doRequest(t, reader, "/instruments")
	if rec.Code != http.StatusOK || len(body["instruments"].([]any)) != 2 {
		t.Fatalf("instruments: %d %v", rec.Code, body)
	}

	rec, body = doRequest(t, reader, "/stats")
	if rec.Code != http.StatusOK || body["total_observations"].(float64) != 1 {
		t.Fatalf("stats: %d %v", rec.Code, body)
	}

	rec, body = doRequest(t, reader, "/health")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health: %d %v", rec.Code, body)
	}

	rec, body = doRequest(t, reader, "/observations/latest?limit=1")
	if rec.Code != http.StatusOK || body["total"].(float64) != 1 {
		t.Fatalf("latest: %d %v", rec.Code, body)
	}

	rec, body = doRequest(t, reader, "/observations/random")
	if rec.Code != http.StatusOK || body["obs_id"] != "jw-1" {
		t.Fatalf("random: %d %v", rec.Code, body)
	}
}

func TestRandomEmptyTable(t *testing.T) {
	t.Parallel()

	rec, _ := doRequest(t, &fakeReader{}, "/observations/random")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty table should 404, got %d", rec.Code)
	}
}
