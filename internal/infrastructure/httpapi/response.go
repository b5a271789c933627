package httpapi

import (
	"time"

	"ObservationScanner/internal/domain"
)

// observationJSON shapes one record for API consumers. Coordinates nest
// as a pair, and spectrum metadata appears only for spectrum products.
func observationJSON(obs domain.Observation) map[string]any {
	payload := map[string]any{
		"id":          obs.ID,
		"obs_id":      obs.ExternalID,
		"target_name": obs.TargetName,
		"coordinates": map[string]any{
			"ra":  obs.RA,
			"dec": obs.Dec,
		},
		"instrument":            obs.Instrument,
		"filter":                obs.FilterName,
		"observation_date":      formatTime(obs.ObservedAt),
		"preview_url":           obs.PreviewURL,
		"data_file_url":         obs.DataFileURL,
		"description":           obs.Description,
		"proposal_id":           obs.ProposalID,
		"exposure_time":         obs.ExposureTime,
		"dataproduct_type":      obs.DataproductType,
		"calib_level":           obs.CalibLevel,
		"wavelength_region":     obs.WavelengthRegion,
		"pi_name":               obs.PIName,
		"target_classification": obs.TargetClassification,
		"created_at":            obs.CreatedAt.UTC().Format(time.RFC3339),
	}

	if obs.IsSpectrum() {
		spectrum := map[string]any{
			"spectral_resolution": obs.SpectralResolution,
			"dispersion_axis":     obs.DispersionAxis,
			"grating":             obs.Grating,
			"slit_width":          obs.SlitWidth,
		}
		if obs.WavelengthMin != nil || obs.WavelengthMax != nil {
			spectrum["wavelength_range"] = map[string]any{
				"min":  obs.WavelengthMin,
				"max":  obs.WavelengthMax,
				"unit": "microns",
			}
		}
		payload["spectrum_metadata"] = spectrum
	}

	return payload
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
