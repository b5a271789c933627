package normalize

import (
	"ObservationScanner/internal/domain"
)

// ObservationFromRow parses one loose catalog row into an explicit raw
// struct. Returns false when the row carries no usable identifier; the
// archive is inconsistent about the id column name, so the known aliases
// are tried in order.
func ObservationFromRow(row map[string]any) (domain.RawObservation, bool) {
	var externalID string
	for _, key := range []string{"obs_id", "obsid", "obs"} {
		if id := String(row[key]); id != nil && *id != "" {
			externalID = *id
			break
		}
	}
	if externalID == "" {
		return domain.RawObservation{}, false
	}

	return domain.RawObservation{
		ExternalID:           externalID,
		TargetName:           String(row["target_name"]),
		RA:                   Float(row["s_ra"]),
		Dec:                  Float(row["s_dec"]),
		Instrument:           String(row["instrument_name"]),
		FilterName:           String(row["filters"]),
		TMinMJD:              Float(row["t_min"]),
		ProposalID:           String(row["proposal_id"]),
		ExposureTime:         Float(row["t_exptime"]),
		Description:          String(row["obs_title"]),
		DataproductType:      String(row["dataproduct_type"]),
		CalibLevel:           Int(row["calib_level"]),
		WavelengthRegion:     String(row["wavelength_region"]),
		PIName:               String(row["proposal_pi"]),
		TargetClassification: String(row["target_classification"]),
		SpectralResolution:   Float(row["em_res_power"]),
		EmMin:                Float(row["em_min"]),
		EmMax:                Float(row["em_max"]),
		Grating:              String(row["grating"]),
		DispersionAxis:       Int(row["dispersion_axis"]),
		SlitWidth:            Float(row["slit_width"]),
	}, true
}

// ProductFromRow parses one loose product-listing row into a candidate
// descriptor. A row missing every field still parses; the resolver
// filters unusable candidates.
func ProductFromRow(row map[string]any) domain.RawProduct {
	var p domain.RawProduct
	if v := String(row["productFilename"]); v != nil {
		p.Filename = *v
	}
	if v := String(row["dataURI"]); v != nil {
		p.URI = *v
	}
	if v := String(row["dataRights"]); v != nil {
		p.Rights = *v
	}
	if v := String(row["productType"]); v != nil {
		p.ProductType = *v
	}
	return p
}

// BuildObservation maps a raw catalog row plus resolved asset links into
// the persisted record shape. Acquisition time converts from MJD;
// wavelength bounds convert to microns; spectrum-only fields are forced
// null for non-spectrum products regardless of what the row carried.
func BuildObservation(raw domain.RawObservation, previewURL, dataFileURL *string) domain.Observation {
	obs := domain.Observation{
		ExternalID:           raw.ExternalID,
		TargetName:           raw.TargetName,
		Description:          raw.Description,
		ProposalID:           raw.ProposalID,
		PIName:               raw.PIName,
		TargetClassification: raw.TargetClassification,
		RA:                   raw.RA,
		Dec:                  raw.Dec,
		Instrument:           raw.Instrument,
		FilterName:           raw.FilterName,
		ExposureTime:         raw.ExposureTime,
		DataproductType:      raw.DataproductType,
		CalibLevel:           raw.CalibLevel,
		WavelengthRegion:     raw.WavelengthRegion,
		PreviewURL:           previewURL,
		DataFileURL:          dataFileURL,
	}

	if raw.TMinMJD != nil {
		obs.ObservedAt = TimeFromMJD(*raw.TMinMJD)
	}

	if obs.IsSpectrum() {
		obs.SpectralResolution = raw.SpectralResolution
		if raw.EmMin != nil {
			obs.WavelengthMin = WavelengthMicrons(*raw.EmMin)
		}
		if raw.EmMax != nil {
			obs.WavelengthMax = WavelengthMicrons(*raw.EmMax)
		}
		obs.Grating = raw.Grating
		obs.DispersionAxis = raw.DispersionAxis
		obs.SlitWidth = raw.SlitWidth
	}

	return obs
}
