package domain

import "time"

// Observation is the persisted record of one archive observation.
// External identifier is the uniqueness key; repeated ingestion of the
// same id fully replaces every ingestible field.
type Observation struct {
	ID         int64
	ExternalID string

	TargetName           *string
	Description          *string
	ProposalID           *string
	PIName               *string
	TargetClassification *string

	RA  *float64
	Dec *float64

	Instrument   *string
	FilterName   *string
	ObservedAt   *time.Time
	ExposureTime *float64

	DataproductType  *string
	CalibLevel       *int
	WavelengthRegion *string

	PreviewURL  *string
	DataFileURL *string

	// Populated only when DataproductType == "spectrum".
	SpectralResolution *float64
	WavelengthMin      *float64
	WavelengthMax      *float64
	Grating            *string
	DispersionAxis     *int
	SlitWidth          *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DataproductSpectrum gates the spectrum-only columns.
const DataproductSpectrum = "spectrum"

// IsSpectrum reports whether the spectrum-only fields may carry values.
func (o Observation) IsSpectrum() bool {
	return o.DataproductType != nil && *o.DataproductType == DataproductSpectrum
}

// RawObservation is one catalog row as the archive reports it, already
// parsed into plain optional values but still carrying archive-native
// semantics (acquisition time as MJD, wavelength bounds possibly in
// meters). Never persisted.
type RawObservation struct {
	ExternalID           string
	TargetName           *string
	RA                   *float64
	Dec                  *float64
	Instrument           *string
	FilterName           *string
	TMinMJD              *float64
	ProposalID           *string
	ExposureTime         *float64
	Description          *string
	DataproductType      *string
	CalibLevel           *int
	WavelengthRegion     *string
	PIName               *string
	TargetClassification *string

	SpectralResolution *float64
	EmMin              *float64
	EmMax              *float64
	Grating            *string
	DispersionAxis     *int
	SlitWidth          *float64
}

// RawProduct is one candidate file from the per-observation product
// listing. Transient: exists only while resolving a single observation.
type RawProduct struct {
	Filename    string
	URI         string
	Rights      string
	ProductType string
}
