// Package normalize collapses archive-native scalar representations
// (masked, wrapped, foreign-encoded) into plain optional Go values.
// Every conversion is total: malformed input yields nil, never an error.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// mjdUnixEpoch is 1970-01-01 expressed as a Modified Julian Date.
const mjdUnixEpoch = 40587.0

// maskedSentinels are archive stand-ins for "no value".
var maskedSentinels = map[string]struct{}{
	"":     {},
	"--":   {},
	"n/a":  {},
	"null": {},
}

// unwrap peels wrapper shapes the archive JSON uses for masked or
// foreign scalars: {"value": x} objects and single-element arrays.
func unwrap(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if inner, ok := t["value"]; ok {
			return unwrap(inner)
		}
		return nil
	case []any:
		if len(t) == 1 {
			return unwrap(t[0])
		}
		return nil
	default:
		return v
	}
}

func isMasked(s string) bool {
	trimmed := strings.TrimSpace(s)
	if _, ok := maskedSentinels[strings.ToLower(trimmed)]; ok {
		return true
	}
	return strings.Contains(trimmed, "••••") || strings.Contains(trimmed, "…")
}

// String converts v to a trimmed string, or nil for missing/masked input.
func String(v any) *string {
	switch t := unwrap(v).(type) {
	case string:
		if isMasked(t) {
			return nil
		}
		trimmed := strings.TrimSpace(t)
		return &trimmed
	case json.Number:
		s := t.String()
		return &s
	default:
		return nil
	}
}

// Float converts v to a float64, or nil when it cannot be read as one.
func Float(v any) *float64 {
	var f float64
	switch t := unwrap(v).(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		if isMasked(t) {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Int converts v to an int, truncating fractional parts.
func Int(v any) *int {
	f := Float(v)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// TimeFromMJD converts a Modified Julian Date scalar to a UTC timestamp.
func TimeFromMJD(v any) *time.Time {
	mjd := Float(v)
	if mjd == nil {
		return nil
	}

	sec := (*mjd - mjdUnixEpoch) * 86400
	if sec*float64(time.Second) > math.MaxInt64 || sec*float64(time.Second) < math.MinInt64 {
		return nil
	}

	t := time.Unix(0, int64(sec*float64(time.Second))).UTC()
	return &t
}

// WavelengthMicrons normalizes a wavelength bound to microns. Magnitudes
// below 0.001 are taken as a meters encoding and scaled by 1e6; anything
// larger is treated as already in microns. Applied to each bound
// independently.
func WavelengthMicrons(v any) *float64 {
	f := Float(v)
	if f == nil {
		return nil
	}

	w := *f
	if math.Abs(w) < 0.001 {
		w *= 1e6
	}
	return &w
}
