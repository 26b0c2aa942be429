package glucose

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Bounds holds the accept range of a unit and the narrower band outside of
// which an accepted reading gets a warning.
type Bounds struct {
	HardMin float64
	HardMax float64
	SoftMin float64
	SoftMax float64
}

var unitBounds = map[Unit]Bounds{
	MgPerDL:  {HardMin: 10, HardMax: 800, SoftMin: 20, SoftMax: 600},
	MmolPerL: {HardMin: 0.6, HardMax: 44.4, SoftMin: 1.1, SoftMax: 33.3},
}

// BoundsFor returns the bounds used for unit.
func BoundsFor(unit Unit) (Bounds, bool) {
	b, ok := unitBounds[unit]
	return b, ok
}

const (
	msgEmpty       = "Please enter a glucose value"
	msgNotANumber  = "Please enter a valid number"
	msgNotPositive = "Glucose value must be greater than 0"
	msgLowWarning  = "This is an extremely low reading. If accurate, seek immediate medical attention."
	msgHighWarning = "This is an extremely high reading. If accurate, seek immediate medical attention."
)

// ValidationResult is the outcome of Validate. Value is nil whenever
// IsValid is false.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Value   *float64 `json:"value"`
	Error   string   `json:"error,omitempty"`
	Warning string   `json:"warning,omitempty"`
}

func invalid(msg string) ValidationResult {
	return ValidationResult{IsValid: false, Error: msg}
}

// Validate checks a manually entered or extracted value against the hard
// and soft bounds of unit. raw may be a string or any numeric type.
func Validate(raw any, unit Unit) ValidationResult {
	value, errMsg := toFloat(raw)
	if errMsg != "" {
		return invalid(errMsg)
	}

	if value <= 0 {
		return invalid(msgNotPositive)
	}

	bounds, ok := unitBounds[unit]
	if !ok {
		return invalid(fmt.Sprintf("Unsupported unit %q", string(unit)))
	}

	if value < bounds.HardMin {
		return invalid(fmt.Sprintf("Value too low (below %s %s). Please verify your glucometer reading.",
			formatBound(bounds.HardMin), unit))
	}
	if value > bounds.HardMax {
		return invalid(fmt.Sprintf("Value too high (above %s %s). Please verify your glucometer reading.",
			formatBound(bounds.HardMax), unit))
	}

	result := ValidationResult{IsValid: true, Value: &value}
	switch {
	case value < bounds.SoftMin:
		result.Warning = msgLowWarning
	case value > bounds.SoftMax:
		result.Warning = msgHighWarning
	}
	return result
}

// toFloat returns the numeric value of raw, or the caller-facing message
// explaining why it has none.
func toFloat(raw any) (float64, string) {
	var value float64

	switch v := raw.(type) {
	case nil:
		return 0, msgEmpty
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, msgEmpty
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, msgNotANumber
		}
		value = f
	case *float64:
		if v == nil {
			return 0, msgEmpty
		}
		value = *v
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int32:
		value = float64(v)
	case int64:
		value = float64(v)
	case uint:
		value = float64(v)
	case uint32:
		value = float64(v)
	case uint64:
		value = float64(v)
	default:
		return 0, msgNotANumber
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, msgNotANumber
	}
	return value, ""
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
