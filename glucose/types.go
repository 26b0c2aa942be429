// Package glucose reads, validates and classifies blood glucose values.
// Everything here is pure: no I/O, no clock, no shared state.
package glucose

import (
	"fmt"
	"strings"
)

// MgPerMmol converts mmol/L to mg/dL.
const MgPerMmol = 18.0

// Unit is a glucose concentration unit.
type Unit string

const (
	MgPerDL  Unit = "mg/dL"
	MmolPerL Unit = "mmol/L"
)

// TestType is the protocol a reading was taken under.
type TestType string

const (
	Fasting TestType = "fasting"
	Random  TestType = "random"
)

// RiskLevel is the screening outcome for a reading.
type RiskLevel string

const (
	LevelNormal      RiskLevel = "normal"
	LevelPrediabetes RiskLevel = "prediabetes"
	LevelDiabetes    RiskLevel = "diabetes"
)

// Reading is a validated glucose measurement.
type Reading struct {
	Value    float64  `json:"value"`
	Unit     Unit     `json:"unit"`
	TestType TestType `json:"testType"`
}

// MgPerDL returns the reading on the mg/dL scale.
func (r Reading) MgPerDL() float64 {
	return ToMgPerDL(r.Value, r.Unit)
}

// ToMgPerDL converts value to mg/dL. Values already in mg/dL, or in an
// unknown unit, are returned unchanged.
func ToMgPerDL(value float64, unit Unit) float64 {
	if unit == MmolPerL {
		return value * MgPerMmol
	}
	return value
}

// ParseUnit accepts the usual spellings of both units, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mg/dl", "mgdl", "mg":
		return MgPerDL, nil
	case "mmol/l", "mmoll", "mmol":
		return MmolPerL, nil
	default:
		return "", fmt.Errorf("unsupported unit %q", s)
	}
}

// ParseTestType accepts "fasting" or "random", case-insensitively.
func ParseTestType(s string) (TestType, error) {
	switch TestType(strings.ToLower(strings.TrimSpace(s))) {
	case Fasting:
		return Fasting, nil
	case Random:
		return Random, nil
	default:
		return "", fmt.Errorf("unsupported test type %q", s)
	}
}
