package glucose

import (
	"regexp"
	"strconv"
	"strings"
)

// Plausibility window for extracted values, on the mg/dL scale.
const (
	minPlausibleMgDL = 20.0
	maxPlausibleMgDL = 600.0
)

var illegibleMarkers = []string{"UNREADABLE", "CANNOT READ"}

// Tried in order, most specific first. Every pattern captures the number in
// group 1. Only the first match of each pattern is considered, so stray
// digits such as a clock or date cannot stand in for a rejected reading.
var readingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*MG[\s/]*DL`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*MMOL[\s/]*L`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)[^\d]{0,3}(?:MG|MMOL)`),
	regexp.MustCompile(`\b(\d+(?:\.\d{1,2})?)\b`),
}

// ExtractResult is what Extract found. Both fields are nil when nothing
// plausible could be read.
type ExtractResult struct {
	Value *float64 `json:"value"`
	Unit  *Unit    `json:"unit"`
}

// Found reports whether a value was extracted.
func (r ExtractResult) Found() bool {
	return r.Value != nil
}

// Extract pulls a glucose value and unit out of free text such as a vision
// model's answer. Illegibility markers win over any digits in the text.
func Extract(text string) ExtractResult {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if normalized == "" {
		return ExtractResult{}
	}

	for _, marker := range illegibleMarkers {
		if strings.Contains(normalized, marker) {
			return ExtractResult{}
		}
	}

	mentionsMmol := strings.Contains(normalized, "MMOL")

	for _, pattern := range readingPatterns {
		match := pattern.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}

		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}

		unit := resolveUnit(match[0], mentionsMmol)
		if !plausible(value, unit) {
			continue
		}

		return ExtractResult{Value: &value, Unit: &unit}
	}

	return ExtractResult{}
}

// resolveUnit prefers the unit written next to the number and falls back to
// whether the text mentions mmol anywhere.
func resolveUnit(matched string, mentionsMmol bool) Unit {
	switch {
	case strings.Contains(matched, "MMOL"):
		return MmolPerL
	case strings.Contains(matched, "MG"):
		return MgPerDL
	case mentionsMmol:
		return MmolPerL
	default:
		return MgPerDL
	}
}

func plausible(value float64, unit Unit) bool {
	mg := ToMgPerDL(value, unit)
	return mg >= minPlausibleMgDL && mg <= maxPlausibleMgDL
}
