package glucose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsNormalReading(t *testing.T) {
	result := Validate(107.0, MgPerDL)

	assert.True(t, result.IsValid)
	require.NotNil(t, result.Value)
	assert.Equal(t, 107.0, *result.Value)
	assert.Empty(t, result.Error)
	assert.Empty(t, result.Warning)
}

func TestValidate_SoftBoundsWarn(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		unit    Unit
		warning string
	}{
		{"low mg/dL", 15, MgPerDL, msgLowWarning},
		{"high mg/dL", 650.0, MgPerDL, msgHighWarning},
		{"low mmol/L", 0.8, MmolPerL, msgLowWarning},
		{"high mmol/L", "40", MmolPerL, msgHighWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.raw, tt.unit)
			assert.True(t, result.IsValid)
			assert.NotNil(t, result.Value)
			assert.Equal(t, tt.warning, result.Warning)
			assert.Empty(t, result.Error)
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		unit Unit
		err  string
	}{
		{"empty string", "", MgPerDL, "Please enter a glucose value"},
		{"blank string", "   ", MgPerDL, "Please enter a glucose value"},
		{"nil", nil, MgPerDL, "Please enter a glucose value"},
		{"not a number", "abc", MgPerDL, "Please enter a valid number"},
		{"NaN", math.NaN(), MgPerDL, "Please enter a valid number"},
		{"unsupported type", []int{1}, MgPerDL, "Please enter a valid number"},
		{"zero", 0, MgPerDL, "Glucose value must be greater than 0"},
		{"negative", "-4", MmolPerL, "Glucose value must be greater than 0"},
		{"below hard mg/dL", 5, MgPerDL, "Value too low (below 10 mg/dL). Please verify your glucometer reading."},
		{"above hard mg/dL", 900, MgPerDL, "Value too high (above 800 mg/dL). Please verify your glucometer reading."},
		{"below hard mmol/L", 0.5, MmolPerL, "Value too low (below 0.6 mmol/L). Please verify your glucometer reading."},
		{"above hard mmol/L", 50.0, MmolPerL, "Value too high (above 44.4 mmol/L). Please verify your glucometer reading."},
		{"unknown unit", 100, Unit("g/L"), `Unsupported unit "g/L"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.raw, tt.unit)
			assert.False(t, result.IsValid)
			assert.Nil(t, result.Value)
			assert.Equal(t, tt.err, result.Error)
			assert.Empty(t, result.Warning)
		})
	}
}

func TestValidate_BoundariesAreInclusive(t *testing.T) {
	for _, v := range []float64{10, 20, 600, 800} {
		assert.True(t, Validate(v, MgPerDL).IsValid, "%v mg/dL", v)
	}
	assert.Empty(t, Validate(20.0, MgPerDL).Warning)
	assert.Empty(t, Validate(600.0, MgPerDL).Warning)
	assert.NotEmpty(t, Validate(10.0, MgPerDL).Warning)

	for _, v := range []float64{0.6, 1.1, 33.3, 44.4} {
		assert.True(t, Validate(v, MmolPerL).IsValid, "%v mmol/L", v)
	}
}

func TestValidate_Deterministic(t *testing.T) {
	for _, raw := range []any{15, 107.0, "650", 790} {
		first := Validate(raw, MgPerDL)
		second := Validate(*first.Value, MgPerDL)
		assert.Equal(t, first.IsValid, second.IsValid)
		assert.Equal(t, first.Warning, second.Warning)
	}
}

func TestValidate_PaddedString(t *testing.T) {
	result := Validate(" 5.6 ", MmolPerL)
	assert.True(t, result.IsValid)
	assert.Equal(t, 5.6, *result.Value)
}

func TestBoundsFor(t *testing.T) {
	b, ok := BoundsFor(MmolPerL)
	assert.True(t, ok)
	assert.Equal(t, 44.4, b.HardMax)

	_, ok = BoundsFor(Unit("x"))
	assert.False(t, ok)
}
