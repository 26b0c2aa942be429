package glucose

// Classification is the screening interpretation of one reading.
type Classification struct {
	Level       RiskLevel `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

type thresholds struct {
	diabetes    float64
	prediabetes float64
}

// mg/dL cut-offs per test protocol.
var testThresholds = map[TestType]thresholds{
	Fasting: {diabetes: 126, prediabetes: 100},
	Random:  {diabetes: 200, prediabetes: 140},
}

const (
	titleDiabetes    = "High Range (Possible Diabetes)"
	titlePrediabetes = "Elevated (Possible Prediabetes)"
	titleNormal      = "Normal Range"
)

var descriptions = map[TestType]map[RiskLevel]string{
	Fasting: {
		LevelDiabetes:    "Your reading suggests levels often associated with diabetes. Please consult a healthcare provider for confirmation.",
		LevelPrediabetes: "Your reading is higher than normal. Lifestyle changes can often help manage this.",
		LevelNormal:      "Great news! Your fasting glucose levels appear to be within the healthy range.",
	},
	Random: {
		LevelDiabetes:    "Your random glucose reading is quite high. We recommend seeing a doctor soon.",
		LevelPrediabetes: "Your levels are slightly elevated. Monitor your diet and exercise.",
		LevelNormal:      "Your random glucose levels appear normal.",
	},
}

// Classify places a reading in a risk level. mmol/L values are converted to
// mg/dL first. Any test type other than Fasting uses the random thresholds.
func Classify(value float64, unit Unit, testType TestType) Classification {
	if testType != Fasting {
		testType = Random
	}

	mg := ToMgPerDL(value, unit)
	limits := testThresholds[testType]

	level := LevelNormal
	title := titleNormal
	switch {
	case mg >= limits.diabetes:
		level, title = LevelDiabetes, titleDiabetes
	case mg >= limits.prediabetes:
		level, title = LevelPrediabetes, titlePrediabetes
	}

	return Classification{
		Level:       level,
		Title:       title,
		Description: descriptions[testType][level],
	}
}

// Evaluation is a validated reading with its classification, in the shape
// handed to the screening store. Reading and Classification are nil when
// the value was rejected.
type Evaluation struct {
	Reading        *Reading         `json:"reading"`
	Validation     ValidationResult `json:"validation"`
	Classification *Classification  `json:"classification"`
}

// Evaluate validates raw in unit and classifies it when valid.
func Evaluate(raw any, unit Unit, testType TestType) Evaluation {
	validation := Validate(raw, unit)
	if !validation.IsValid {
		return Evaluation{Validation: validation}
	}

	reading := Reading{Value: *validation.Value, Unit: unit, TestType: testType}
	classification := Classify(reading.Value, reading.Unit, reading.TestType)

	return Evaluation{
		Reading:        &reading,
		Validation:     validation,
		Classification: &classification,
	}
}
