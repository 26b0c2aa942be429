package gateway

import "strings"

// OffTopicResponse is returned, without a model call, for chat messages
// that match no health keyword.
const OffTopicResponse = "I'm designed to help with health and wellness questions only. " +
	"Please ask me something about glucose levels, diabetes, nutrition, exercise, or general health."

var healthKeywords = []string{
	"glucose", "blood sugar", "diabetes", "carb", "sugar", "insulin",
	"weight", "exercise", "nutrition", "diet", "meal", "food", "protein",
	"health", "doctor", "medicine", "symptom", "blood pressure", "bp",
	"cholesterol", "wellness", "breakfast", "lunch", "dinner", "snack",
	"walk", "run", "yoga", "sleep", "stress", "monitor", "test", "reading",
	"fasting", "postprandial", "hypertension", "obese", "weight loss",
	"exercise routine", "meal plan",
}

// IsHealthTopic reports whether message contains any health keyword,
// case-insensitively. Matching is by substring.
func IsHealthTopic(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range healthKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
