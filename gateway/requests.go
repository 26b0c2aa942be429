package gateway

import (
	"time"

	"github.com/glucogate/glucose"
)

// AnalyzeImageRequest asks for the reading on a photographed meter display.
// Image is base64, optionally as a data URL.
type AnalyzeImageRequest struct {
	Image string `json:"image"`
}

// AnalyzeImageResult carries nil Value and Unit when the display could not
// be read.
type AnalyzeImageResult struct {
	Value   *float64      `json:"value"`
	Unit    *glucose.Unit `json:"unit"`
	Warning string        `json:"warning,omitempty"`
}

// ChatContext is optional screening context for a chat message.
type ChatContext struct {
	GlucoseValue *float64 `json:"glucoseValue,omitempty"`
	TestType     string   `json:"testType,omitempty"`
	RiskLevel    string   `json:"riskLevel,omitempty"`
}

// ChatRequest is one chat message.
type ChatRequest struct {
	Message string       `json:"message"`
	Context *ChatContext `json:"context,omitempty"`
}

// ChatResult is the assistant's answer.
type ChatResult struct {
	Response string `json:"response"`
}

// EvaluateRequest is a manually entered reading.
type EvaluateRequest struct {
	Value    any    `json:"value"`
	Unit     string `json:"unit"`
	TestType string `json:"testType"`
}

// QuotaStatus is the read-only view of a limiter family for one client.
type QuotaStatus struct {
	Family            string    `json:"family"`
	Limit             int64     `json:"limit"`
	Remaining         int64     `json:"remaining"`
	ResetAt           time.Time `json:"resetAt"`
	RetryAfterSeconds int64     `json:"retryAfterSeconds"`
	IsLimited         bool      `json:"isLimited"`
}
