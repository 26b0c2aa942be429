package gateway

import (
	"context"

	"github.com/glucogate/glucose"
)

// Endpoint names, used for metrics labels and model requests.
const (
	EndpointAnalyzeImage = "analyze-image"
	EndpointChat         = "chat"
	EndpointEvaluate     = "evaluate"
	EndpointQuota        = "quota"
)

// Image is an inline image sent to the model.
type Image struct {
	MIMEType string
	Data     []byte
}

// ModelRequest is one prompt for the external model.
type ModelRequest struct {
	Endpoint     string
	SystemPrompt string
	Prompt       string
	Image        *Image
}

// Model is the external vision/chat model. Implementations return the raw
// text of the answer; a blank answer is not an error at this level.
type Model interface {
	Generate(ctx context.Context, req ModelRequest) (string, error)
}

// ScreeningSink receives evaluated readings for storage.
type ScreeningSink interface {
	Accept(ctx context.Context, evaluation glucose.Evaluation) error
}
