package gateway

import (
	"fmt"

	"github.com/glucogate/apperror"
	"github.com/glucogate/core"
)

// LimitError is returned when a client has exhausted a limiter family. It
// unwraps to a RateLimited AppError.
type LimitError struct {
	Family   string
	Decision core.Decision
	err      *apperror.AppError
}

func newLimitError(family string, decision core.Decision) *LimitError {
	return &LimitError{
		Family:   family,
		Decision: decision,
		err: apperror.New(apperror.KindRateLimited, core.FormatRetryMessage(decision)).
			WithContext("family", family).
			WithContext("retry_after_seconds", decision.RetryAfterSeconds()),
	}
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s quota exhausted, retry after %ds", e.Family, e.Decision.RetryAfterSeconds())
}

func (e *LimitError) Unwrap() error {
	return e.err
}

// Validation messages returned to callers.
const (
	msgInvalidImage   = "Invalid or empty image data"
	msgImageEncoding  = "Image must be base64 encoded"
	msgMessageMissing = "Message is required"
	msgMessageTooLong = "Message is too long"
	msgBadContext     = "Glucose value in context must be greater than 0"
	msgUnknownFamily  = "Unknown quota family"
)
