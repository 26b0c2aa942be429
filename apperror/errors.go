package apperror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

// Kind is the category a failure is reported under.
type Kind string

const (
	KindBadInput           Kind = "bad_input"
	KindRateLimited        Kind = "rate_limited"
	KindUpstreamAuth       Kind = "upstream_auth"
	KindUpstreamQuota      Kind = "upstream_quota"
	KindUpstreamBadRequest Kind = "upstream_bad_request"
	KindUnavailable        Kind = "unavailable"
	KindEmptyResponse      Kind = "empty_response"
	KindInternal           Kind = "internal"
)

type kindInfo struct {
	status  int
	code    string
	message string
}

// Caller-facing text per kind. BadInput and RateLimited carry their own
// message instead.
var kinds = map[Kind]kindInfo{
	KindBadInput:           {http.StatusBadRequest, "BAD_INPUT", "Invalid request."},
	KindRateLimited:        {http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded. Please try again later."},
	KindUpstreamAuth:       {http.StatusInternalServerError, "CONFIGURATION", "API configuration error. Please contact support."},
	KindUpstreamQuota:      {http.StatusTooManyRequests, "UPSTREAM_QUOTA", "Service temporarily busy. Please try again later."},
	KindUpstreamBadRequest: {http.StatusBadRequest, "UPSTREAM_BAD_REQUEST", "Invalid image data or request format."},
	KindUnavailable:        {http.StatusServiceUnavailable, "UNAVAILABLE", "Unable to connect to AI service. Please try again later."},
	KindEmptyResponse:      {http.StatusInternalServerError, "EMPTY_RESPONSE", "The AI service returned no content. Please try again."},
	KindInternal:           {http.StatusInternalServerError, "INTERNAL", "Failed to process request. Please try again."},
}

// Status returns the HTTP status for k.
func (k Kind) Status() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Code returns the stable machine-readable code for k.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return kinds[KindInternal].code
}

// DefaultMessage returns the generic caller-facing message for k.
func (k Kind) DefaultMessage() string {
	if info, ok := kinds[k]; ok {
		return info.message
	}
	return kinds[KindInternal].message
}

// AppError is a categorized failure. Message is safe to show to callers;
// Internal is only ever logged.
type AppError struct {
	Kind     Kind
	Message  string
	Code     string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Kind, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches another AppError of the same kind and code.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// Status returns the HTTP status for the error's kind.
func (e *AppError) Status() int {
	return e.Kind.Status()
}

// WithContext adds a structured logging field to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_kind", e.Kind,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// New creates an AppError of kind. An empty message uses the kind's
// default message.
func New(kind Kind, message string) *AppError {
	return newAppError(kind, message, nil)
}

// Wrap categorizes err under kind. The caller sees message (or the kind's
// default), never err's text.
func Wrap(err error, kind Kind, message string) *AppError {
	return newAppError(kind, message, err)
}

func newAppError(kind Kind, message string, err error) *AppError {
	if message == "" {
		message = kind.DefaultMessage()
	}
	return &AppError{
		Kind:     kind,
		Code:     kind.Code(),
		Message:  message,
		Internal: err,
		Source:   caller(2),
		Context:  make(map[string]interface{}),
	}
}

// BadInput reports a request that failed validation.
func BadInput(message string) *AppError {
	return newAppError(KindBadInput, message, nil)
}

// Internal wraps an unexpected failure.
func Internal(err error) *AppError {
	return newAppError(KindInternal, "", err)
}

// As returns err as an *AppError, categorizing uncategorized errors with
// Classify.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return newAppError(Classify(err), "", err)
}

// KindOf returns the kind err would be reported under.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

// Handler logs errors at a level that matches their kind
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// Handle logs err. Caller-side kinds log at warn, upstream and internal
// kinds at error.
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		h.logger.ErrorContext(ctx, "Unhandled error", "error", err.Error())
		return
	}

	switch appErr.Kind {
	case KindBadInput:
		h.logger.WarnContext(ctx, "Validation error", appErr.LogFields()...)
	case KindRateLimited:
		h.logger.WarnContext(ctx, "Rate limit error", appErr.LogFields()...)
	case KindUpstreamAuth, KindUpstreamQuota, KindUpstreamBadRequest, KindUnavailable, KindEmptyResponse:
		h.logger.ErrorContext(ctx, "Upstream error", appErr.LogFields()...)
	default:
		h.logger.ErrorContext(ctx, "Internal error", appErr.LogFields()...)
	}
}
