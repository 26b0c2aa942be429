package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glucogate/apperror"
	"github.com/glucogate/config"
	"github.com/glucogate/core"
	"github.com/glucogate/glucose"
	"github.com/glucogate/metrics"
)

const (
	defaultModelTimeout     = 30 * time.Second
	defaultMaxMessageLength = 4000
)

// Deps are the collaborators a Gateway is built from.
type Deps struct {
	Model    Model
	Limiters map[string]core.RateLimiter // keyed by family; vision and chat are required
	Metrics  metrics.MetricsReporter
	Logger   *slog.Logger
	Sink     ScreeningSink // optional
}

// Options tune request handling.
type Options struct {
	ModelTimeout     time.Duration
	MaxMessageLength int
}

// Gateway runs the analyze-image, chat, quota and evaluate operations.
// It is safe for concurrent use.
type Gateway struct {
	model        Model
	limiters     map[string]core.RateLimiter
	metrics      metrics.MetricsReporter
	logger       *slog.Logger
	errors       *apperror.Handler
	sink         ScreeningSink
	modelTimeout time.Duration
	maxMessage   int
}

// New validates deps and applies defaults to opts.
func New(deps Deps, opts Options) (*Gateway, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("gateway: model is required")
	}
	for _, family := range []string{config.FamilyVision, config.FamilyChat} {
		if deps.Limiters[family] == nil {
			return nil, fmt.Errorf("gateway: %s limiter is required", family)
		}
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoOpReporter()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = defaultModelTimeout
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = defaultMaxMessageLength
	}

	return &Gateway{
		model:        deps.Model,
		limiters:     deps.Limiters,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		errors:       apperror.NewHandler(deps.Logger),
		sink:         deps.Sink,
		modelTimeout: opts.ModelTimeout,
		maxMessage:   opts.MaxMessageLength,
	}, nil
}

// AnalyzeImage reads the glucose value shown in a photographed meter. An
// unreadable display is a successful result with nil value and unit.
func (g *Gateway) AnalyzeImage(ctx context.Context, clientKey string, req AnalyzeImageRequest) (*AnalyzeImageResult, error) {
	if err := g.consume(ctx, config.FamilyVision, clientKey); err != nil {
		return nil, err
	}

	payload := strings.TrimSpace(req.Image)
	if len(payload) < minImageLength {
		return nil, apperror.BadInput(msgInvalidImage)
	}

	image, ok := decodeImage(payload)
	if !ok {
		return nil, apperror.BadInput(msgImageEncoding)
	}

	text, err := g.generate(ctx, ModelRequest{
		Endpoint:     EndpointAnalyzeImage,
		SystemPrompt: readingSystemPrompt,
		Prompt:       readingUserPrompt,
		Image:        image,
	})
	if err != nil {
		return nil, err
	}

	extracted := glucose.Extract(text)
	if !extracted.Found() {
		g.logger.InfoContext(ctx, "Display unreadable", "client", clientKey, "model_text", text)
		return &AnalyzeImageResult{}, nil
	}

	validation := glucose.Validate(*extracted.Value, *extracted.Unit)
	if !validation.IsValid {
		g.logger.WarnContext(ctx, "Extracted value failed validation",
			"value", *extracted.Value, "unit", *extracted.Unit, "reason", validation.Error)
		return &AnalyzeImageResult{}, nil
	}

	return &AnalyzeImageResult{
		Value:   validation.Value,
		Unit:    extracted.Unit,
		Warning: validation.Warning,
	}, nil
}

// Chat answers a health question. Off-topic messages get OffTopicResponse
// without consuming quota or calling the model.
func (g *Gateway) Chat(ctx context.Context, clientKey string, req ChatRequest) (*ChatResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperror.BadInput(msgMessageMissing)
	}
	if len(message) > g.maxMessage {
		return nil, apperror.BadInput(msgMessageTooLong)
	}
	if req.Context != nil && req.Context.GlucoseValue != nil && *req.Context.GlucoseValue <= 0 {
		return nil, apperror.BadInput(msgBadContext)
	}

	if !IsHealthTopic(message) {
		return &ChatResult{Response: OffTopicResponse}, nil
	}

	if err := g.consume(ctx, config.FamilyChat, clientKey); err != nil {
		return nil, err
	}

	text, err := g.generate(ctx, ModelRequest{
		Endpoint:     EndpointChat,
		SystemPrompt: buildChatSystemPrompt(req.Context),
		Prompt:       message,
	})
	if err != nil {
		return nil, err
	}

	return &ChatResult{Response: text}, nil
}

// Quota reports a family's state for clientKey without consuming anything.
func (g *Gateway) Quota(ctx context.Context, family, clientKey string) (*QuotaStatus, error) {
	limiter, ok := g.limiters[family]
	if !ok {
		return nil, apperror.BadInput(msgUnknownFamily).WithContext("family", family)
	}

	decision, err := limiter.Peek(ctx, clientKey)
	if err != nil {
		return nil, apperror.Internal(err).WithContext("family", family)
	}

	return &QuotaStatus{
		Family:            family,
		Limit:             decision.Limit,
		Remaining:         decision.Remaining,
		ResetAt:           decision.ResetAt,
		RetryAfterSeconds: decision.RetryAfterSeconds(),
		IsLimited:         decision.Limited,
	}, nil
}

// HasFamily reports whether a limiter family is configured.
func (g *Gateway) HasFamily(family string) bool {
	_, ok := g.limiters[family]
	return ok
}

// Evaluate validates and classifies a manually entered reading and hands a
// valid result to the screening sink, if one is configured. Sink failures
// are logged only. When a screening limiter is configured every call
// consumes one unit of it.
func (g *Gateway) Evaluate(ctx context.Context, clientKey string, req EvaluateRequest) (*glucose.Evaluation, error) {
	if g.HasFamily(config.FamilyScreening) {
		if err := g.consume(ctx, config.FamilyScreening, clientKey); err != nil {
			return nil, err
		}
	}

	unit, err := glucose.ParseUnit(req.Unit)
	if err != nil {
		return nil, apperror.BadInput("Unit must be mg/dL or mmol/L")
	}
	testType, err := glucose.ParseTestType(req.TestType)
	if err != nil {
		return nil, apperror.BadInput("Test type must be fasting or random")
	}

	evaluation := glucose.Evaluate(req.Value, unit, testType)

	if evaluation.Reading != nil && g.sink != nil {
		if err := g.sink.Accept(ctx, evaluation); err != nil {
			g.errors.Handle(ctx, apperror.Internal(err).WithContext("operation", "screening_sink"))
		}
	}

	return &evaluation, nil
}

// consume takes one unit from family for clientKey. Store failures are
// reported as internal errors, so the request is refused.
func (g *Gateway) consume(ctx context.Context, family, clientKey string) error {
	decision, err := g.limiters[family].Check(ctx, clientKey)
	if err != nil {
		return apperror.Internal(err).WithContext("family", family)
	}
	if decision.Limited {
		return newLimitError(family, decision)
	}
	return nil
}

// generate calls the model under the configured timeout and rejects blank
// answers.
func (g *Gateway) generate(ctx context.Context, req ModelRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.modelTimeout)
	defer cancel()

	start := time.Now()
	text, err := g.model.Generate(callCtx, req)
	g.metrics.RecordModelCall(req.Endpoint, err, time.Since(start))

	if err != nil {
		return "", apperror.As(err).WithContext("endpoint", req.Endpoint)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.New(apperror.KindEmptyResponse, "").WithContext("endpoint", req.Endpoint)
	}
	return text, nil
}
