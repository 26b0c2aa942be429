package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glucogate/apperror"
	"github.com/glucogate/backend/memory"
	"github.com/glucogate/config"
	"github.com/glucogate/core"
	"github.com/glucogate/glucose"
	"github.com/glucogate/logger"
	"github.com/glucogate/metrics"
	"github.com/glucogate/strategy/fixedwindow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel records every request and answers from a fixed reply.
type fakeModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	delay    time.Duration
	requests []ModelRequest
}

func (m *fakeModel) Generate(ctx context.Context, req ModelRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	reply, err, delay := m.reply, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *fakeModel) last() ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

type fakeSink struct {
	accepted []glucose.Evaluation
	err      error
}

func (s *fakeSink) Accept(ctx context.Context, e glucose.Evaluation) error {
	s.accepted = append(s.accepted, e)
	return s.err
}

type testEnv struct {
	gateway  *Gateway
	model    *fakeModel
	limiters map[string]*core.Limiter
	reporter *metrics.GenericReporter
	now      time.Time
}

func newLimiter(t *testing.T, family string, limit int64, now func() time.Time, reporter core.MetricsReporter) *core.Limiter {
	t.Helper()
	cfg := core.Config{Limit: limit, Window: time.Minute, KeyPrefix: family}
	l, err := core.NewLimiter(memory.NewBackend(), fixedwindow.NewStrategy(cfg), cfg, reporter, core.WithClock(now))
	require.NoError(t, err)
	return l
}

func newTestEnv(t *testing.T, visionLimit, chatLimit int64, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		model:    &fakeModel{reply: "107 mg/dL"},
		reporter: metrics.NewGenericReporter(),
		now:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.limiters = map[string]*core.Limiter{
		config.FamilyVision: newLimiter(t, config.FamilyVision, visionLimit, clock, env.reporter),
		config.FamilyChat:   newLimiter(t, config.FamilyChat, chatLimit, clock, env.reporter),
	}
	limiters := map[string]core.RateLimiter{}
	for family, l := range env.limiters {
		limiters[family] = l
	}

	gw, err := New(Deps{
		Model:    env.model,
		Limiters: limiters,
		Metrics:  env.reporter,
		Logger:   logger.Discard(),
	}, opts)
	require.NoError(t, err)
	env.gateway = gw
	return env
}

func testImage() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("jpeg-bytes", 20)))
}

func kindOf(t *testing.T, err error) apperror.Kind {
	t.Helper()
	require.Error(t, err)
	return apperror.KindOf(err)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	cfg := core.Config{Limit: 1, Window: time.Minute}
	l, err := core.NewLimiter(memory.NewBackend(), fixedwindow.NewStrategy(cfg), cfg, nil)
	require.NoError(t, err)

	_, err = New(Deps{Limiters: map[string]core.RateLimiter{config.FamilyVision: l, config.FamilyChat: l}}, Options{})
	assert.Error(t, err)

	_, err = New(Deps{Model: &fakeModel{}, Limiters: map[string]core.RateLimiter{config.FamilyVision: l}}, Options{})
	assert.Error(t, err)
}

func TestAnalyzeImage_ReturnsReading(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})

	result, err := env.gateway.AnalyzeImage(context.Background(), "1.2.3.4", AnalyzeImageRequest{Image: testImage()})

	require.NoError(t, err)
	require.NotNil(t, result.Value)
	assert.Equal(t, 107.0, *result.Value)
	assert.Equal(t, glucose.MgPerDL, *result.Unit)
	assert.Empty(t, result.Warning)

	req := env.model.last()
	assert.Equal(t, EndpointAnalyzeImage, req.Endpoint)
	require.NotNil(t, req.Image)
	assert.Equal(t, "image/jpeg", req.Image.MIMEType)
	assert.Equal(t, []byte(strings.Repeat("jpeg-bytes", 20)), req.Image.Data)
}

func TestAnalyzeImage_DataURLAndMMOL(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})
	env.model.reply = "5.6 mmol/L"

	image := "data:image/png;base64," + testImage()
	result, err := env.gateway.AnalyzeImage(context.Background(), "1.2.3.4", AnalyzeImageRequest{Image: image})

	require.NoError(t, err)
	assert.Equal(t, 5.6, *result.Value)
	assert.Equal(t, glucose.MmolPerL, *result.Unit)
	assert.Equal(t, "image/png", env.model.last().Image.MIMEType)
}

func TestAnalyzeImage_UnreadableIsNotAnError(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})
	env.model.reply = "UNREADABLE"

	result, err := env.gateway.AnalyzeImage(context.Background(), "1.2.3.4", AnalyzeImageRequest{Image: testImage()})

	require.NoError(t, err)
	assert.Nil(t, result.Value)
	assert.Nil(t, result.Unit)
}

func TestAnalyzeImage_ImplausibleReadingIsUnreadable(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})

	for _, reply := range []string{"900 mg/dL", "1.1 mmol/L", "Error 3"} {
		env.model.reply = reply
		result, err := env.gateway.AnalyzeImage(context.Background(), "ip", AnalyzeImageRequest{Image: testImage()})
		require.NoError(t, err)
		assert.Nil(t, result.Value, reply)
		assert.Nil(t, result.Unit, reply)
	}
}

func TestAnalyzeImage_BadInput(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})
	ctx := context.Background()

	_, err := env.gateway.AnalyzeImage(ctx, "ip", AnalyzeImageRequest{Image: "short"})
	assert.Equal(t, apperror.KindBadInput, kindOf(t, err))

	_, err = env.gateway.AnalyzeImage(ctx, "ip", AnalyzeImageRequest{Image: strings.Repeat("!", 150)})
	assert.Equal(t, apperror.KindBadInput, kindOf(t, err))

	assert.Equal(t, 0, env.model.calls())
}

func TestAnalyzeImage_RateLimitedSkipsModel(t *testing.T) {
	env := newTestEnv(t, 2, 10, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.gateway.AnalyzeImage(ctx, "ip", AnalyzeImageRequest{Image: testImage()})
		require.NoError(t, err)
	}

	env.now = env.now.Add(15 * time.Second)
	_, err := env.gateway.AnalyzeImage(ctx, "ip", AnalyzeImageRequest{Image: testImage()})

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, config.FamilyVision, limitErr.Family)
	assert.Equal(t, int64(45), limitErr.Decision.RetryAfterSeconds())
	assert.Equal(t, apperror.KindRateLimited, apperror.KindOf(err))
	assert.Equal(t, 2, env.model.calls())

	// another client is unaffected
	_, err = env.gateway.AnalyzeImage(ctx, "other", AnalyzeImageRequest{Image: testImage()})
	assert.NoError(t, err)
}

func TestAnalyzeImage_QuotaConsumedBeforePayloadCheck(t *testing.T) {
	env := newTestEnv(t, 1, 10, Options{})
	ctx := context.Background()

	_, err := env.gateway.AnalyzeImage(ctx, "ip", AnalyzeImageRequest{Image: "tiny"})
	assert.Equal(t, apperror.KindBadInput, kindOf(t, err))

	_, err = env.gateway.AnalyzeImage(ctx, "ip", AnalyzeImageRequest{Image: testImage()})
	assert.Equal(t, apperror.KindRateLimited, kindOf(t, err))
}

func TestAnalyzeImage_EmptyModelAnswer(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})
	env.model.reply = "  \n "

	_, err := env.gateway.AnalyzeImage(context.Background(), "ip", AnalyzeImageRequest{Image: testImage()})
	assert.Equal(t, apperror.KindEmptyResponse, kindOf(t, err))
}

func TestAnalyzeImage_ModelTimeout(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{ModelTimeout: 20 * time.Millisecond})
	env.model.delay = time.Second

	start := time.Now()
	_, err := env.gateway.AnalyzeImage(context.Background(), "ip", AnalyzeImageRequest{Image: testImage()})

	assert.Equal(t, apperror.KindUnavailable, kindOf(t, err))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAnalyzeImage_UpstreamErrorsAreCategorized(t *testing.T) {
	tests := []struct {
		err  error
		kind apperror.Kind
	}{
		{errors.New("API_KEY_INVALID"), apperror.KindUpstreamAuth},
		{errors.New("RESOURCE_EXHAUSTED: quota"), apperror.KindUpstreamQuota},
		{errors.New("malformed image"), apperror.KindUpstreamBadRequest},
		{errors.New("dial tcp: connection refused"), apperror.KindUnavailable},
		{errors.New("weird"), apperror.KindInternal},
		{apperror.Wrap(errors.New("x"), apperror.KindUpstreamQuota, ""), apperror.KindUpstreamQuota},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			env := newTestEnv(t, 5, 10, Options{})
			env.model.err = tt.err

			_, err := env.gateway.AnalyzeImage(context.Background(), "ip", AnalyzeImageRequest{Image: testImage()})
			assert.Equal(t, tt.kind, kindOf(t, err))
		})
	}
}

func TestChat_OffTopicShortCircuits(t *testing.T) {
	env := newTestEnv(t, 5, 1, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := env.gateway.Chat(ctx, "ip", ChatRequest{Message: "What's the weather?"})
		require.NoError(t, err)
		assert.Equal(t, OffTopicResponse, result.Response)
	}
	assert.Equal(t, 0, env.model.calls())

	// off-topic messages did not use the single chat unit
	decision, err := env.limiters[config.FamilyChat].Peek(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, int64(1), decision.Remaining)
}

func TestChat_ReturnsModelAnswer(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})
	env.model.reply = "  Try a 20 minute walk after dinner.  "

	result, err := env.gateway.Chat(context.Background(), "ip", ChatRequest{Message: "How can I lower my blood sugar?"})

	require.NoError(t, err)
	assert.Equal(t, "Try a 20 minute walk after dinner.", result.Response)

	req := env.model.last()
	assert.Equal(t, EndpointChat, req.Endpoint)
	assert.Equal(t, "How can I lower my blood sugar?", req.Prompt)
	assert.Nil(t, req.Image)
	assert.NotContains(t, req.SystemPrompt, "Current User Context")
}

func TestChat_ContextIsAddedToPrompt(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})
	value := 215.0

	_, err := env.gateway.Chat(context.Background(), "ip", ChatRequest{
		Message: "Is my glucose ok?",
		Context: &ChatContext{GlucoseValue: &value, TestType: "random", RiskLevel: "diabetes"},
	})
	require.NoError(t, err)

	prompt := env.model.last().SystemPrompt
	assert.Contains(t, prompt, "- Glucose Level: 215 mg/dL (High)")
	assert.Contains(t, prompt, "- Test Type: random")
	assert.Contains(t, prompt, "- Risk Level: diabetes")
}

func TestChat_BadInput(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{MaxMessageLength: 50})
	ctx := context.Background()
	negative := -3.0

	for _, req := range []ChatRequest{
		{Message: ""},
		{Message: "   "},
		{Message: "diet " + strings.Repeat("x", 60)},
		{Message: "diet", Context: &ChatContext{GlucoseValue: &negative}},
	} {
		_, err := env.gateway.Chat(ctx, "ip", req)
		assert.Equal(t, apperror.KindBadInput, kindOf(t, err))
	}
	assert.Equal(t, 0, env.model.calls())
}

func TestChat_RateLimitedNeverCallsModel(t *testing.T) {
	env := newTestEnv(t, 5, 2, Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.gateway.Chat(ctx, "ip", ChatRequest{Message: "best breakfast for diabetes?"})
		require.NoError(t, err)
	}

	_, err := env.gateway.Chat(ctx, "ip", ChatRequest{Message: "best breakfast for diabetes?"})

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Greater(t, limitErr.Decision.RetryAfterSeconds(), int64(0))
	assert.Equal(t, 2, env.model.calls())

	env.now = env.now.Add(time.Minute)
	_, err = env.gateway.Chat(ctx, "ip", ChatRequest{Message: "best breakfast for diabetes?"})
	assert.NoError(t, err)
}

func TestQuota(t *testing.T) {
	env := newTestEnv(t, 3, 10, Options{})
	ctx := context.Background()

	status, err := env.gateway.Quota(ctx, config.FamilyVision, "ip")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Remaining)
	assert.Equal(t, int64(3), status.Limit)
	assert.False(t, status.IsLimited)

	_, err = env.gateway.AnalyzeImage(ctx, "ip", AnalyzeImageRequest{Image: testImage()})
	require.NoError(t, err)

	status, err = env.gateway.Quota(ctx, config.FamilyVision, "ip")
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Remaining)
	assert.Equal(t, env.now.Add(time.Minute), status.ResetAt)

	_, err = env.gateway.Quota(ctx, "unknown", "ip")
	assert.Equal(t, apperror.KindBadInput, kindOf(t, err))
	assert.True(t, env.gateway.HasFamily(config.FamilyChat))
	assert.False(t, env.gateway.HasFamily("unknown"))
}

func TestEvaluate(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})
	sink := &fakeSink{}
	env.gateway.sink = sink
	ctx := context.Background()

	eval, err := env.gateway.Evaluate(ctx, "ip", EvaluateRequest{Value: 130.0, Unit: "mg/dL", TestType: "fasting"})
	require.NoError(t, err)
	require.NotNil(t, eval.Classification)
	assert.Equal(t, glucose.LevelDiabetes, eval.Classification.Level)
	assert.Len(t, sink.accepted, 1)

	eval, err = env.gateway.Evaluate(ctx, "ip", EvaluateRequest{Value: "5", Unit: "mg/dL", TestType: "random"})
	require.NoError(t, err)
	assert.False(t, eval.Validation.IsValid)
	assert.Len(t, sink.accepted, 1)

	sink.err = errors.New("db down")
	eval, err = env.gateway.Evaluate(ctx, "ip", EvaluateRequest{Value: 6.0, Unit: "mmol/L", TestType: "fasting"})
	require.NoError(t, err)
	assert.Equal(t, glucose.LevelPrediabetes, eval.Classification.Level)

	_, err = env.gateway.Evaluate(ctx, "ip", EvaluateRequest{Value: 100.0, Unit: "g/L", TestType: "fasting"})
	assert.Equal(t, apperror.KindBadInput, kindOf(t, err))

	_, err = env.gateway.Evaluate(ctx, "ip", EvaluateRequest{Value: 100.0, Unit: "mg/dL", TestType: "after meal"})
	assert.Equal(t, apperror.KindBadInput, kindOf(t, err))
}

// addScreening installs a screening limiter on env's gateway.
func addScreening(t *testing.T, env *testEnv, limit int64) {
	t.Helper()
	l := newLimiter(t, config.FamilyScreening, limit, func() time.Time { return env.now }, env.reporter)
	env.limiters[config.FamilyScreening] = l
	env.gateway.limiters[config.FamilyScreening] = l
}

func TestEvaluate_ConsumesScreeningQuota(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})
	addScreening(t, env, 2)
	ctx := context.Background()
	req := EvaluateRequest{Value: 95.0, Unit: "mg/dL", TestType: "fasting"}

	for i := 0; i < 2; i++ {
		_, err := env.gateway.Evaluate(ctx, "ip", req)
		require.NoError(t, err)
	}

	_, err := env.gateway.Evaluate(ctx, "ip", req)
	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, config.FamilyScreening, limitErr.Family)

	// invalid input still counts against the quota
	_, err = env.gateway.Evaluate(ctx, "other", EvaluateRequest{Value: 95.0, Unit: "g/L", TestType: "fasting"})
	assert.Equal(t, apperror.KindBadInput, kindOf(t, err))
	decision, err := env.limiters[config.FamilyScreening].Peek(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), decision.Remaining)

	env.now = env.now.Add(time.Minute)
	_, err = env.gateway.Evaluate(ctx, "ip", req)
	assert.NoError(t, err)
}

func TestGateway_RecordsModelCalls(t *testing.T) {
	env := newTestEnv(t, 5, 10, Options{})

	_, err := env.gateway.AnalyzeImage(context.Background(), "ip", AnalyzeImageRequest{Image: testImage()})
	require.NoError(t, err)

	calls := env.reporter.GetCollector().GetMetrics("glucogate_model_calls_total")
	require.Len(t, calls, 1)
	assert.Equal(t, EndpointAnalyzeImage, calls[0].Labels["endpoint"])
}

func TestIsHealthTopic(t *testing.T) {
	assert.True(t, IsHealthTopic("Is my GLUCOSE high?"))
	assert.True(t, IsHealthTopic("what should I eat for lunch"))
	assert.True(t, IsHealthTopic("my BP is 140/90"))
	assert.False(t, IsHealthTopic("What's the weather?"))
	assert.False(t, IsHealthTopic("tell me a joke"))
}

func TestDecodeImage(t *testing.T) {
	raw := []byte("hello image")
	encoded := base64.StdEncoding.EncodeToString(raw)

	img, ok := decodeImage(encoded)
	require.True(t, ok)
	assert.Equal(t, raw, img.Data)
	assert.Equal(t, "image/jpeg", img.MIMEType)

	img, ok = decodeImage("data:image/webp;base64," + encoded[:4] + "\n " + encoded[4:])
	require.True(t, ok)
	assert.Equal(t, raw, img.Data)
	assert.Equal(t, "image/webp", img.MIMEType)

	img, ok = decodeImage(strings.TrimRight(encoded, "="))
	require.True(t, ok)
	assert.Equal(t, raw, img.Data)

	_, ok = decodeImage("data:image/png;base64,")
	assert.False(t, ok)
	_, ok = decodeImage("not base64 at all!!")
	assert.False(t, ok)
}
