package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glucogate/apperror"
	"github.com/glucogate/metrics"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RouterOptions configure the HTTP surface.
type RouterOptions struct {
	CORSOrigins    []string
	TrustedProxies []string
	MetricsHandler http.Handler             // served at /metrics when set
	Collector      metrics.MetricsCollector // served at /metrics/json when set
	Logger         *slog.Logger
}

// Handler adapts a Gateway to gin.
type Handler struct {
	gateway *Gateway
	metrics metrics.MetricsReporter
	logger  *slog.Logger
	errors  *apperror.Handler
}

// NewHandler creates the HTTP handlers for gw.
func NewHandler(gw *Gateway) *Handler {
	return &Handler{
		gateway: gw,
		metrics: gw.metrics,
		logger:  gw.logger,
		errors:  gw.errors,
	}
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(gw *Gateway, opts RouterOptions) (*gin.Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = gw.logger
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(logger))
	r.Use(newCORS(opts.CORSOrigins))

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	})

	h := NewHandler(gw)

	api := r.Group("/api")
	{
		ai := api.Group("/ai")
		ai.POST("/analyze-image", h.AnalyzeImage)
		ai.POST("/chat", h.Chat)
		ai.GET("/quota/:family", h.Quota)

		api.POST("/glucose/evaluate", h.Evaluate)
	}

	r.GET("/healthz", h.Health)

	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}
	if opts.Collector != nil {
		collector := opts.Collector
		r.GET("/metrics/json", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"summary": collector.GetMetricsSummary(),
				"metrics": collector.Collect(),
			})
		})
	}

	return r, nil
}

func newCORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// AnalyzeImage handles POST /api/ai/analyze-image.
func (h *Handler) AnalyzeImage(c *gin.Context) {
	start := time.Now()

	var req AnalyzeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, EndpointAnalyzeImage, start, apperror.Wrap(err, apperror.KindBadInput, "Invalid request"))
		return
	}

	result, err := h.gateway.AnalyzeImage(c.Request.Context(), c.ClientIP(), req)
	if err != nil {
		h.fail(c, EndpointAnalyzeImage, start, err)
		return
	}

	h.succeed(c, EndpointAnalyzeImage, start, result)
}

// Chat handles POST /api/ai/chat.
func (h *Handler) Chat(c *gin.Context) {
	start := time.Now()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, EndpointChat, start, apperror.Wrap(err, apperror.KindBadInput, "Invalid request"))
		return
	}

	result, err := h.gateway.Chat(c.Request.Context(), c.ClientIP(), req)
	if err != nil {
		h.fail(c, EndpointChat, start, err)
		return
	}

	h.succeed(c, EndpointChat, start, result)
}

// Quota handles GET /api/ai/quota/:family.
func (h *Handler) Quota(c *gin.Context) {
	start := time.Now()
	family := c.Param("family")

	if !h.gateway.HasFamily(family) {
		h.metrics.RecordRequest(EndpointQuota, "not_found", time.Since(start))
		c.JSON(http.StatusNotFound, gin.H{"message": msgUnknownFamily, "code": "UNKNOWN_FAMILY"})
		return
	}

	status, err := h.gateway.Quota(c.Request.Context(), family, c.ClientIP())
	if err != nil {
		h.fail(c, EndpointQuota, start, err)
		return
	}

	h.succeed(c, EndpointQuota, start, status)
}

// Evaluate handles POST /api/glucose/evaluate.
func (h *Handler) Evaluate(c *gin.Context) {
	start := time.Now()

	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, EndpointEvaluate, start, apperror.Wrap(err, apperror.KindBadInput, "Invalid request"))
		return
	}

	evaluation, err := h.gateway.Evaluate(c.Request.Context(), c.ClientIP(), req)
	if err != nil {
		h.fail(c, EndpointEvaluate, start, err)
		return
	}

	h.succeed(c, EndpointEvaluate, start, evaluation)
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) succeed(c *gin.Context, endpoint string, start time.Time, body any) {
	h.metrics.RecordRequest(endpoint, "ok", time.Since(start))
	c.JSON(http.StatusOK, body)
}

// fail logs err in full and writes only its category to the caller.
func (h *Handler) fail(c *gin.Context, endpoint string, start time.Time, err error) {
	appErr := apperror.As(err).WithContext("endpoint", endpoint)
	if id := c.GetString(requestIDKey); id != "" {
		appErr.WithContext("request_id", id)
	}
	h.errors.Handle(c.Request.Context(), appErr)
	h.metrics.RecordRequest(endpoint, string(appErr.Kind), time.Since(start))

	body := gin.H{
		"message": appErr.Message,
		"code":    appErr.Code,
	}

	var limitErr *LimitError
	if errors.As(err, &limitErr) {
		d := limitErr.Decision
		retry := strconv.FormatInt(d.RetryAfterSeconds(), 10)
		c.Header("Retry-After", retry)
		c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		body["retryAfterSeconds"] = d.RetryAfterSeconds()
	}

	c.AbortWithStatusJSON(appErr.Status(), body)
}

const requestIDKey = "request_id"

// RequestID tags every request with an id, reusing the caller's
// X-Request-ID when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}
