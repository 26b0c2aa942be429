package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glucogate/backend/memory"
	"github.com/glucogate/backend/redis"
	"github.com/glucogate/config"
	"github.com/glucogate/core"
	"github.com/glucogate/gateway"
	"github.com/glucogate/gemini"
	"github.com/glucogate/glucose"
	"github.com/glucogate/logger"
	"github.com/glucogate/metrics"
	"github.com/glucogate/strategy/fixedwindow"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const janitorInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, logCloser, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	err = run(cfg, appLogger)
	if err != nil {
		appLogger.Error("Server stopped with error", "error", err)
	}
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := initBackend(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()

	reporter, metricsHandler, collector := initMetrics(cfg.Metrics)

	limiters, err := initLimiters(backend, reporter, cfg.Limits)
	if err != nil {
		return fmt.Errorf("init limiters: %w", err)
	}

	model, err := gemini.NewClient(ctx, gemini.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	gw, err := gateway.New(gateway.Deps{
		Model:    model,
		Limiters: limiters,
		Metrics:  reporter,
		Logger:   logger,
		Sink:     &logSink{logger: logger},
	}, gateway.Options{ModelTimeout: cfg.Gemini.Timeout})
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := gateway.NewRouter(gw, gateway.RouterOptions{
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		MetricsHandler: metricsHandler,
		Collector:      collector,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			"addr", srv.Addr,
			"model", model.Name(),
			"store", cfg.Store.Type,
			"metrics", cfg.Metrics.Backend,
		)
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func initBackend(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (core.Backend, error) {
	switch cfg.Type {
	case "redis":
		backend, err := redis.NewBackendFromURL(cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		logger.Info("Using Redis store", "prefix", cfg.Prefix)
		return backend, nil
	case "memory":
		backend := memory.NewBackend()
		go backend.RunJanitor(ctx, janitorInterval)
		logger.Info("Using in-memory store")
		return backend, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// initMetrics returns the reporter plus what the router should expose for
// it: the scrape handler for Prometheus, the sample collector for memory.
func initMetrics(cfg config.MetricsConfig) (metrics.MetricsReporter, http.Handler, metrics.MetricsCollector) {
	switch cfg.Backend {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return metrics.NewPrometheusReporter(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
	case "memory":
		reporter := metrics.NewGenericReporter()
		return reporter, nil, reporter.GetCollector()
	default:
		return metrics.NewNoOpReporter(), nil, nil
	}
}

func initLimiters(backend core.Backend, reporter core.MetricsReporter, limits map[string]config.LimitConfig) (map[string]core.RateLimiter, error) {
	limiters := make(map[string]core.RateLimiter, len(limits))
	for family, limit := range limits {
		limiterConfig := core.Config{
			Limit:     limit.Limit,
			Window:    limit.Window,
			KeyPrefix: family,
		}
		limiter, err := core.NewLimiter(backend, fixedwindow.NewStrategy(limiterConfig), limiterConfig, reporter)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", family, err)
		}
		limiters[family] = limiter
	}
	return limiters, nil
}

// logSink records evaluated readings in the log; there is no persistent
// screening store.
type logSink struct {
	logger *slog.Logger
}

func (s *logSink) Accept(ctx context.Context, e glucose.Evaluation) error {
	attrs := []any{
		"value", e.Reading.Value,
		"unit", e.Reading.Unit,
		"test_type", e.Reading.TestType,
	}
	if e.Classification != nil {
		attrs = append(attrs, "level", e.Classification.Level)
	}
	s.logger.InfoContext(ctx, "Screening evaluated", attrs...)
	return nil
}
