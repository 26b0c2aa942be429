package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glucogate/logger"
	"gopkg.in/yaml.v3"
)

// Limiter families served by the gateway.
const (
	FamilyVision    = "vision"
	FamilyChat      = "chat"
	FamilyScreening = "screening"
)

var knownFamilies = map[string]bool{
	FamilyVision:    true,
	FamilyChat:      true,
	FamilyScreening: true,
}

// Config is the full runtime configuration of the server.
type Config struct {
	Server  ServerConfig
	Gemini  GeminiConfig
	Store   StoreConfig
	Metrics MetricsConfig
	Log     logger.Config
	Limits  map[string]LimitConfig
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	TrustedProxies  []string
}

// GeminiConfig holds the model provider settings.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// StoreConfig selects the limiter backend.
type StoreConfig struct {
	Type     string // memory or redis
	RedisURL string
	Prefix   string
}

// MetricsConfig selects the metrics reporter.
type MetricsConfig struct {
	Backend string // prometheus, memory or none
}

// LimitConfig is one limiter family: Limit requests per Window.
type LimitConfig struct {
	Limit  int64         `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

type limitsFile struct {
	Limits map[string]LimitConfig `yaml:"limits"`
}

// DefaultLimits returns the built-in quota per family.
func DefaultLimits() map[string]LimitConfig {
	return map[string]LimitConfig{
		FamilyVision:    {Limit: 5, Window: time.Minute},
		FamilyChat:      {Limit: 10, Window: time.Minute},
		FamilyScreening: {Limit: 5, Window: time.Minute},
	}
}

// Load reads configuration from environment variables and, when
// LIMITS_FILE is set, overrides limits from that YAML file.
func Load() (*Config, error) {
	timeout, err := getDurationOrDefault("MODEL_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	shutdown, err := getDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			ShutdownTimeout: shutdown,
			CORSOrigins:     splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
			TrustedProxies:  splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		Gemini: GeminiConfig{
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout: timeout,
		},
		Store: StoreConfig{
			Type:     strings.ToLower(getEnvOrDefault("STORE_TYPE", "memory")),
			RedisURL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
			Prefix:   getEnvOrDefault("REDIS_PREFIX", "glucogate"),
		},
		Metrics: MetricsConfig{
			Backend: strings.ToLower(getEnvOrDefault("METRICS_BACKEND", "prometheus")),
		},
		Log: logger.Config{
			Level:      getEnvOrDefault("LOG_LEVEL", "info"),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "stdout"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Limits: DefaultLimits(),
	}

	if path := os.Getenv("LIMITS_FILE"); path != "" {
		limits, err := LoadLimits(path)
		if err != nil {
			return nil, err
		}
		for family, limit := range limits {
			cfg.Limits[family] = limit
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLimits reads the limits section of a YAML file.
func LoadLimits(path string) (map[string]LimitConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read limits file: %w", err)
	}

	var file limitsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse limits file: %w", err)
	}

	for family, limit := range file.Limits {
		if err := limit.Validate(); err != nil {
			return nil, fmt.Errorf("limits.%s: %w", family, err)
		}
	}
	return file.Limits, nil
}

// Validate checks the limit and window are positive.
func (l LimitConfig) Validate() error {
	if l.Limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	if l.Window <= 0 {
		return fmt.Errorf("window must be a positive duration")
	}
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be positive")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("SERVER_PORT must be numeric: %w", err)
	}

	switch c.Store.Type {
	case "memory":
	case "redis":
		if c.Store.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_TYPE=redis")
		}
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.Store.Type)
	}

	switch c.Metrics.Backend {
	case "prometheus", "memory", "none":
	default:
		return fmt.Errorf("unknown METRICS_BACKEND %q", c.Metrics.Backend)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	for _, family := range []string{FamilyVision, FamilyChat} {
		if _, ok := c.Limits[family]; !ok {
			return fmt.Errorf("limits.%s is required", family)
		}
	}
	for family, limit := range c.Limits {
		if !knownFamilies[family] {
			return fmt.Errorf("limits.%s: unknown family", family)
		}
		if err := limit.Validate(); err != nil {
			return fmt.Errorf("limits.%s: %w", family, err)
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
