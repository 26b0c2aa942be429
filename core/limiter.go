package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter implements the RateLimiter interface. Check and Reset are
// serialized within the process; nothing coordinates separate processes
// sharing one backend.
type Limiter struct {
	backend  Backend
	strategy Strategy
	config   Config
	metrics  MetricsReporter
	now      func() time.Time
	mu       sync.RWMutex
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now as the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a new rate limiter with the given components
func NewLimiter(backend Backend, strategy Strategy, config Config, metrics MetricsReporter, opts ...Option) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limiter config: %w", err)
	}
	if backend == nil {
		return nil, fmt.Errorf("invalid limiter config: backend is required")
	}
	if strategy == nil {
		return nil, fmt.Errorf("invalid limiter config: strategy is required")
	}

	l := &Limiter{
		backend:  backend,
		strategy: strategy,
		config:   config,
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check consumes one unit for key. A limited decision leaves the stored
// window untouched.
func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	storeKey := l.storeKey(key)
	now := l.now()

	state, err := l.load(ctx, storeKey, now)
	if err != nil {
		return Decision{}, err
	}

	decision, err := l.strategy.Calculate(ctx, state, now)
	if err != nil {
		return Decision{}, err
	}

	if !decision.Limited {
		if err := l.backend.Set(ctx, storeKey, state); err != nil {
			return Decision{}, fmt.Errorf("store window for %s: %w", storeKey, err)
		}
	}

	if l.metrics != nil {
		l.metrics.RecordCheck(l.config.KeyPrefix, decision.Limited, decision.Remaining)
	}

	return decision, nil
}

// Peek returns the current usage state without modifying anything
func (l *Limiter) Peek(ctx context.Context, key string) (Decision, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	state, err := l.load(ctx, l.storeKey(key), now)
	if err != nil {
		return Decision{}, err
	}

	decision, err := l.strategy.Preview(ctx, state, now)
	if err != nil {
		return Decision{}, err
	}

	if l.metrics != nil {
		l.metrics.RecordPeek(l.config.KeyPrefix, decision.Remaining)
	}

	return decision, nil
}

// Reset discards the window for key
func (l *Limiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	storeKey := l.storeKey(key)
	if err := l.backend.Delete(ctx, storeKey); err != nil {
		return fmt.Errorf("reset window for %s: %w", storeKey, err)
	}

	if l.metrics != nil {
		l.metrics.RecordReset(l.config.KeyPrefix)
	}

	return nil
}

// Config returns the current configuration
func (l *Limiter) Config() Config {
	return l.config
}

// load returns the live window for storeKey, starting a fresh one when
// nothing is stored or the stored window has ended.
func (l *Limiter) load(ctx context.Context, storeKey string, now time.Time) (*State, error) {
	state, err := l.backend.Get(ctx, storeKey)
	if err != nil {
		return nil, fmt.Errorf("load window for %s: %w", storeKey, err)
	}
	if state == nil || state.Expired(now) {
		state = &State{
			Count:   0,
			ResetAt: now.Add(l.config.Window),
		}
	}
	return state, nil
}

func (l *Limiter) storeKey(key string) string {
	if l.config.KeyPrefix == "" {
		return key
	}
	return l.config.KeyPrefix + ":" + key
}
