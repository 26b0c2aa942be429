package core

import (
	"context"
	"fmt"
	"time"
)

// Decision represents the result of a rate limiting decision
type Decision struct {
	Limited    bool          // Whether the request was refused
	Limit      int64         // Maximum number of requests per window
	Remaining  int64         // Requests still available after this operation
	ResetAt    time.Time     // When the current window ends
	RetryAfter time.Duration // How long to wait before retrying (zero unless limited)
}

// RetryAfterSeconds returns RetryAfter in whole seconds, rounded up.
func (d Decision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	secs := int64(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// RateLimiter defines the main interface for rate limiting operations
type RateLimiter interface {
	// Check consumes one unit for the key unless the key is limited
	Check(ctx context.Context, key string) (Decision, error)

	// Peek returns the current usage state without modifying anything
	Peek(ctx context.Context, key string) (Decision, error)

	// Reset discards the window for the key
	Reset(ctx context.Context, key string) error
}

// Backend defines the storage interface for rate limiting data
type Backend interface {
	// Get retrieves the current state for a key, nil if absent
	Get(ctx context.Context, key string) (*State, error)

	// Set stores the state for a key
	Set(ctx context.Context, key string, state *State) error

	// Delete removes the state for a key
	Delete(ctx context.Context, key string) error

	// Close performs any necessary cleanup
	Close() error
}

// State is the fixed-window record stored per key.
type State struct {
	Count   int64     `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Expired reports whether the window has ended at now.
func (s *State) Expired(now time.Time) bool {
	return !now.Before(s.ResetAt)
}

// Strategy defines the rate limiting algorithm interface
type Strategy interface {
	// Calculate determines if a request should be allowed and updates state
	Calculate(ctx context.Context, state *State, now time.Time) (Decision, error)

	// Preview calculates the decision without modifying state
	Preview(ctx context.Context, state *State, now time.Time) (Decision, error)
}

// Config holds configuration for a limiter family
type Config struct {
	Limit     int64         // Maximum number of requests per window
	Window    time.Duration // Window length
	KeyPrefix string        // Namespace prepended to every key
}

// Validate checks that the limit and window are usable.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	return nil
}

// MetricsReporter defines the interface for reporting limiter metrics
type MetricsReporter interface {
	// RecordCheck records a check decision
	RecordCheck(family string, limited bool, remaining int64)

	// RecordPeek records a peek operation
	RecordPeek(family string, remaining int64)

	// RecordReset records a reset operation
	RecordReset(family string)
}
