package fixedwindow

import (
	"context"
	"time"

	"github.com/glucogate/core"
)

// Strategy implements a fixed-window counter: at most Limit requests per
// Window, counted from the first request of the window.
type Strategy struct {
	config core.Config
}

// NewStrategy creates a new fixed-window strategy
func NewStrategy(config core.Config) *Strategy {
	return &Strategy{
		config: config,
	}
}

// Calculate consumes one request from state when the window has room.
// A limited decision does not touch state.
func (s *Strategy) Calculate(ctx context.Context, state *core.State, now time.Time) (core.Decision, error) {
	s.roll(state, now)

	if state.Count >= s.config.Limit {
		return s.limited(state, now), nil
	}

	state.Count++

	return core.Decision{
		Limited:   false,
		Limit:     s.config.Limit,
		Remaining: s.config.Limit - state.Count,
		ResetAt:   state.ResetAt,
	}, nil
}

// Preview calculates the decision without modifying state
func (s *Strategy) Preview(ctx context.Context, state *core.State, now time.Time) (core.Decision, error) {
	view := *state
	s.roll(&view, now)

	if view.Count >= s.config.Limit {
		return s.limited(&view, now), nil
	}

	return core.Decision{
		Limited:   false,
		Limit:     s.config.Limit,
		Remaining: s.config.Limit - view.Count,
		ResetAt:   view.ResetAt,
	}, nil
}

// roll starts a new window once now reaches ResetAt.
func (s *Strategy) roll(state *core.State, now time.Time) {
	if state.ResetAt.IsZero() || state.Expired(now) {
		state.Count = 0
		state.ResetAt = now.Add(s.config.Window)
	}
}

func (s *Strategy) limited(state *core.State, now time.Time) core.Decision {
	return core.Decision{
		Limited:    true,
		Limit:      s.config.Limit,
		Remaining:  0,
		ResetAt:    state.ResetAt,
		RetryAfter: state.ResetAt.Sub(now),
	}
}
