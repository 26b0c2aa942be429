package memory

import (
	"context"
	"sync"
	"time"

	"github.com/glucogate/core"
)

// Backend keeps limiter windows in process memory. Windows are lost on
// restart.
type Backend struct {
	store map[string]core.State
	mu    sync.RWMutex
}

// NewBackend creates a new in-memory backend
func NewBackend() *Backend {
	return &Backend{
		store: make(map[string]core.State),
	}
}

// Get retrieves a copy of the window stored for key
func (b *Backend) Get(ctx context.Context, key string) (*core.State, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	state, exists := b.store[key]
	if !exists {
		return nil, nil
	}
	return &state, nil
}

// Set stores a copy of state for key
func (b *Backend) Set(ctx context.Context, key string, state *core.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store[key] = *state
	return nil
}

// Delete removes the state for a key
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.store, key)
	return nil
}

// Sweep drops every window that has ended at now and returns how many were
// removed.
func (b *Backend) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, state := range b.store {
		if state.Expired(now) {
			delete(b.store, key)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired windows every interval until ctx is done.
func (b *Backend) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.Sweep(now)
		}
	}
}

// Close performs any necessary cleanup
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = make(map[string]core.State)
	return nil
}

// Stats returns statistics about the backend
func (b *Backend) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]interface{}{
		"keys_count": len(b.store),
	}
}
