package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glucogate/core"
	"github.com/redis/go-redis/v9"
)

// minTTL keeps a key alive long enough to be read back when its window is
// about to close.
const minTTL = time.Second

// Backend implements the core.Backend interface using Redis. Each window is
// stored as JSON and expires with the window itself.
type Backend struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewBackend creates a new Redis backend
func NewBackend(client *redis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = "glucogate"
	}
	return &Backend{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// NewBackendFromURL creates a new Redis backend from a connection URL
func NewBackendFromURL(url, prefix string) (*Backend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewBackend(client, prefix), nil
}

// Get retrieves the window for a key, nil when none is stored
func (b *Backend) Get(ctx context.Context, key string) (*core.State, error) {
	data, err := b.client.Get(ctx, b.makeKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key %s from Redis: %w", key, err)
	}

	var state core.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state for key %s: %w", key, err)
	}

	return &state, nil
}

// Set stores the window for a key with a TTL that ends at its ResetAt
func (b *Backend) Set(ctx context.Context, key string, state *core.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state for key %s: %w", key, err)
	}

	ttl := state.ResetAt.Sub(b.now())
	if ttl < minTTL {
		ttl = minTTL
	}

	if err := b.client.Set(ctx, b.makeKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in Redis: %w", key, err)
	}

	return nil
}

// Delete removes the state for a key from Redis
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s from Redis: %w", key, err)
	}

	return nil
}

// Ping checks that Redis is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (b *Backend) Close() error {
	return b.client.Close()
}

// makeKey creates a Redis key with the configured prefix
func (b *Backend) makeKey(key string) string {
	return fmt.Sprintf("%s:%s", b.prefix, key)
}

// GetStats returns Redis connection statistics
func (b *Backend) GetStats() map[string]interface{} {
	stats := b.client.PoolStats()
	return map[string]interface{}{
		"total_connections": stats.TotalConns,
		"idle_connections":  stats.IdleConns,
		"stale_connections": stats.StaleConns,
	}
}
