package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require shopID for strict multi-shop isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, shopID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, shopID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, shopID string, key string) error

	// GetConfiguration retrieves a cached parsed discount configuration.
	GetConfiguration(ctx context.Context, shopID string, productID string) (*DiscountConfiguration, error)

	// SetConfiguration caches a parsed discount configuration so evaluation
	// calls skip re-parsing the stored metafield blob.
	SetConfiguration(ctx context.Context, shopID string, productID string, cfg *DiscountConfiguration, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for windowed evaluation counters (GET /stats).
	IncrementCounter(ctx context.Context, shopID string, key string, window time.Duration) (int64, error)

	// GetCounter reads the current value of a windowed counter without
	// bumping it. Returns 0 when the counter is absent or expired.
	GetCounter(ctx context.Context, shopID string, key string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community edition)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro edition)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
