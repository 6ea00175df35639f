package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricevault/tierkit/internal/domain"
)

// RedisCache implements Cache using Redis.
// Used as the Pro edition cache and as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, shopID string, key string) ([]byte, error) {
	if shopID == "" {
		return nil, fmt.Errorf("shopID is required")
	}

	fullKey := c.makeKey(shopID, key)
	val, err := c.client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(ctx context.Context, shopID string, key string, value []byte, ttl time.Duration) error {
	if shopID == "" {
		return fmt.Errorf("shopID is required")
	}

	fullKey := c.makeKey(shopID, key)
	return c.client.Set(ctx, fullKey, value, ttl).Err()
}

// Delete removes a value from Redis.
func (c *RedisCache) Delete(ctx context.Context, shopID string, key string) error {
	if shopID == "" {
		return fmt.Errorf("shopID is required")
	}

	fullKey := c.makeKey(shopID, key)
	return c.client.Del(ctx, fullKey).Err()
}

// GetConfiguration retrieves a cached parsed discount configuration.
func (c *RedisCache) GetConfiguration(ctx context.Context, shopID string, productID string) (*domain.DiscountConfiguration, error) {
	data, err := c.Get(ctx, shopID, "cfg:"+productID)
	if err != nil || data == nil {
		return nil, err
	}

	var cfg domain.DiscountConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetConfiguration caches a parsed discount configuration.
func (c *RedisCache) SetConfiguration(ctx context.Context, shopID string, productID string, cfg *domain.DiscountConfiguration, ttl time.Duration) error {
	bytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.Set(ctx, shopID, "cfg:"+productID, bytes, ttl)
}

// IncrementCounter atomically increments a counter using Redis INCR with EXPIRE.
func (c *RedisCache) IncrementCounter(ctx context.Context, shopID string, key string, window time.Duration) (int64, error) {
	if shopID == "" {
		return 0, fmt.Errorf("shopID is required")
	}

	fullKey := c.makeKey(shopID, "counter:"+key)

	// Use Lua script for atomic increment with TTL
	script := redis.NewScript(`
		local current = redis.call('INCR', KEYS[1])
		if current == 1 then
			redis.call('PEXPIRE', KEYS[1], ARGV[1])
		end
		return current
	`)

	result, err := script.Run(ctx, c.client, []string{fullKey}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}

	return result, nil
}

// GetCounter reads a counter without bumping it.
func (c *RedisCache) GetCounter(ctx context.Context, shopID string, key string) (int64, error) {
	if shopID == "" {
		return 0, fmt.Errorf("shopID is required")
	}

	fullKey := c.makeKey(shopID, "counter:"+key)
	val, err := c.client.Get(ctx, fullKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) makeKey(shopID, key string) string {
	return "tierkit:" + shopID + ":" + key
}
