package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when a key is absent or expired.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis is unreachable.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when a value cannot be encoded or decoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned when an empty key is supplied.
	ErrCacheKeyEmpty = errors.New("cache: key is empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY NAMESPACES AND TTL POLICY
// ══════════════════════════════════════════════════════════════════════════════

// PrefixLeaderboard namespaces every leaderboard key so the whole subsystem
// can be invalidated with a single pattern scan.
const PrefixLeaderboard = "leaderboard:"

// TTLLeaderboardCache bounds staleness of cached rankings. A rebuild normally
// lands sooner via the invalidation path on finalized sessions.
const TTLLeaderboardCache = 5 * time.Minute

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns settings suitable for a local Redis instance.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the host:port address for the Redis client.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Cache wraps a go-redis client with JSON serialization and the error
// vocabulary the rest of the hub speaks. Stored values and pub/sub payloads
// are JSON strings.
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis and verifies the connection with a ping.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return &Cache{client: client}, nil
}

// Client exposes the underlying go-redis client for callers that need raw
// commands (sorted sets, pipelines).
func (c *Cache) Client() *redis.Client { return c.client }

// Close releases the connection pool.
func (c *Cache) Close() error { return c.client.Close() }

// Ping checks liveness of the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

func requireKey(key string) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Keyed values
// ──────────────────────────────────────────────────────────────────────────────

// Set stores a value as JSON under the key with the given TTL.
// A zero TTL keeps the key until explicitly deleted.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := requireKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

// Get reads a JSON value into dest. Absent keys yield ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := requireKey(key); err != nil {
		return err
	}
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

// Exists reports whether the key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if err := requireKey(key); err != nil {
		return false, err
	}
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return n > 0, nil
}

// DeleteByPattern removes every key matching the glob pattern. Uses SCAN
// rather than KEYS so a large keyspace does not block the server. Deletes
// in batches of 100.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) error {
	if err := requireKey(pattern); err != nil {
		return err
	}

	var batch []string
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := c.Delete(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return c.Delete(ctx, batch...)
}

// ──────────────────────────────────────────────────────────────────────────────
// Pub/Sub
// ──────────────────────────────────────────────────────────────────────────────

// Publish serializes the message to JSON and publishes it on the channel.
func (c *Cache) Publish(ctx context.Context, channel string, message interface{}) error {
	if err := requireKey(channel); err != nil {
		return err
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return nil
}

// Subscribe opens a subscription on the given channels. The caller owns the
// returned PubSub and must Close it.
func (c *Cache) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.client.Subscribe(ctx, channels...)
}
