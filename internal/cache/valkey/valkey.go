// Package valkey provides a Valkey/Redis-backed cache implementation.
// It is the driver to use when OTP challenges and rate-limit counters
// must be shared across replicas.
package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/ezeehealth/clinicportal-go/internal/cache"
)

func init() {
	cache.RegisterDriver("valkey", func(config map[string]any) (cache.CacheWithCounter, error) {
		var cfg Config
		if err := mapstructure.Decode(config, &cfg); err != nil {
			return nil, fmt.Errorf("invalid valkey config: %w", err)
		}
		return New(&cfg)
	})
}

// Config holds connection settings for the valkey driver.
type Config struct {
	Address           string `mapstructure:"address"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	DefaultTTLSeconds int    `mapstructure:"default_ttl_seconds"`
}

// Cache is a valkey-backed cache with TTL support.
type Cache struct {
	client     valkeygo.Client
	defaultTTL time.Duration
}

// New connects to the configured valkey server.
func New(cfg *Config) (*Cache, error) {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:6379"
	}

	client, err := valkeygo.NewClient(valkeygo.ClientOption{
		InitAddress:  []string{cfg.Address},
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}

	defaultTTL := 10 * time.Minute
	if cfg.DefaultTTLSeconds > 0 {
		defaultTTL = time.Duration(cfg.DefaultTTLSeconds) * time.Second
	}

	return &Cache{client: client, defaultTTL: defaultTTL}, nil
}

// Get retrieves a value by key.
// Expired keys are indistinguishable from missing ones; both return ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cmd := c.client.B().Set().Key(key).Value(valkeygo.BinaryString(value)).Ex(ttl).Build()
	return c.client.Do(ctx, cmd).Error()
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Increment adds delta to a counter and returns the new value.
// The TTL is applied when the increment creates the key.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	count, err := c.client.Do(ctx, c.client.B().Incrby().Key(key).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, err
	}

	if count == delta {
		expire := c.client.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build()
		if err := c.client.Do(ctx, expire).Error(); err != nil {
			return count, err
		}
	}

	return count, nil
}

// GetCount returns the current counter value.
func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	count, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsInt64()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Reset sets a counter to 0.
func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Close releases the client connection.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

// Ensure Cache implements CacheWithCounter.
var _ cache.CacheWithCounter = (*Cache)(nil)
