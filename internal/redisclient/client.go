package redisclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/user00265/hamtools/internal/config"
)

// SnapshotKey holds the raw country file shared between replicas.
const SnapshotKey = "hamtools:cty:dat"

// SnapshotSourceKey holds the URL the shared country file came from.
const SnapshotSourceKey = "hamtools:cty:source"

// Client holds the Redis client instance.
type Client struct {
	*redis.Client
	expiry time.Duration
}

// NewClient initializes and returns a new Redis client based on configuration.
// It returns nil, nil when Redis is disabled.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host must be specified when Redis is enabled")
	}

	addr := net.JoinHostPort(cfg.Host, cfg.Port)

	options := &redis.Options{
		Addr:         addr,
		Username:     cfg.User,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     4,
		MinIdleConns: 1,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	}

	if cfg.UseTLS {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
	}

	rdb := NewRedisClient(options)

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Client{Client: rdb, expiry: cfg.CtyExpiry}, nil
}

// NewRedisClient is a variable wrapper around redis.NewClient so tests can override it.
var NewRedisClient = func(opt *redis.Options) *redis.Client {
	return redis.NewClient(opt)
}

// PutSnapshot stores the raw country file and its source for other
// replicas. A zero expiry keeps the keys until overwritten.
func (c *Client) PutSnapshot(ctx context.Context, data []byte, source string) error {
	_, err := c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, SnapshotKey, data, c.expiry)
		p.Set(ctx, SnapshotSourceKey, source, c.expiry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store cty snapshot in Redis: %w", err)
	}
	return nil
}

// GetSnapshot returns the shared country file. ok is false when no
// snapshot is stored.
func (c *Client) GetSnapshot(ctx context.Context) (data []byte, source string, ok bool, err error) {
	data, err = c.Get(ctx, SnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read cty snapshot from Redis: %w", err)
	}
	source, err = c.Get(ctx, SnapshotSourceKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", false, fmt.Errorf("failed to read cty snapshot source from Redis: %w", err)
	}
	return data, source, true, nil
}

// IsConnected reports whether Redis answers a ping. It is safe on a nil client.
func (c *Client) IsConnected(ctx context.Context) bool {
	if c == nil || c.Client == nil {
		return false
	}
	return c.Ping(ctx).Err() == nil
}

// HealthStatus describes the Redis connection for the stats endpoint.
func (c *Client) HealthStatus(ctx context.Context) string {
	if c == nil || c.Client == nil {
		return "disabled"
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}
