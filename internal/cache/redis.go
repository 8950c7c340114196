package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/alphastream-pipeline/internal/models"
)

// ErrCacheMiss is returned when no dashboard is cached
var ErrCacheMiss = errors.New("dashboard not cached")

const dashboardKey = "alphastream:dashboard"

// RedisConfig holds connection settings for the dashboard cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DashboardCache stores the rendered dashboard payload in Redis
type DashboardCache struct {
	cli *redis.Client
	ttl time.Duration
}

// NewDashboardCache creates a cache client. No connection is made until first use.
func NewDashboardCache(cfg RedisConfig) *DashboardCache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return &DashboardCache{cli: rdb, ttl: cfg.TTL}
}

// Get returns the cached dashboard, or ErrCacheMiss
func (c *DashboardCache) Get(ctx context.Context) (*models.Dashboard, error) {
	b, err := c.cli.Get(ctx, dashboardKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read dashboard cache: %w", err)
	}

	var d models.Dashboard
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("failed to decode cached dashboard: %w", err)
	}
	return &d, nil
}

// Set stores the dashboard with the configured TTL
func (c *DashboardCache) Set(ctx context.Context, d *models.Dashboard) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard: %w", err)
	}
	if err := c.cli.Set(ctx, dashboardKey, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write dashboard cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached dashboard so the next read goes to Postgres
func (c *DashboardCache) Invalidate(ctx context.Context) error {
	if err := c.cli.Del(ctx, dashboardKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate dashboard cache: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *DashboardCache) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *DashboardCache) Close() error {
	return c.cli.Close()
}
