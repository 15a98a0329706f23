package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"airline_ops/internal/fleet"
	"airline_ops/internal/models"

	"github.com/redis/go-redis/v9"
)

// StateKey holds the latest JSON snapshot in Redis.
const StateKey = "airline:state"

// RedisClient is the part of Redis the cache needs, so tests can fake it.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// StateCache publishes each tick's state for dashboards. It is never read
// back by the engine; the save file stays the source of truth.
type StateCache struct {
	client     RedisClient
	expiration time.Duration
}

func NewStateCache(client RedisClient) *StateCache {
	return &StateCache{client: client, expiration: 10 * time.Minute}
}

func (c *StateCache) Persist(ctx context.Context, st models.GameState, _ fleet.TickResult) error {
	return c.Publish(ctx, st)
}

func (c *StateCache) Publish(ctx context.Context, st models.GameState) error {
	data, err := json.Marshal(&st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return c.client.Set(ctx, StateKey, data, c.expiration)
}

// Latest returns the last published state.
func (c *StateCache) Latest(ctx context.Context) (models.GameState, error) {
	var st models.GameState
	data, err := c.client.Get(ctx, StateKey)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return st, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return st, nil
}

// Redis adapts a go-redis client to RedisClient.
type Redis struct {
	*redis.Client
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	return r.Client.Get(ctx, key).Result()
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.Client.Set(ctx, key, value, expiration).Err()
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// ConnectRedis dials url when set, addr otherwise, and pings the server.
func ConnectRedis(ctx context.Context, url, addr string) (*Redis, error) {
	logger := slog.With("component", "redis", "operation", "connect")

	var opts *redis.Options
	if url != "" {
		logger.Debug("Connecting to Redis using URL")
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts = parsed
	} else {
		logger.Debug("Connecting to Redis using address", "addr", addr)
		opts = &redis.Options{
			Addr:         addr,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     4,
		}
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	logger.Info("Redis connection established")
	return &Redis{rdb}, nil
}
