package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis adapts a go-redis client to the Store interface.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis store for the given address and password.
func NewRedis(addr, password string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})}
}

func (r *Redis) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (r *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	res, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return res, nil
}

func (r *Redis) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	n, err := r.client.HDel(ctx, key, fields...).Result()
	if err != nil {
		return 0, fmt.Errorf("hdel %s: %w", key, err)
	}
	return n, nil
}

func (r *Redis) SAdd(ctx context.Context, key, member string) (bool, error) {
	n, err := r.client.SAdd(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("sadd %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) SRem(ctx context.Context, key, member string) (bool, error) {
	n, err := r.client.SRem(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("srem %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	return members, nil
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Connect builds the networked store and verifies it responds. When the
// server is unreachable it substitutes the in-process fallback so the bot
// stays usable without persistence.
func Connect(ctx context.Context, addr, password string) Store {
	r := NewRedis(addr, password)
	if err := r.Ping(ctx); err != nil {
		slog.Warn("key-value store unreachable, falling back to in-memory storage",
			"addr", addr, "error", err)
		return NewMemory()
	}
	slog.Info("connected to key-value store", "addr", addr)
	return r
}
