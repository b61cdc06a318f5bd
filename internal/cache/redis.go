package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"surfsup-server/internal/config"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second

	keyPrefix     = "surfsup:"
	generationKey = keyPrefix + "generation"
)

// commander is the subset of *redis.Client the cache uses.
type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Redis is a read-through cache. Entries live under a generation number; bumping the
// generation orphans every older entry at once and TTL reclaims them.
type Redis struct {
	client commander
}

// NewRedis connects to cfg.RedisAddr and validates the connection with PING.
func NewRedis(ctx context.Context, cfg config.Config) (*Redis, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("redis: addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) generation(ctx context.Context) (int64, error) {
	v, err := r.client.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis generation %q: %w", v, err)
	}
	return n, nil
}

func (r *Redis) key(ctx context.Context, key string) (string, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%sg%d:%s", keyPrefix, gen, key), nil
}

func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	k, err := r.key(ctx, key)
	if err != nil {
		return false, err
	}
	val, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", k, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", k, err)
	}
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	k, err := r.key(ctx, key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := r.client.Set(ctx, k, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	if err := r.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr generation: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
