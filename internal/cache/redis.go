// Package cache is a read-through cache for public reads. Without a Redis
// address it degrades to a no-op.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Key(parts ...string) string
}

type redisCache struct {
	client      *redis.Client
	serviceName string
}

func NewRedisCache(client *redis.Client, serviceName string) Cache {
	return &redisCache{client: client, serviceName: serviceName}
}

// NewRedisClient pings addr before handing the client out.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCache) Key(parts ...string) string {
	return fmt.Sprintf("%s:%s", r.serviceName, strings.Join(parts, ":"))
}

type noop struct{}

func Noop() Cache { return noop{} }

func (noop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noop) Delete(context.Context, ...string) error                  { return nil }
func (noop) Key(parts ...string) string                               { return strings.Join(parts, ":") }

// Loader reads through c: a hit is decoded into a T, a miss calls load and
// stores the result for ttl. Cache failures are logged and never fail the
// read.
type Loader struct {
	cache  Cache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewLoader(c Cache, ttl time.Duration, logger *logrus.Logger) *Loader {
	if c == nil {
		c = Noop()
	}
	return &Loader{cache: c, ttl: ttl, logger: logger}
}

func (l *Loader) Key(parts ...string) string {
	return l.cache.Key(parts...)
}

// Invalidate drops keys. Errors are only logged.
func (l *Loader) Invalidate(ctx context.Context, keys ...string) {
	if err := l.cache.Delete(ctx, keys...); err != nil {
		l.logger.WithError(err).WithField("keys", keys).Warn("Cache invalidation failed")
	}
}

func Fetch[T any](ctx context.Context, l *Loader, key string, load func(context.Context) (T, error)) (T, error) {
	if raw, ok, err := l.cache.Get(ctx, key); err != nil {
		l.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		l.logger.WithField("key", key).Warn("Discarding undecodable cache entry")
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if raw, err := json.Marshal(v); err == nil {
		if err := l.cache.Set(ctx, key, raw, l.ttl); err != nil {
			l.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
	return v, nil
}
