package cachedresolver

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/cache/v8"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const redisCacheVersion = "1"

// Cache is a generic cache interface mapping a given URL to the final URL it
// resolved to.
type Cache interface {
	Add(ctx context.Context, key string, value string)
	Get(ctx context.Context, key string) (value string, ok bool)
	Name() string
}

// RedisCache caches resolved URLs in redis.
type RedisCache struct {
	cache     *cache.Cache
	logger    zerolog.Logger
	namespace string
	ttl       time.Duration
}

var _ Cache = &RedisCache{} // RedisCache implements Cache

// NewRedisCache creates a new RedisCache whose entries will expire after the
// given TTL. Cache errors are never fatal; they are logged and treated as
// misses.
func NewRedisCache(cache *cache.Cache, ttl time.Duration, logger zerolog.Logger, opts ...Option) *RedisCache {
	c := &RedisCache{
		cache:  cache,
		logger: logger,
		ttl:    ttl,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option customizes a RedisCache.
type Option func(*RedisCache)

// WithNamespace partitions the cache, so that resolvers configured
// differently (e.g. with a lower redirect limit) never see each other's
// entries. See Fingerprint.
func WithNamespace(namespace string) Option {
	return func(c *RedisCache) {
		c.namespace = namespace
	}
}

// Fingerprint returns a short, stable identifier for a set of resolver
// settings, suitable for use with WithNamespace.
func Fingerprint(settings ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(settings, "\x00")))
	return fmt.Sprintf("%x", sum[:8])
}

// Add adds a resolved URL to the cache.
func (c *RedisCache) Add(ctx context.Context, key string, value string) {
	span := trace.SpanFromContext(ctx)

	err := c.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(c.namespace, key),
		Value: value,
		TTL:   c.ttl,
	})
	if err != nil {
		span.SetAttributes(attribute.String("cache.error", err.Error()))
		c.logger.Warn().Err(err).Str("url", key).Msg("cache add failed")
	}
}

// Get gets a resolved URL from the cache, returning a bool indicating
// whether it was present.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	span := trace.SpanFromContext(ctx)

	var value string
	if err := c.cache.Get(ctx, redisCacheKey(c.namespace, key), &value); err != nil {
		if err != cache.ErrCacheMiss {
			span.SetAttributes(attribute.String("cache.error", err.Error()))
			c.logger.Warn().Err(err).Str("url", key).Msg("cache get failed")
		}
		return "", false
	}
	return value, true
}

// Name returns the name of the cache, for instrumentation purposes.
func (c *RedisCache) Name() string {
	return "redis"
}

func redisCacheKey(namespace, key string) string {
	if namespace == "" {
		return fmt.Sprintf("redirectmap:%s:%x", redisCacheVersion, sha256.Sum256([]byte(key)))
	}
	return fmt.Sprintf("redirectmap:%s:%s:%x", redisCacheVersion, namespace, sha256.Sum256([]byte(key)))
}
