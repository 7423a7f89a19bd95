package cachedresolver

import (
	"github.com/go-redis/cache/v8"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to the redis server at the given redis:// URL and
// wraps it for use as a result cache. Commands are traced via
// OpenTelemetry.
func NewRedisClient(redisURL string) (*redis.Client, *cache.Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, err
	}

	client := redis.NewClient(opt)
	client.AddHook(redisotel.NewTracingHook())

	return client, cache.New(&cache.Options{Redis: client}), nil
}
