// Package cachedresolver provides a URL resolver that remembers where URLs
// resolved to, so repeated audits of the same links skip the network.
package cachedresolver

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mccutchen/redirectmap"
)

// CachedResolver is a resolver implementation that caches its results.
type CachedResolver struct {
	cache    Cache
	resolver redirectmap.Interface
}

var _ redirectmap.Interface = &CachedResolver{} // CachedResolver implements redirectmap.Interface

// NewCachedResolver creates a new CachedResolver.
func NewCachedResolver(resolver redirectmap.Interface, cache Cache) *CachedResolver {
	return &CachedResolver{
		cache:    cache,
		resolver: resolver,
	}
}

// Resolve resolves a URL if it is not already cached. Only successful
// resolutions are cached.
func (c *CachedResolver) Resolve(ctx context.Context, givenURL string) (string, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("resolver.cache_name", c.cache.Name()))

	if finalURL, ok := c.cache.Get(ctx, givenURL); ok {
		span.SetAttributes(attribute.String("resolver.cache_result", "hit"))
		return finalURL, nil
	}

	finalURL, err := c.resolver.Resolve(ctx, givenURL)
	if err == nil {
		c.cache.Add(ctx, givenURL, finalURL)
	}

	span.SetAttributes(attribute.String("resolver.cache_result", "miss"))
	return finalURL, err
}
