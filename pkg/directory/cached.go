package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/fingerprint"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
)

const cacheKeyPrefix = "fern:directory:"

// Cache is the subset of the redis client used for caching search results.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Cached decorates a Client with a TTL cache. Empty results are not cached
// because they are indistinguishable from provider failures.
type Cached struct {
	next     Client
	cache    Cache
	ttl      time.Duration
	provider string
	logger   ectologger.Logger
}

func NewCached(next Client, cache Cache, ttl time.Duration, provider string, logger ectologger.Logger) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl, provider: provider, logger: logger}
}

func (c *Cached) Search(ctx context.Context, query string, hint *models.LatLng) []models.Candidate {
	log := c.logger.WithContext(ctx)
	key := cacheKey(query, hint)

	var cached []models.Candidate
	err := c.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		metrics.RecordDirectoryLookup(c.provider, "cache_hit", 0)
		return cached
	case !errors.Is(err, redis.ErrCacheMiss):
		log.WithError(err).Warn("Directory cache read failed")
	}

	candidates := c.next.Search(ctx, query, hint)
	if len(candidates) == 0 {
		return candidates
	}
	if err := c.cache.SetJSON(ctx, key, candidates, c.ttl); err != nil {
		log.WithError(err).Warn("Directory cache write failed")
	}
	return candidates
}

func cacheKey(query string, hint *models.LatLng) string {
	data := map[string]any{"query": strings.ToLower(strings.TrimSpace(query))}
	if hint != nil {
		data["lat"] = hint.Lat
		data["lng"] = hint.Lng
	}
	return cacheKeyPrefix + fingerprint.Short(data, 32)
}
