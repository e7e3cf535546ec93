package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CachedSource keeps successful forecasts in Redis. Cache failures are logged
// and fall through to the wrapped source.
type CachedSource struct {
	source Source
	redis  redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

var _ Source = (*CachedSource)(nil)

// NewCachedSource creates a new Redis backed cache around source
func NewCachedSource(source Source, client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

// Name returns the name of the underlying source with [Cached] suffix
func (c *CachedSource) Name() string {
	return c.source.Name() + " [Cached]"
}

// cacheKey rounds coordinates to about 1 km so nearby barangays share entries.
func cacheKey(lat, lon float64, days int) string {
	return fmt.Sprintf("forecast:%.2f:%.2f:%d", lat, lon, days)
}

// FetchDaily returns the cached forecast when present, otherwise fetches and
// stores it.
func (c *CachedSource) FetchDaily(ctx context.Context, lat, lon float64, days int) ([]WeatherDay, error) {
	key := cacheKey(lat, lon, days)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []WeatherDay
		if err := json.Unmarshal(data, &cached); err == nil && len(cached) > 0 {
			c.logger.Debug().Str("key", key).Msg("forecast cache hit")
			return cached, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding unreadable forecast cache entry")
	case errors.Is(err, redis.Nil):
		c.logger.Debug().Str("key", key).Msg("forecast cache miss")
	default:
		c.logger.Warn().Err(err).Str("key", key).Msg("forecast cache unavailable")
	}

	out, err := c.source.FetchDaily(ctx, lat, lon, days)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(out); err == nil {
		if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("failed to cache forecast")
		}
	}

	return out, nil
}
