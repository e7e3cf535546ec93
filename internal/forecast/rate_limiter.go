package forecast

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedSource wraps a Source with a token bucket so bursts of dashboard
// requests do not exceed the weather API's fair use limits.
type RateLimitedSource struct {
	source  Source
	limiter *rate.Limiter
	name    string
}

var _ Source = (*RateLimitedSource)(nil)

// NewRateLimitedSource creates a new rate limited source
// rps is the maximum requests per second allowed
// burst is the maximum burst size allowed
func NewRateLimitedSource(source Source, rps float64, burst int) *RateLimitedSource {
	return &RateLimitedSource{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    fmt.Sprintf("%s [Rate Limited]", source.Name()),
	}
}

// FetchDaily waits for a token, then forwards to the wrapped source
func (r *RateLimitedSource) FetchDaily(ctx context.Context, lat, lon float64, days int) ([]WeatherDay, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.source.FetchDaily(ctx, lat, lon, days)
}

// Name returns the source name
func (r *RateLimitedSource) Name() string {
	return r.name
}
