package forecast

import (
	"context"
)

// Source fetches a daily weather forecast for a coordinate.
type Source interface {
	Name() string
	FetchDaily(ctx context.Context, lat, lon float64, days int) ([]WeatherDay, error)
}
