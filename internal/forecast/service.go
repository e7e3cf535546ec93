package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Poyyy414/ByteTech/internal/apperr"
	"github.com/Poyyy414/ByteTech/internal/database"
)

// BarangayStore resolves a barangay to its coordinate.
type BarangayStore interface {
	GetBarangay(ctx context.Context, id int64) (*database.Barangay, error)
}

// Service produces per-barangay carbon level forecasts.
type Service struct {
	barangays BarangayStore
	source    Source
	days      int
	timeout   time.Duration
	location  *time.Location
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a forecast service. Calls to source are bounded by
// timeout; location decides which calendar day placeholder forecasts start on.
func NewService(barangays BarangayStore, source Source, days int, timeout time.Duration, location *time.Location, logger zerolog.Logger) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		barangays: barangays,
		source:    source,
		days:      days,
		timeout:   timeout,
		location:  location,
		logger:    logger,
		now:       time.Now,
	}
}

// Weekly returns the forecast for a barangay. An unknown barangay is a
// not found error. A failing weather source never fails the call; the
// forecast degrades to placeholder days instead.
func (s *Service) Weekly(ctx context.Context, barangayID int64) (*Weekly, error) {
	b, err := s.barangays.GetBarangay(ctx, barangayID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperr.NotFound("barangay %d not found", barangayID)
	}
	if err != nil {
		return nil, apperr.Store("failed to load barangay", err)
	}

	days, err := s.fetch(ctx, b)
	degraded := err != nil
	if degraded {
		s.logger.Warn().
			Err(apperr.External("weather source unavailable", err)).
			Int64("barangay_id", b.ID).
			Msg("serving placeholder forecast")
		days = Placeholder(s.now().In(s.location), s.days)
	}

	return &Weekly{
		BarangayID:   b.ID,
		BarangayName: b.Name,
		ForecastDays: len(days),
		Forecast:     days,
		Degraded:     degraded,
	}, nil
}

func (s *Service) fetch(ctx context.Context, b *database.Barangay) ([]Day, error) {
	if s.source == nil {
		return nil, errors.New("no weather source configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	weather, err := s.source.FetchDaily(ctx, b.Latitude, b.Longitude, s.days)
	if err != nil {
		return nil, err
	}
	if len(weather) == 0 {
		return nil, errors.New("weather source returned no days")
	}
	return PredictAll(weather), nil
}
