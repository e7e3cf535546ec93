package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Poyyy414/ByteTech/internal/apperr"
	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/protocol"
)

// ReadingStore is the append-only reading log. Implemented by *database.DB.
type ReadingStore interface {
	InsertReading(ctx context.Context, r *database.Reading) error
	ReadingsWithoutAlerts(ctx context.Context, from, to time.Time) ([]database.Reading, error)
}

// Evaluator turns a stored reading into alert drafts.
type Evaluator interface {
	Evaluate(r *database.Reading) []*database.Alert
}

// AlertSink persists alert drafts of one reading and returns the ones that
// were newly stored.
type AlertSink interface {
	Persist(ctx context.Context, r *database.Reading, alerts []*database.Alert) ([]*database.Alert, error)
}

// Result is the outcome of one ingestion. AlertErr is set when the reading
// was stored but its alerts could not be.
type Result struct {
	Reading  *database.Reading
	Alerts   []*database.Alert
	AlertErr error
}

// Coordinator runs validate, store, evaluate and sink for incoming readings.
type Coordinator struct {
	readings  ReadingStore
	evaluator Evaluator
	sink      AlertSink
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCoordinator creates a new ingestion coordinator
func NewCoordinator(readings ReadingStore, evaluator Evaluator, sink AlertSink, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		readings:  readings,
		evaluator: evaluator,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest validates and stores one raw telemetry payload. Validation failures
// return an apperr validation error and nothing is written. A failed alert
// write does not undo the reading; it is reported through Result.AlertErr.
func (c *Coordinator) Ingest(ctx context.Context, payload []byte) (*Result, error) {
	reading, err := protocol.ParseTelemetry(payload, c.now())
	if err != nil {
		return nil, err
	}
	return c.IngestReading(ctx, reading)
}

// IngestReading stores an already validated reading and raises its alerts.
func (c *Coordinator) IngestReading(ctx context.Context, reading *database.Reading) (*Result, error) {
	if err := c.readings.InsertReading(ctx, reading); err != nil {
		c.logger.Error().Err(err).Int64("sensor_id", reading.SensorID).Msg("failed to store reading")
		return nil, apperr.Store("failed to store reading", err)
	}

	result := &Result{Reading: reading}
	alerts := c.evaluator.Evaluate(reading)
	if len(alerts) == 0 {
		return result, nil
	}

	stored, err := c.sink.Persist(ctx, reading, alerts)
	if err != nil {
		c.logger.Error().Err(err).
			Int64("sensor_id", reading.SensorID).
			Int64("data_id", reading.ID).
			Int("alerts", len(alerts)).
			Msg("reading stored but alert generation failed")
		result.AlertErr = apperr.Store("alert generation failed", err)
		return result, nil
	}

	result.Alerts = stored
	return result, nil
}

// BackfillStats summarizes one backfill pass.
type BackfillStats struct {
	Scanned int
	Alerts  int
	Failed  int
}

// Backfill re-evaluates readings stored in [from, to) that have no alerts and
// stores the alerts they should have raised. Readings that raise nothing are
// scanned again on the next pass, which is harmless since evaluation is pure.
func (c *Coordinator) Backfill(ctx context.Context, from, to time.Time) (BackfillStats, error) {
	var stats BackfillStats

	readings, err := c.readings.ReadingsWithoutAlerts(ctx, from, to)
	if err != nil {
		return stats, apperr.Store("failed to list readings for backfill", err)
	}

	for i := range readings {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		r := &readings[i]
		stats.Scanned++

		alerts := c.evaluator.Evaluate(r)
		if len(alerts) == 0 {
			continue
		}
		stored, err := c.sink.Persist(ctx, r, alerts)
		if err != nil {
			stats.Failed++
			c.logger.Error().Err(err).Int64("data_id", r.ID).Msg("backfill failed for reading")
			continue
		}
		stats.Alerts += len(stored)
	}

	c.logger.Info().
		Time("from", from).
		Time("to", to).
		Int("scanned", stats.Scanned).
		Int("alerts", stats.Alerts).
		Int("failed", stats.Failed).
		Msg("alert backfill completed")

	if stats.Failed > 0 {
		return stats, fmt.Errorf("backfill failed for %d readings", stats.Failed)
	}
	return stats, nil
}

// BackfillRunner walks consecutive backfill windows. Each run starts where
// the previous successful one ended and stops Grace before now, leaving
// readings whose ingestion may still be in flight to a later run.
type BackfillRunner struct {
	coordinator *Coordinator
	grace       time.Duration
	from        time.Time
	now         func() time.Time
}

// NewBackfillRunner creates a runner whose first window reaches lookback
// into the past.
func NewBackfillRunner(c *Coordinator, lookback, grace time.Duration) *BackfillRunner {
	return &BackfillRunner{
		coordinator: c,
		grace:       grace,
		from:        c.now().Add(-lookback),
		now:         c.now,
	}
}

// Run backfills [from, now-grace). The cursor only advances when every
// reading in the window was handled, so failed readings are retried.
func (b *BackfillRunner) Run(ctx context.Context) (BackfillStats, error) {
	to := b.now().Add(-b.grace)
	if !to.After(b.from) {
		return BackfillStats{}, nil
	}

	stats, err := b.coordinator.Backfill(ctx, b.from, to)
	if err != nil {
		return stats, err
	}
	b.from = to
	return stats, nil
}
