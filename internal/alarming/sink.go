package alarming

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/protocol"
)

// AlertStore persists alerts. Implemented by *database.DB.
type AlertStore interface {
	InsertAlerts(ctx context.Context, alerts []*database.Alert) ([]*database.Alert, error)
}

// Publisher sends an encoded message to the alert topic. Implemented by
// *queue.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Sink stores alert drafts and announces them on the alert topic.
type Sink struct {
	store     AlertStore
	publisher Publisher
	logger    zerolog.Logger
}

// NewSink creates an alert sink. publisher may be nil when Kafka is disabled.
func NewSink(store AlertStore, publisher Publisher, logger zerolog.Logger) *Sink {
	return &Sink{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Persist stores the drafts raised by reading r and returns the ones that
// were not already on record. Only those are announced; publishing happens
// after the alerts are committed and its failures are only logged.
func (s *Sink) Persist(ctx context.Context, r *database.Reading, alerts []*database.Alert) ([]*database.Alert, error) {
	if len(alerts) == 0 {
		return nil, nil
	}

	for _, a := range alerts {
		if a.DataID != r.ID {
			return nil, fmt.Errorf("alert %q does not belong to reading %d", a.Type, r.ID)
		}
	}

	stored, err := s.store.InsertAlerts(ctx, alerts)
	if err != nil {
		return nil, fmt.Errorf("failed to store alerts for reading %d: %w", r.ID, err)
	}
	if skipped := len(alerts) - len(stored); skipped > 0 {
		s.logger.Debug().Int64("data_id", r.ID).Int("skipped", skipped).Msg("alerts already recorded")
	}

	for _, a := range stored {
		s.logger.Warn().
			Int64("sensor_id", a.SensorID).
			Int64("data_id", a.DataID).
			Str("type", a.Type).
			Str("level", string(a.Level)).
			Msg("alert raised")
	}

	if s.publisher != nil {
		s.publish(ctx, r, stored)
	}

	return stored, nil
}

func (s *Sink) publish(ctx context.Context, r *database.Reading, alerts []*database.Alert) {
	key := strconv.FormatInt(r.SensorID, 10)

	for _, a := range alerts {
		data, err := protocol.EncodeAlertNotification(protocol.NewAlertNotification(uuid.NewString(), a, r))
		if err != nil {
			s.logger.Error().Err(err).Int64("alert_id", a.ID).Msg("failed to encode alert notification")
			continue
		}
		if err := s.publisher.Publish(ctx, key, data); err != nil {
			s.logger.Error().Err(err).Int64("alert_id", a.ID).Msg("failed to publish alert notification")
		}
	}
}
