package notification

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/Poyyy414/ByteTech/internal/protocol"
)

// MessageSource is a committing message stream. Implemented by
// *queue.Consumer.
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Sender delivers one alert notification.
type Sender interface {
	SendAlertNotification(n *protocol.AlertNotification) error
}

// Dispatcher reads alert notifications and hands them to a sender. Offsets
// are committed once a message is delivered or found undecodable; failed
// deliveries are retried after RetryDelay.
type Dispatcher struct {
	source     MessageSource
	sender     Sender
	logger     zerolog.Logger
	RetryDelay time.Duration
	MaxRetries int
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(source MessageSource, sender Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		source:     source,
		sender:     sender,
		logger:     logger,
		RetryDelay: 5 * time.Second,
		MaxRetries: 3,
	}
}

// Run processes messages until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		msg, err := d.source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error().Err(err).Msg("failed to consume message")
			if !sleep(ctx, d.RetryDelay) {
				return ctx.Err()
			}
			continue
		}

		if err := d.Handle(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			d.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to handle message")
		}
	}
}

// Handle delivers one message and commits it. A message that still fails
// after MaxRetries is committed and dropped so one bad recipient cannot stall
// the partition.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	n, err := protocol.DecodeAlertNotification(msg.Value)
	if err != nil {
		d.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("dropping undecodable notification")
		return d.source.Commit(ctx, msg)
	}

	logger := d.logger.With().
		Str("notification_id", n.NotificationID).
		Int64("alert_id", n.AlertID).
		Int64("sensor_id", n.SensorID).
		Logger()

	for attempt := 0; ; attempt++ {
		err = d.sender.SendAlertNotification(n)
		if err == nil {
			break
		}
		if attempt >= d.MaxRetries {
			logger.Error().Err(err).Int("attempts", attempt+1).Msg("giving up on notification")
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt+1).Msg("notification failed, retrying")
		if !sleep(ctx, d.RetryDelay) {
			return ctx.Err()
		}
	}

	return d.source.Commit(ctx, msg)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
