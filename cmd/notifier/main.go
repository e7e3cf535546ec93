package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Poyyy414/ByteTech/internal/logging"
	"github.com/Poyyy414/ByteTech/internal/notification"
	"github.com/Poyyy414/ByteTech/internal/queue"
	"github.com/Poyyy414/ByteTech/pkg/config"
)

const (
	serviceName = "carbonwatch-notifier"
	version     = "1.0.0"
	groupID     = "carbonwatch-notifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx, logger := logging.NewLogger(ctx, serviceName, version, cfg.Log.Level, cfg.Log.Pretty)

	if !cfg.Kafka.Enabled {
		logger.Fatal().Msg("notifier requires KAFKA_ENABLED=true")
	}

	notifier := notification.NewEmailNotifier(&cfg.SMTP, logger)
	if err := notifier.TestConnection(); err != nil {
		logger.Warn().Err(err).Msg("smtp unavailable, notifications will be logged only")
	}

	if err := queue.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 3, 1); err != nil {
		logger.Warn().Err(err).Str("topic", cfg.Kafka.TopicAlerts).Msg("could not ensure alert topic")
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, groupID)
	defer consumer.Close()

	logger.Info().
		Str("topic", cfg.Kafka.TopicAlerts).
		Str("group", groupID).
		Msg("notification service running")

	dispatcher := notification.NewDispatcher(consumer, notifier, logger)
	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("dispatcher stopped")
	}

	stats := consumer.Stats()
	logger.Info().
		Int64("messages", stats.Messages).
		Int64("errors", stats.Errors).
		Msg("shutting down gracefully")
}
