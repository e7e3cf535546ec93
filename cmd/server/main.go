package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Poyyy414/ByteTech/internal/aggregation"
	"github.com/Poyyy414/ByteTech/internal/alarming"
	"github.com/Poyyy414/ByteTech/internal/api"
	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/forecast"
	"github.com/Poyyy414/ByteTech/internal/ingest"
	"github.com/Poyyy414/ByteTech/internal/logging"
	"github.com/Poyyy414/ByteTech/internal/queue"
	"github.com/Poyyy414/ByteTech/internal/router"
	"github.com/Poyyy414/ByteTech/pkg/config"
)

const (
	serviceName = "carbonwatch-api"
	version     = "1.0.0"
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
	logger.Info().Msg("starting carbon watch api")

	db, err := database.Connect(ctx, cfg.Database.ConnectionString(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, cfg.Database.MigrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	var publisher alarming.Publisher
	if cfg.Kafka.Enabled {
		if err := queue.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 3, 1); err != nil {
			logger.Warn().Err(err).Str("topic", cfg.Kafka.TopicAlerts).Msg("could not ensure alert topic")
		}
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		publisher = producer
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("alert publishing enabled")
	}

	evaluator := alarming.NewEvaluator(alarming.Thresholds{
		TemperatureHigh:     cfg.Thresholds.TemperatureHigh,
		TemperatureVeryHigh: cfg.Thresholds.TemperatureVeryHigh,
		MethaneHigh:         cfg.Thresholds.MethaneHigh,
		MethaneVeryHigh:     cfg.Thresholds.MethaneVeryHigh,
	})
	sink := alarming.NewSink(db, publisher, logger)

	forecaster, closeCache := newForecaster(ctx, cfg, db, logger)
	defer closeCache()

	svc := api.Services{
		Readings:   db,
		Reports:    db,
		Ingestor:   ingest.NewCoordinator(db, evaluator, sink, logger),
		Aggregator: aggregation.NewWeeklyAggregator(db, logger),
		Forecaster: forecaster,
	}

	r := api.RegisterHandlers(router.New(logger, cfg.HTTP.AllowedOrigins), svc)
	srv := api.NewServer(fmt.Sprintf(":%d", cfg.HTTP.Port), r, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
}

// newForecaster chains Open-Meteo behind the rate limiter and, when Redis is
// enabled, the response cache.
func newForecaster(ctx context.Context, cfg *config.Config, db *database.DB, logger zerolog.Logger) (*forecast.Service, func()) {
	loc, err := time.LoadLocation(cfg.Forecast.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", cfg.Forecast.Timezone).Msg("unknown forecast timezone, using UTC")
		loc = time.UTC
	}

	var source forecast.Source = forecast.NewOpenMeteoSource(cfg.Forecast.BaseURL, cfg.Forecast.Timezone, cfg.Forecast.Timeout)
	source = forecast.NewRateLimitedSource(source, cfg.Forecast.RPS, cfg.Forecast.Burst)

	closer := func() {}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, forecasts will not be cached until it is")
		}
		source = forecast.NewCachedSource(source, client, cfg.Forecast.CacheTTL, logger)
		closer = func() { _ = client.Close() }
	}

	logger.Info().Str("source", source.Name()).Int("days", cfg.Forecast.Days).Msg("forecast source ready")
	return forecast.NewService(db, source, cfg.Forecast.Days, cfg.Forecast.Timeout, loc, logger), closer
}
