package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Poyyy414/ByteTech/internal/aggregation"
	"github.com/Poyyy414/ByteTech/internal/alarming"
	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/ingest"
	"github.com/Poyyy414/ByteTech/internal/logging"
	"github.com/Poyyy414/ByteTech/internal/queue"
	"github.com/Poyyy414/ByteTech/internal/timer"
	"github.com/Poyyy414/ByteTech/pkg/config"
)

const (
	serviceName = "carbonwatch-aggregator"
	version     = "1.0.0"
)

func main() {
	once := flag.Bool("once", false, "aggregate a single week and exit")
	week := flag.String("week", "", "Monday of the week to aggregate with -once (YYYY-MM-DD), defaults to the previous week")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx, logger := logging.NewLogger(ctx, serviceName, version, cfg.Log.Level, cfg.Log.Pretty)

	db, err := database.Connect(ctx, cfg.Database.ConnectionString(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	aggregator := aggregation.NewWeeklyAggregator(db, logger)

	if *once {
		w := aggregation.PreviousWeek(time.Now().UTC())
		if *week != "" {
			start, err := time.Parse(time.DateOnly, *week)
			if err != nil {
				logger.Fatal().Err(err).Str("week", *week).Msg("invalid week")
			}
			if w, err = aggregation.NewWindow(start, start.AddDate(0, 0, 6)); err != nil {
				logger.Fatal().Err(err).Msg("invalid week")
			}
		}
		runWeek(ctx, logger, aggregator, w)
		return
	}

	var publisher alarming.Publisher
	if cfg.Kafka.Enabled {
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		publisher = producer
	}
	coordinator := ingest.NewCoordinator(
		db,
		alarming.NewEvaluator(alarming.Thresholds{
			TemperatureHigh:     cfg.Thresholds.TemperatureHigh,
			TemperatureVeryHigh: cfg.Thresholds.TemperatureVeryHigh,
			MethaneHigh:         cfg.Thresholds.MethaneHigh,
			MethaneVeryHigh:     cfg.Thresholds.MethaneVeryHigh,
		}),
		alarming.NewSink(db, publisher, logger),
		logger,
	)

	scheduler := timer.NewScheduler(2, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	err = scheduler.Every("weekly-aggregation",
		func(now time.Time) (time.Time, error) {
			return aggregation.CalculateNextRunTime(now, cfg.Aggregation.RunDay, cfg.Aggregation.RunTime)
		},
		func(ctx context.Context) {
			runWeek(ctx, logger, aggregator, aggregation.PreviousWeek(time.Now().UTC()))
		},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule weekly aggregation")
	}

	if cfg.Aggregation.BackfillWindow > 0 {
		window := cfg.Aggregation.BackfillWindow
		backfill := ingest.NewBackfillRunner(coordinator, window, cfg.Aggregation.BackfillGrace)
		err = scheduler.Every("alert-backfill",
			func(now time.Time) (time.Time, error) {
				return now.Add(window), nil
			},
			func(ctx context.Context) {
				stats, err := backfill.Run(ctx)
				evt := logger.Info()
				if err != nil {
					evt = logger.Error().Err(err)
				}
				evt.Int("scanned", stats.Scanned).
					Int("alerts", stats.Alerts).
					Int("failed", stats.Failed).
					Msg("alert backfill complete")
			},
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule alert backfill")
		}
	}

	logger.Info().
		Str("run_day", cfg.Aggregation.RunDay.String()).
		Str("run_time", cfg.Aggregation.RunTime).
		Dur("backfill_window", cfg.Aggregation.BackfillWindow).
		Dur("backfill_grace", cfg.Aggregation.BackfillGrace).
		Int("scheduled_tasks", scheduler.Stats().ScheduledTasks).
		Int("workers", scheduler.Stats().Workers).
		Msg("aggregation service running")

	<-ctx.Done()
	logger.Info().Msg("shutting down gracefully")
}

func runWeek(ctx context.Context, logger zerolog.Logger, aggregator *aggregation.WeeklyAggregator, w aggregation.Window) {
	logger.Info().
		Str("week_start", w.Start.Format(time.DateOnly)).
		Str("week_end", w.End.Format(time.DateOnly)).
		Msg("running weekly aggregation")

	start := time.Now()
	stats, err := aggregator.RunWeek(ctx, w)
	evt := logger.Info()
	if err != nil {
		evt = logger.Error().Err(err)
	}
	evt.Int("reports", stats.Reports).
		Int("failed", stats.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("weekly aggregation complete")
}
