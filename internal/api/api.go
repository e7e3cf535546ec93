package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Poyyy414/ByteTech/internal/aggregation"
	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/forecast"
	"github.com/Poyyy414/ByteTech/internal/ingest"
)

// ReadingQueries are the read paths over stored readings and alerts.
type ReadingQueries interface {
	LatestReading(ctx context.Context, sensorID int64) (*database.Reading, error)
	ReadingsBySensor(ctx context.Context, sensorID int64) ([]database.Reading, error)
	AlertsBySensor(ctx context.Context, sensorID int64) ([]database.Alert, error)
}

// ReportStore reads and appends weekly reports.
type ReportStore interface {
	InsertCarbonReport(ctx context.Context, r *database.CarbonReport) error
	InsertTemperatureReport(ctx context.Context, r *database.TemperatureReport) error
	ListCarbonReports(ctx context.Context, filter database.ReportFilter) ([]database.CarbonReport, error)
	ListTemperatureReports(ctx context.Context, filter database.ReportFilter) ([]database.TemperatureReport, error)
	ReportWeeks(ctx context.Context, family database.Family) ([]database.ReportWeek, error)
}

type Ingestor interface {
	Ingest(ctx context.Context, payload []byte) (*ingest.Result, error)
}

// Aggregator computes weekly reports and resolves report scopes.
type Aggregator interface {
	CheckScope(ctx context.Context, scope database.Scope, scopeID *int64) error
	AggregateCarbon(ctx context.Context, scope database.Scope, scopeID *int64, w aggregation.Window) (*database.CarbonReport, error)
	AggregateTemperature(ctx context.Context, scope database.Scope, scopeID *int64, w aggregation.Window) (*database.TemperatureReport, error)
}

type Forecaster interface {
	Weekly(ctx context.Context, barangayID int64) (*forecast.Weekly, error)
}

// Services bundles what the handlers depend on.
type Services struct {
	Readings   ReadingQueries
	Reports    ReportStore
	Ingestor   Ingestor
	Aggregator Aggregator
	Forecaster Forecaster
}

const maxBodyBytes = 1 << 20

// RegisterHandlers mounts the carbon watch API on router.
func RegisterHandlers(router *chi.Mux, svc Services) *chi.Mux {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/sensor-data", func(r chi.Router) {
			r.Post("/", ingestHandler(svc.Ingestor))
			r.Get("/latest/{sensorID}", latestReadingHandler(svc.Readings))
			r.Get("/{sensorID}", readingsHandler(svc.Readings))
			r.Get("/{sensorID}/alerts", alertsHandler(svc.Readings))
		})

		r.Route("/reports/{family}", func(r chi.Router) {
			r.Get("/", listReportsHandler(svc.Reports))
			r.Post("/", createReportHandler(svc.Reports, svc.Aggregator))
			r.Get("/weeks", reportWeeksHandler(svc.Reports))
		})

		r.Get("/weather/weekly/{barangayID}", weeklyForecastHandler(svc.Forecaster))
	})

	return router
}

// NewServer wraps handler in an http.Server with the configured timeouts.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       2 * writeTimeout,
	}
}
