package aggregation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Poyyy414/ByteTech/internal/apperr"
	"github.com/Poyyy414/ByteTech/internal/database"
)

// Store is the persistence the weekly aggregator needs. Implemented by
// *database.DB.
type Store interface {
	ScopeSamples(ctx context.Context, scope database.Scope, scopeID *int64, metric database.Metric, from, to time.Time) ([]float64, error)
	ListScopeIDs(ctx context.Context, scope database.Scope) ([]int64, error)
	GetBarangay(ctx context.Context, id int64) (*database.Barangay, error)
	GetEstablishment(ctx context.Context, id int64) (*database.Establishment, error)
	InsertCarbonReport(ctx context.Context, r *database.CarbonReport) error
	InsertTemperatureReport(ctx context.Context, r *database.TemperatureReport) error
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow truncates start and end to midnight in their own locations and
// checks that start is not after end.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: midnight(start), End: midnight(end)}
	if w.Start.After(w.End) {
		return Window{}, apperr.Validationf("week_start %s is after week_end %s",
			w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	}
	return w, nil
}

// Bounds returns the half-open time range [from, to) covering every day of w.
func (w Window) Bounds() (time.Time, time.Time) {
	return w.Start, w.End.AddDate(0, 0, 1)
}

// Previous returns the window of equal length that ends the day before w.
func (w Window) Previous() Window {
	days := w.Days()
	return Window{
		Start: w.Start.AddDate(0, 0, -days),
		End:   w.Start.AddDate(0, 0, -1),
	}
}

// Days is the number of calendar days covered by w.
func (w Window) Days() int {
	days := 1
	for d := w.Start; d.Before(w.End); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

// WeeklyAggregator rolls readings up into weekly carbon and temperature
// reports per scope.
type WeeklyAggregator struct {
	store  Store
	logger zerolog.Logger
}

// NewWeeklyAggregator creates a new weekly aggregator
func NewWeeklyAggregator(store Store, logger zerolog.Logger) *WeeklyAggregator {
	return &WeeklyAggregator{store: store, logger: logger}
}

// ComputeCarbon builds, without storing, the carbon report for a scope and
// window from co2_density samples.
func (a *WeeklyAggregator) ComputeCarbon(ctx context.Context, scope database.Scope, scopeID *int64, w Window) (*database.CarbonReport, error) {
	header, current, err := a.compute(ctx, scope, scopeID, database.MetricCO2Density, w)
	if err != nil {
		return nil, err
	}
	return &database.CarbonReport{
		ReportHeader:  header,
		AvgCO2Density: current.Avg,
		MinCO2Density: current.Min,
		MaxCO2Density: current.Max,
		TotalCO2Tons:  TotalTons(current),
	}, nil
}

// ComputeTemperature builds, without storing, the temperature report for a
// scope and window from temperature_c samples.
func (a *WeeklyAggregator) ComputeTemperature(ctx context.Context, scope database.Scope, scopeID *int64, w Window) (*database.TemperatureReport, error) {
	header, current, err := a.compute(ctx, scope, scopeID, database.MetricTemperatureC, w)
	if err != nil {
		return nil, err
	}
	return &database.TemperatureReport{
		ReportHeader:    header,
		AvgTemperatureC: current.Avg,
		MinTemperatureC: current.Min,
		MaxTemperatureC: current.Max,
	}, nil
}

// AggregateCarbon computes and appends a carbon report row.
func (a *WeeklyAggregator) AggregateCarbon(ctx context.Context, scope database.Scope, scopeID *int64, w Window) (*database.CarbonReport, error) {
	report, err := a.ComputeCarbon(ctx, scope, scopeID, w)
	if err != nil {
		return nil, err
	}
	if err := a.store.InsertCarbonReport(ctx, report); err != nil {
		return nil, apperr.Store("failed to store carbon report", err)
	}
	return report, nil
}

// AggregateTemperature computes and appends a temperature report row.
func (a *WeeklyAggregator) AggregateTemperature(ctx context.Context, scope database.Scope, scopeID *int64, w Window) (*database.TemperatureReport, error) {
	report, err := a.ComputeTemperature(ctx, scope, scopeID, w)
	if err != nil {
		return nil, err
	}
	if err := a.store.InsertTemperatureReport(ctx, report); err != nil {
		return nil, apperr.Store("failed to store temperature report", err)
	}
	return report, nil
}

func (a *WeeklyAggregator) compute(ctx context.Context, scope database.Scope, scopeID *int64, metric database.Metric, w Window) (database.ReportHeader, Summary, error) {
	if err := a.CheckScope(ctx, scope, scopeID); err != nil {
		return database.ReportHeader{}, Summary{}, err
	}

	current, err := a.summarize(ctx, scope, scopeID, metric, w)
	if err != nil {
		return database.ReportHeader{}, Summary{}, err
	}
	previous, err := a.summarize(ctx, scope, scopeID, metric, w.Previous())
	if err != nil {
		return database.ReportHeader{}, Summary{}, err
	}

	header := database.ReportHeader{
		Scope:            scope,
		ScopeID:          scopeID,
		WeekStart:        w.Start,
		WeekEnd:          w.End,
		SampleCount:      current.Count,
		ChangeVsLastWeek: Change(current, previous),
	}
	return header, current, nil
}

func (a *WeeklyAggregator) summarize(ctx context.Context, scope database.Scope, scopeID *int64, metric database.Metric, w Window) (Summary, error) {
	from, to := w.Bounds()
	samples, err := a.store.ScopeSamples(ctx, scope, scopeID, metric, from, to)
	if err != nil {
		return Summary{}, apperr.Store(fmt.Sprintf("failed to load %s samples", metric), err)
	}
	return Summarize(samples), nil
}

// ValidateScope checks that scopeID is set exactly when the scope needs one.
func ValidateScope(scope database.Scope, scopeID *int64) error {
	switch scope {
	case database.ScopeCity:
		if scopeID != nil {
			return apperr.Validation("scope_id")
		}
	case database.ScopeBarangay, database.ScopeEstablishment:
		if scopeID == nil {
			return apperr.Validation("scope_id")
		}
	default:
		return apperr.Validation("scope")
	}
	return nil
}

// CheckScope validates scope and scopeID and makes sure the barangay or
// establishment exists.
func (a *WeeklyAggregator) CheckScope(ctx context.Context, scope database.Scope, scopeID *int64) error {
	if err := ValidateScope(scope, scopeID); err != nil {
		return err
	}

	var err error
	switch scope {
	case database.ScopeBarangay:
		_, err = a.store.GetBarangay(ctx, *scopeID)
	case database.ScopeEstablishment:
		_, err = a.store.GetEstablishment(ctx, *scopeID)
	default:
		return nil
	}

	if errors.Is(err, database.ErrNotFound) {
		return apperr.NotFound("%s %d not found", strings.ToLower(string(scope)), *scopeID)
	}
	if err != nil {
		return apperr.Store("failed to resolve scope", err)
	}
	return nil
}

type target struct {
	scope database.Scope
	id    *int64
}

// RunStats summarizes one RunWeek pass.
type RunStats struct {
	Reports int
	Failed  int
}

// RunWeek aggregates both report families for the city, every barangay and
// every establishment over w. A failing scope does not stop the others.
func (a *WeeklyAggregator) RunWeek(ctx context.Context, w Window) (RunStats, error) {
	var (
		stats RunStats
		errs  []error
	)

	a.logger.Info().
		Str("week_start", w.Start.Format(time.DateOnly)).
		Str("week_end", w.End.Format(time.DateOnly)).
		Msg("running weekly aggregation")

	targets := []target{{scope: database.ScopeCity}}

	for _, scope := range []database.Scope{database.ScopeBarangay, database.ScopeEstablishment} {
		ids, err := a.store.ListScopeIDs(ctx, scope)
		if err != nil {
			return stats, apperr.Store(fmt.Sprintf("failed to list %s ids", scope), err)
		}
		for _, id := range ids {
			id := id
			targets = append(targets, target{scope: scope, id: &id})
		}
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if _, err := a.AggregateCarbon(ctx, t.scope, t.id, w); err != nil {
			stats.Failed++
			errs = append(errs, err)
			a.logEntry(t.scope, t.id).Err(err).Msg("carbon aggregation failed")
		} else {
			stats.Reports++
		}

		if _, err := a.AggregateTemperature(ctx, t.scope, t.id, w); err != nil {
			stats.Failed++
			errs = append(errs, err)
			a.logEntry(t.scope, t.id).Err(err).Msg("temperature aggregation failed")
		} else {
			stats.Reports++
		}
	}

	a.logger.Info().Int("reports", stats.Reports).Int("failed", stats.Failed).Msg("weekly aggregation completed")
	return stats, errors.Join(errs...)
}

func (a *WeeklyAggregator) logEntry(scope database.Scope, id *int64) *zerolog.Event {
	e := a.logger.Error().Str("scope", string(scope))
	if id != nil {
		e = e.Int64("scope_id", *id)
	}
	return e
}

// PreviousWeek returns the last complete Monday to Sunday week before now.
func PreviousWeek(now time.Time) Window {
	today := midnight(now)
	offset := (int(today.Weekday()) + 6) % 7 // days since Monday
	thisMonday := today.AddDate(0, 0, -offset)
	return Window{
		Start: thisMonday.AddDate(0, 0, -7),
		End:   thisMonday.AddDate(0, 0, -1),
	}
}

// CalculateNextRunTime returns the next occurrence of weekday at timeOfDay
// ("HH:MM") strictly after now.
func CalculateNextRunTime(now time.Time, weekday time.Weekday, timeOfDay string) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %s (expected HH:MM)", timeOfDay)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid time of day: %s", timeOfDay)
	}

	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	next := time.Date(now.Year(), now.Month(), now.Day()+days, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
