package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Poyyy414/ByteTech/internal/aggregation"
	"github.com/Poyyy414/ByteTech/internal/apperr"
	"github.com/Poyyy414/ByteTech/internal/database"
	"github.com/Poyyy414/ByteTech/internal/logging"
)

// reportRequest is the body of a report POST. With Compute set only scope
// and week fields are read and the aggregator builds the row; otherwise the
// aggregate fields are stored as given.
type reportRequest struct {
	Compute          bool     `json:"compute"`
	Scope            string   `json:"scope"`
	ScopeID          *int64   `json:"scope_id"`
	WeekStart        string   `json:"week_start"`
	WeekEnd          string   `json:"week_end"`
	SampleCount      *int     `json:"sample_count"`
	ChangeVsLastWeek *float64 `json:"change_vs_last_week"`

	AvgCO2Density *float64 `json:"avg_co2_density"`
	MinCO2Density *float64 `json:"min_co2_density"`
	MaxCO2Density *float64 `json:"max_co2_density"`
	TotalCO2Tons  *float64 `json:"total_co2_tons"`

	AvgTemperatureC *float64 `json:"avg_temperature_c"`
	MinTemperatureC *float64 `json:"min_temperature_c"`
	MaxTemperatureC *float64 `json:"max_temperature_c"`
}

func familyParam(r *http.Request) (database.Family, error) {
	family, err := database.ParseFamily(chi.URLParam(r, "family"))
	if err != nil {
		return "", apperr.NotFound("unknown report family %q", chi.URLParam(r, "family"))
	}
	return family, nil
}

// reportFilter reads the optional scope and scope_id query parameters.
func reportFilter(r *http.Request) (database.ReportFilter, error) {
	var filter database.ReportFilter
	q := r.URL.Query()

	if raw := q.Get("scope_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, apperr.Validation("scope_id")
		}
		filter.ScopeID = &id
	}

	if raw := q.Get("scope"); raw != "" {
		scope, err := database.ParseScope(raw)
		if err != nil {
			return filter, apperr.Validation("scope")
		}
		filter.Scope = &scope
	} else if filter.ScopeID != nil {
		return filter, apperr.Validationf("scope_id requires scope")
	}

	return filter, nil
}

func listReportsHandler(reports ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.GetLoggerFromContext(ctx)

		family, err := familyParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		filter, err := reportFilter(r)
		if err != nil {
			writeError(w, log, err)
			return
		}

		var list any
		switch family {
		case database.FamilyCarbon:
			list, err = reports.ListCarbonReports(ctx, filter)
		case database.FamilyTemperature:
			list, err = reports.ListTemperatureReports(ctx, filter)
		}
		if err != nil {
			writeError(w, log, apperr.Store("failed to list reports", err))
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func reportWeeksHandler(reports ReportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.GetLoggerFromContext(r.Context())

		family, err := familyParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}

		weeks, err := reports.ReportWeeks(r.Context(), family)
		if err != nil {
			writeError(w, log, apperr.Store("failed to list report weeks", err))
			return
		}

		writeJSON(w, http.StatusOK, weeks)
	}
}

func createReportHandler(reports ReportStore, aggregator Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.GetLoggerFromContext(ctx)

		family, err := familyParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}

		var req reportRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, log, apperr.Validationf("invalid JSON body: %v", err))
			return
		}

		scope, window, err := req.target()
		if err != nil {
			writeError(w, log, err)
			return
		}

		var report any
		if req.Compute {
			switch family {
			case database.FamilyCarbon:
				report, err = aggregator.AggregateCarbon(ctx, scope, req.ScopeID, window)
			case database.FamilyTemperature:
				report, err = aggregator.AggregateTemperature(ctx, scope, req.ScopeID, window)
			}
		} else if err = aggregator.CheckScope(ctx, scope, req.ScopeID); err == nil {
			report, err = req.store(ctx, reports, family, scope, window)
		}
		if err != nil {
			writeError(w, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, report)
	}
}

// target validates the scope and week fields shared by both request forms.
func (req *reportRequest) target() (database.Scope, aggregation.Window, error) {
	var missing []string
	if req.Scope == "" {
		missing = append(missing, "scope")
	}
	start, startErr := parseDate(req.WeekStart)
	if startErr != nil {
		missing = append(missing, "week_start")
	}
	end, endErr := parseDate(req.WeekEnd)
	if endErr != nil {
		missing = append(missing, "week_end")
	}
	if len(missing) > 0 {
		return "", aggregation.Window{}, apperr.Validation(missing...)
	}

	scope, err := database.ParseScope(req.Scope)
	if err != nil {
		return "", aggregation.Window{}, apperr.Validation("scope")
	}
	if err := aggregation.ValidateScope(scope, req.ScopeID); err != nil {
		return "", aggregation.Window{}, err
	}

	window, err := aggregation.NewWindow(start, end)
	if err != nil {
		return "", aggregation.Window{}, err
	}
	return scope, window, nil
}

func (req *reportRequest) header(scope database.Scope, w aggregation.Window) database.ReportHeader {
	h := database.ReportHeader{
		Scope:            scope,
		ScopeID:          req.ScopeID,
		WeekStart:        w.Start,
		WeekEnd:          w.End,
		ChangeVsLastWeek: req.ChangeVsLastWeek,
	}
	if req.SampleCount != nil {
		h.SampleCount = *req.SampleCount
	}
	return h
}

func (req *reportRequest) store(ctx context.Context, reports ReportStore, family database.Family, scope database.Scope, w aggregation.Window) (any, error) {
	if req.SampleCount != nil && *req.SampleCount < 0 {
		return nil, apperr.Validation("sample_count")
	}

	switch family {
	case database.FamilyCarbon:
		if err := checkRange("min_co2_density", "max_co2_density", req.MinCO2Density, req.MaxCO2Density); err != nil {
			return nil, err
		}
		report := &database.CarbonReport{
			ReportHeader:  req.header(scope, w),
			AvgCO2Density: req.AvgCO2Density,
			MinCO2Density: req.MinCO2Density,
			MaxCO2Density: req.MaxCO2Density,
			TotalCO2Tons:  req.TotalCO2Tons,
		}
		if err := reports.InsertCarbonReport(ctx, report); err != nil {
			return nil, apperr.Store("failed to store carbon report", err)
		}
		return report, nil

	default:
		if err := checkRange("min_temperature_c", "max_temperature_c", req.MinTemperatureC, req.MaxTemperatureC); err != nil {
			return nil, err
		}
		report := &database.TemperatureReport{
			ReportHeader:    req.header(scope, w),
			AvgTemperatureC: req.AvgTemperatureC,
			MinTemperatureC: req.MinTemperatureC,
			MaxTemperatureC: req.MaxTemperatureC,
		}
		if err := reports.InsertTemperatureReport(ctx, report); err != nil {
			return nil, apperr.Store("failed to store temperature report", err)
		}
		return report, nil
	}
}

func checkRange(minField, maxField string, min, max *float64) error {
	if min != nil && max != nil && *min > *max {
		return apperr.Validation(minField, maxField)
	}
	return nil
}

// parseDate accepts a calendar date or an RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
