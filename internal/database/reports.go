package database

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertCarbonReport appends a weekly carbon report row.
func (db *DB) InsertCarbonReport(ctx context.Context, r *CarbonReport) error {
	query := `
		INSERT INTO weekly_carbon_reports (
			scope, scope_id, week_start, week_end,
			avg_co2_density, min_co2_density, max_co2_density, total_co2_tons,
			sample_count, change_vs_last_week
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING carbon_report_id, created_at
	`

	return db.QueryRowContext(ctx, query,
		string(r.Scope),
		nullInt(r.ScopeID),
		r.WeekStart,
		r.WeekEnd,
		nullFloat(r.AvgCO2Density),
		nullFloat(r.MinCO2Density),
		nullFloat(r.MaxCO2Density),
		nullFloat(r.TotalCO2Tons),
		r.SampleCount,
		nullFloat(r.ChangeVsLastWeek),
	).Scan(&r.ID, &r.CreatedAt)
}

// InsertTemperatureReport appends a weekly temperature report row.
func (db *DB) InsertTemperatureReport(ctx context.Context, r *TemperatureReport) error {
	query := `
		INSERT INTO weekly_temperature_reports (
			scope, scope_id, week_start, week_end,
			avg_temperature_c, min_temperature_c, max_temperature_c,
			sample_count, change_vs_last_week
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING temperature_report_id, created_at
	`

	return db.QueryRowContext(ctx, query,
		string(r.Scope),
		nullInt(r.ScopeID),
		r.WeekStart,
		r.WeekEnd,
		nullFloat(r.AvgTemperatureC),
		nullFloat(r.MinTemperatureC),
		nullFloat(r.MaxTemperatureC),
		r.SampleCount,
		nullFloat(r.ChangeVsLastWeek),
	).Scan(&r.ID, &r.CreatedAt)
}

// ListCarbonReports returns carbon reports matching filter, latest week first.
func (db *DB) ListCarbonReports(ctx context.Context, filter ReportFilter) ([]CarbonReport, error) {
	where, args := filter.clause()
	query := `
		SELECT carbon_report_id, scope, scope_id, week_start, week_end,
		       avg_co2_density, min_co2_density, max_co2_density, total_co2_tons,
		       sample_count, change_vs_last_week, created_at
		FROM weekly_carbon_reports` + where + `
		ORDER BY week_start DESC, carbon_report_id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []CarbonReport{}
	for rows.Next() {
		var (
			r                    CarbonReport
			scope                string
			scopeID              sql.NullInt64
			avg, min, max, total sql.NullFloat64
			change               sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &scope, &scopeID, &r.WeekStart, &r.WeekEnd,
			&avg, &min, &max, &total, &r.SampleCount, &change, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Scope = Scope(scope)
		r.ScopeID = intPtr(scopeID)
		r.AvgCO2Density = floatPtr(avg)
		r.MinCO2Density = floatPtr(min)
		r.MaxCO2Density = floatPtr(max)
		r.TotalCO2Tons = floatPtr(total)
		r.ChangeVsLastWeek = floatPtr(change)
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// ListTemperatureReports returns temperature reports matching filter, latest
// week first.
func (db *DB) ListTemperatureReports(ctx context.Context, filter ReportFilter) ([]TemperatureReport, error) {
	where, args := filter.clause()
	query := `
		SELECT temperature_report_id, scope, scope_id, week_start, week_end,
		       avg_temperature_c, min_temperature_c, max_temperature_c,
		       sample_count, change_vs_last_week, created_at
		FROM weekly_temperature_reports` + where + `
		ORDER BY week_start DESC, temperature_report_id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []TemperatureReport{}
	for rows.Next() {
		var (
			r             TemperatureReport
			scope         string
			scopeID       sql.NullInt64
			avg, min, max sql.NullFloat64
			change        sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &scope, &scopeID, &r.WeekStart, &r.WeekEnd,
			&avg, &min, &max, &r.SampleCount, &change, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Scope = Scope(scope)
		r.ScopeID = intPtr(scopeID)
		r.AvgTemperatureC = floatPtr(avg)
		r.MinTemperatureC = floatPtr(min)
		r.MaxTemperatureC = floatPtr(max)
		r.ChangeVsLastWeek = floatPtr(change)
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// ReportWeeks lists the distinct report windows of a family, latest first.
func (db *DB) ReportWeeks(ctx context.Context, family Family) ([]ReportWeek, error) {
	var table string
	switch family {
	case FamilyCarbon:
		table = "weekly_carbon_reports"
	case FamilyTemperature:
		table = "weekly_temperature_reports"
	default:
		return nil, fmt.Errorf("unknown report family: %s", family)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT week_start, week_end
		FROM `+table+`
		ORDER BY week_start DESC, week_end DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weeks := []ReportWeek{}
	for rows.Next() {
		var w ReportWeek
		if err := rows.Scan(&w.WeekStart, &w.WeekEnd); err != nil {
			return nil, err
		}
		weeks = append(weeks, w)
	}

	return weeks, rows.Err()
}

func (f ReportFilter) clause() (string, []any) {
	if f.Scope == nil {
		return "", nil
	}
	if f.ScopeID == nil {
		return ` WHERE scope = $1`, []any{string(*f.Scope)}
	}
	return ` WHERE scope = $1 AND scope_id = $2`, []any{string(*f.Scope), *f.ScopeID}
}
