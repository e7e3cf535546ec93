package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const readingColumns = `id, sensor_id, recorded_at, mq2_analog, methane_ppm, co2_density,
	carbon_level, humidity, temperature_c, temperature_f, heat_index_c, heat_index_f`

// InsertReading appends a reading and sets its generated ID.
func (db *DB) InsertReading(ctx context.Context, r *Reading) error {
	query := `
		INSERT INTO readings (
			sensor_id, recorded_at, mq2_analog, methane_ppm, co2_density,
			carbon_level, humidity, temperature_c, temperature_f, heat_index_c, heat_index_f
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	return db.QueryRowContext(ctx, query,
		r.SensorID,
		r.RecordedAt,
		r.MQ2Analog,
		nullFloat(r.MethanePPM),
		nullFloat(r.CO2Density),
		string(r.CarbonLevel),
		r.Humidity,
		r.TemperatureC,
		nullFloat(r.TemperatureF),
		nullFloat(r.HeatIndexC),
		nullFloat(r.HeatIndexF),
	).Scan(&r.ID)
}

// LatestReading returns the most recent reading for a sensor or ErrNotFound.
func (db *DB) LatestReading(ctx context.Context, sensorID int64) (*Reading, error) {
	query := `SELECT ` + readingColumns + `
		FROM readings
		WHERE sensor_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`

	r, err := scanReading(db.QueryRowContext(ctx, query, sensorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReadingsBySensor returns every reading of a sensor, newest first.
func (db *DB) ReadingsBySensor(ctx context.Context, sensorID int64) ([]Reading, error) {
	query := `SELECT ` + readingColumns + `
		FROM readings
		WHERE sensor_id = $1
		ORDER BY recorded_at DESC, id DESC`

	return db.queryReadings(ctx, query, sensorID)
}

// ReadingsWithoutAlerts returns readings recorded in [from, to) that have no
// alert rows, oldest first.
func (db *DB) ReadingsWithoutAlerts(ctx context.Context, from, to time.Time) ([]Reading, error) {
	query := `SELECT ` + prefixColumns("r.", readingColumns) + `
		FROM readings r
		WHERE r.recorded_at >= $1 AND r.recorded_at < $2
		  AND NOT EXISTS (SELECT 1 FROM alerts a WHERE a.data_id = r.id)
		ORDER BY r.id`

	return db.queryReadings(ctx, query, from, to)
}

// ScopeSamples returns the non-null values of metric for readings in
// [from, to) whose sensor resolves to the given scope, ordered by reading id.
// A sensor without its own barangay inherits the establishment's barangay.
func (db *DB) ScopeSamples(ctx context.Context, scope Scope, scopeID *int64, metric Metric, from, to time.Time) ([]float64, error) {
	var column string
	switch metric {
	case MetricTemperatureC:
		column = "r.temperature_c"
	case MetricCO2Density:
		column = "r.co2_density"
	default:
		return nil, fmt.Errorf("unsupported metric: %s", metric)
	}

	query := `
		SELECT ` + column + `
		FROM readings r
		LEFT JOIN sensors s ON s.sensor_id = r.sensor_id
		LEFT JOIN establishments e ON e.establishment_id = s.establishment_id
		WHERE r.recorded_at >= $1 AND r.recorded_at < $2
		  AND ` + column + ` IS NOT NULL`

	args := []any{from, to}
	switch scope {
	case ScopeCity:
	case ScopeEstablishment:
		if scopeID == nil {
			return nil, fmt.Errorf("scope %s requires a scope id", scope)
		}
		query += ` AND s.establishment_id = $3`
		args = append(args, *scopeID)
	case ScopeBarangay:
		if scopeID == nil {
			return nil, fmt.Errorf("scope %s requires a scope id", scope)
		}
		query += ` AND COALESCE(s.barangay_id, e.barangay_id) = $3`
		args = append(args, *scopeID)
	default:
		return nil, fmt.Errorf("unknown scope: %s", scope)
	}
	query += ` ORDER BY r.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		samples = append(samples, v)
	}

	return samples, rows.Err()
}

func (db *DB) queryReadings(ctx context.Context, query string, args ...any) ([]Reading, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}

	return readings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*Reading, error) {
	var (
		r                                 Reading
		level                             string
		methane, co2, tempF, heatC, heatF sql.NullFloat64
	)

	if err := row.Scan(
		&r.ID,
		&r.SensorID,
		&r.RecordedAt,
		&r.MQ2Analog,
		&methane,
		&co2,
		&level,
		&r.Humidity,
		&r.TemperatureC,
		&tempF,
		&heatC,
		&heatF,
	); err != nil {
		return nil, err
	}

	r.CarbonLevel = Level(level)
	r.MethanePPM = floatPtr(methane)
	r.CO2Density = floatPtr(co2)
	r.TemperatureF = floatPtr(tempF)
	r.HeatIndexC = floatPtr(heatC)
	r.HeatIndexF = floatPtr(heatF)

	return &r, nil
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
