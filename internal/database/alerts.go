package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertAlerts stores alerts for one reading in a single transaction and
// returns the ones that were new, with their IDs and creation times set. An
// alert whose (data_id, type) already exists is skipped.
func (db *DB) InsertAlerts(ctx context.Context, alerts []*Alert) ([]*Alert, error) {
	if len(alerts) == 0 {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin alert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alerts (data_id, sensor_id, type, value, level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (data_id, type) DO NOTHING
		RETURNING alert_id, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare alert insert: %w", err)
	}
	defer stmt.Close()

	var inserted []*Alert
	for _, a := range alerts {
		err := stmt.QueryRowContext(ctx,
			a.DataID,
			a.SensorID,
			a.Type,
			nullFloat(a.Value),
			string(a.Level),
		).Scan(&a.ID, &a.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert %s alert: %w", a.Type, err)
		}
		inserted = append(inserted, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit alerts: %w", err)
	}
	return inserted, nil
}

// AlertsBySensor returns all alerts raised for a sensor, newest first.
func (db *DB) AlertsBySensor(ctx context.Context, sensorID int64) ([]Alert, error) {
	query := `
		SELECT alert_id, data_id, sensor_id, type, value, level, created_at
		FROM alerts
		WHERE sensor_id = $1
		ORDER BY created_at DESC, alert_id DESC
	`

	rows, err := db.QueryContext(ctx, query, sensorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var (
			a     Alert
			value sql.NullFloat64
			level string
		)
		if err := rows.Scan(&a.ID, &a.DataID, &a.SensorID, &a.Type, &value, &level, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Value = floatPtr(value)
		a.Level = Level(level)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}
