package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetBarangay returns a barangay with its representative coordinate.
func (db *DB) GetBarangay(ctx context.Context, id int64) (*Barangay, error) {
	query := `
		SELECT barangay_id, name, latitude, longitude
		FROM barangays
		WHERE barangay_id = $1
	`

	var b Barangay
	err := db.QueryRowContext(ctx, query, id).Scan(&b.ID, &b.Name, &b.Latitude, &b.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetEstablishment returns an establishment or ErrNotFound.
func (db *DB) GetEstablishment(ctx context.Context, id int64) (*Establishment, error) {
	query := `
		SELECT establishment_id, name, barangay_id
		FROM establishments
		WHERE establishment_id = $1
	`

	var e Establishment
	err := db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Name, &e.BarangayID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListScopeIDs returns the ids that make up a scope level. CITY has no ids.
func (db *DB) ListScopeIDs(ctx context.Context, scope Scope) ([]int64, error) {
	var query string
	switch scope {
	case ScopeCity:
		return nil, nil
	case ScopeBarangay:
		query = `SELECT barangay_id FROM barangays ORDER BY barangay_id`
	case ScopeEstablishment:
		query = `SELECT establishment_id FROM establishments ORDER BY establishment_id`
	default:
		return nil, fmt.Errorf("unknown scope: %s", scope)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
