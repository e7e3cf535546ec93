package database_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Poyyy414/ByteTech/internal/aggregation"
	"github.com/Poyyy414/ByteTech/internal/apperr"
	"github.com/Poyyy414/ByteTech/internal/database"
)

const defaultTestDSN = "host=localhost port=5432 user=bytetech password=bytetech dbname=carbonwatch sslmode=disable"

// setup connects to TEST_DATABASE_URL (or a local default), creates a
// throwaway schema and runs the migrations in it. Tests are skipped when no
// Postgres is reachable.
func setup(t *testing.T) (context.Context, *database.DB) {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = defaultTestDSN
	}

	admin, err := database.Connect(ctx, dsn, zerolog.Nop())
	if err != nil {
		t.Skipf("postgres not available: %s", err)
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	db, err := database.Connect(ctx, withSearchPath(dsn, schema), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(ctx, "../../migrations"))
	return ctx, db
}

func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

func exec(t *testing.T, ctx context.Context, db *database.DB, query string, args ...any) {
	t.Helper()
	_, err := db.ExecContext(ctx, query, args...)
	require.NoError(t, err)
}

// seedScopes creates two barangays and two establishments:
//
//	sensor 1: barangay 1
//	sensor 2: no barangay, establishment 10 (barangay 2)
//	sensor 3: barangay 1, establishment 10
//
// Sensor 99 is never registered.
func seedScopes(t *testing.T, ctx context.Context, db *database.DB) {
	t.Helper()
	exec(t, ctx, db, `INSERT INTO barangays (barangay_id, name, latitude, longitude) VALUES
		(1, 'Bagong Silang', 13.62, 123.19),
		(2, 'Concepcion Pequeña', 13.63, 123.20)`)
	exec(t, ctx, db, `INSERT INTO establishments (establishment_id, name, barangay_id) VALUES
		(10, 'Public Market', 2),
		(11, 'City Hall', 1)`)
	exec(t, ctx, db, `INSERT INTO sensors (sensor_id, sensor_name, barangay_id, establishment_id) VALUES
		(1, 'street-1', 1, NULL),
		(2, 'market-1', NULL, 10),
		(3, 'market-2', 1, 10)`)
}

func insertReading(t *testing.T, ctx context.Context, db *database.DB, sensorID int64, at time.Time, tempC float64, co2 *float64) *database.Reading {
	t.Helper()
	r := &database.Reading{
		SensorID:     sensorID,
		RecordedAt:   at,
		MQ2Analog:    300,
		CO2Density:   co2,
		CarbonLevel:  database.LevelNormal,
		Humidity:     60,
		TemperatureC: tempC,
	}
	require.NoError(t, db.InsertReading(ctx, r))
	require.NotZero(t, r.ID)
	return r
}

func ptr[T any](v T) *T { return &v }

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func seedWeek(t *testing.T, ctx context.Context, db *database.DB) aggregation.Window {
	t.Helper()
	seedScopes(t, ctx, db)

	insertReading(t, ctx, db, 1, utc("2026-03-10T08:00:00Z"), 20, ptr(400.0))
	insertReading(t, ctx, db, 2, utc("2026-03-12T08:00:00Z"), 22, nil)
	insertReading(t, ctx, db, 3, utc("2026-03-14T08:00:00Z"), 24, ptr(600.0))
	insertReading(t, ctx, db, 99, utc("2026-03-15T08:00:00Z"), 30, ptr(800.0))
	insertReading(t, ctx, db, 1, utc("2026-03-16T23:59:00Z"), 26, nil)
	insertReading(t, ctx, db, 1, utc("2026-03-17T00:00:00Z"), 40, ptr(900.0))
	insertReading(t, ctx, db, 1, utc("2026-03-09T23:59:59Z"), 50, ptr(100.0))

	w, err := aggregation.NewWindow(utc("2026-03-10T00:00:00Z"), utc("2026-03-16T00:00:00Z"))
	require.NoError(t, err)
	return w
}

func TestScopeSamples(t *testing.T) {
	ctx, db := setup(t)
	w := seedWeek(t, ctx, db)
	from, to := w.Bounds()

	tests := []struct {
		name    string
		scope   database.Scope
		scopeID *int64
		metric  database.Metric
		want    []float64
	}{
		{"barangay uses own or inherited barangay", database.ScopeBarangay, ptr(int64(1)), database.MetricTemperatureC, []float64{20, 24, 26}},
		{"sensor without barangay inherits establishment's", database.ScopeBarangay, ptr(int64(2)), database.MetricTemperatureC, []float64{22}},
		{"establishment", database.ScopeEstablishment, ptr(int64(10)), database.MetricTemperatureC, []float64{22, 24}},
		{"city includes unregistered sensors", database.ScopeCity, nil, database.MetricTemperatureC, []float64{20, 22, 24, 30, 26}},
		{"null co2 samples are skipped", database.ScopeCity, nil, database.MetricCO2Density, []float64{400, 600, 800}},
		{"establishment without sensors", database.ScopeEstablishment, ptr(int64(11)), database.MetricTemperatureC, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			samples, err := db.ScopeSamples(ctx, tc.scope, tc.scopeID, tc.metric, from, to)
			require.NoError(t, err)
			if tc.want == nil {
				assert.Empty(t, samples)
				return
			}
			assert.Equal(t, tc.want, samples)
		})
	}
}

func TestScopeSamples_MissingScopeID(t *testing.T) {
	ctx, db := setup(t)
	w := seedWeek(t, ctx, db)
	from, to := w.Bounds()

	_, err := db.ScopeSamples(ctx, database.ScopeBarangay, nil, database.MetricTemperatureC, from, to)
	assert.Error(t, err)
}

func TestWeeklyAggregation_AgainstPostgres(t *testing.T) {
	ctx, db := setup(t)
	w := seedWeek(t, ctx, db)
	aggregator := aggregation.NewWeeklyAggregator(db, zerolog.Nop())

	temp, err := aggregator.AggregateTemperature(ctx, database.ScopeBarangay, ptr(int64(1)), w)
	require.NoError(t, err)
	assert.Equal(t, 3, temp.SampleCount)
	require.NotNil(t, temp.AvgTemperatureC)
	assert.InDelta(t, 70.0/3, *temp.AvgTemperatureC, 1e-9)
	assert.Equal(t, 26.0, *temp.MaxTemperatureC)
	// The previous week only holds the 03-09 reading.
	require.NotNil(t, temp.ChangeVsLastWeek)
	assert.InDelta(t, 70.0/3-50, *temp.ChangeVsLastWeek, 1e-9)

	carbon, err := aggregator.AggregateCarbon(ctx, database.ScopeCity, nil, w)
	require.NoError(t, err)
	assert.Equal(t, 3, carbon.SampleCount)
	require.NotNil(t, carbon.TotalCO2Tons)
	assert.InDelta(t, 0.0018, *carbon.TotalCO2Tons, 1e-12)

	stored, err := db.ListCarbonReports(ctx, database.ReportFilter{Scope: ptr(database.ScopeCity)})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].ScopeID)
	assert.Equal(t, "2026-03-10", stored[0].WeekStart.Format(time.DateOnly))
	assert.Equal(t, "2026-03-16", stored[0].WeekEnd.Format(time.DateOnly))
	assert.InDelta(t, 0.0018, *stored[0].TotalCO2Tons, 1e-12)
}

func TestCheckScope_AgainstPostgres(t *testing.T) {
	ctx, db := setup(t)
	seedScopes(t, ctx, db)
	aggregator := aggregation.NewWeeklyAggregator(db, zerolog.Nop())

	assert.NoError(t, aggregator.CheckScope(ctx, database.ScopeBarangay, ptr(int64(2))))
	assert.NoError(t, aggregator.CheckScope(ctx, database.ScopeEstablishment, ptr(int64(11))))
	assert.NoError(t, aggregator.CheckScope(ctx, database.ScopeCity, nil))

	err := aggregator.CheckScope(ctx, database.ScopeEstablishment, ptr(int64(404)))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	err = aggregator.CheckScope(ctx, database.ScopeBarangay, ptr(int64(404)))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestScopeLookups(t *testing.T) {
	ctx, db := setup(t)
	seedScopes(t, ctx, db)

	b, err := db.GetBarangay(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Concepcion Pequeña", b.Name)
	assert.Equal(t, 13.63, b.Latitude)

	e, err := db.GetEstablishment(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.BarangayID)

	_, err = db.GetBarangay(ctx, 404)
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = db.GetEstablishment(ctx, 404)
	assert.ErrorIs(t, err, database.ErrNotFound)

	ids, err := db.ListScopeIDs(ctx, database.ScopeBarangay)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = db.ListScopeIDs(ctx, database.ScopeEstablishment)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)

	ids, err = db.ListScopeIDs(ctx, database.ScopeCity)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReadingsAndAlerts(t *testing.T) {
	ctx, db := setup(t)

	first := insertReading(t, ctx, db, 7, utc("2026-03-10T08:00:00Z"), 36, nil)
	second := insertReading(t, ctx, db, 7, utc("2026-03-10T09:00:00Z"), 37, nil)
	insertReading(t, ctx, db, 7, utc("2026-03-11T09:00:00Z"), 38, nil)

	latest, err := db.LatestReading(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 38.0, latest.TemperatureC)
	assert.Nil(t, latest.CO2Density)

	_, err = db.LatestReading(ctx, 8)
	assert.ErrorIs(t, err, database.ErrNotFound)

	alert := &database.Alert{
		DataID:   first.ID,
		SensorID: 7,
		Type:     database.AlertTypeHighTemperature,
		Value:    ptr(36.0),
		Level:    database.LevelVeryHigh,
	}
	inserted, err := db.InsertAlerts(ctx, []*database.Alert{alert})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.NotZero(t, inserted[0].ID)
	assert.False(t, inserted[0].CreatedAt.IsZero())

	pending, err := db.ReadingsWithoutAlerts(ctx, utc("2026-03-10T00:00:00Z"), utc("2026-03-11T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestInsertAlerts_SkipsExistingRule(t *testing.T) {
	ctx, db := setup(t)
	r := insertReading(t, ctx, db, 7, utc("2026-03-10T08:00:00Z"), 36, nil)

	newAlert := func(alertType string) *database.Alert {
		return &database.Alert{DataID: r.ID, SensorID: 7, Type: alertType, Value: ptr(36.0), Level: database.LevelVeryHigh}
	}

	inserted, err := db.InsertAlerts(ctx, []*database.Alert{newAlert(database.AlertTypeHighTemperature)})
	require.NoError(t, err)
	require.Len(t, inserted, 1)

	inserted, err = db.InsertAlerts(ctx, []*database.Alert{
		newAlert(database.AlertTypeHighTemperature),
		newAlert(database.AlertTypeMethane),
	})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, database.AlertTypeMethane, inserted[0].Type)

	stored, err := db.AlertsBySensor(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestListReports_Filter(t *testing.T) {
	ctx, db := setup(t)
	week1 := utc("2026-03-02T00:00:00Z")
	week2 := utc("2026-03-09T00:00:00Z")

	for _, r := range []database.CarbonReport{
		{ReportHeader: database.ReportHeader{Scope: database.ScopeCity, WeekStart: week1, WeekEnd: week1.AddDate(0, 0, 6)}},
		{ReportHeader: database.ReportHeader{Scope: database.ScopeBarangay, ScopeID: ptr(int64(1)), WeekStart: week1, WeekEnd: week1.AddDate(0, 0, 6)}},
		{ReportHeader: database.ReportHeader{Scope: database.ScopeBarangay, ScopeID: ptr(int64(2)), WeekStart: week2, WeekEnd: week2.AddDate(0, 0, 6)}},
		{ReportHeader: database.ReportHeader{Scope: database.ScopeBarangay, ScopeID: ptr(int64(1)), WeekStart: week2, WeekEnd: week2.AddDate(0, 0, 6)}},
	} {
		report := r
		require.NoError(t, db.InsertCarbonReport(ctx, &report))
	}

	tests := []struct {
		name   string
		filter database.ReportFilter
		want   int
	}{
		{"no filter", database.ReportFilter{}, 4},
		{"scope only", database.ReportFilter{Scope: ptr(database.ScopeBarangay)}, 3},
		{"scope and id", database.ReportFilter{Scope: ptr(database.ScopeBarangay), ScopeID: ptr(int64(1))}, 2},
		{"unknown id", database.ReportFilter{Scope: ptr(database.ScopeBarangay), ScopeID: ptr(int64(3))}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reports, err := db.ListCarbonReports(ctx, tc.filter)
			require.NoError(t, err)
			assert.Len(t, reports, tc.want)
			for i := 1; i < len(reports); i++ {
				assert.False(t, reports[i].WeekStart.After(reports[i-1].WeekStart), "latest week first")
			}
		})
	}

	weeks, err := db.ReportWeeks(ctx, database.FamilyCarbon)
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, "2026-03-09", weeks[0].WeekStart.Format(time.DateOnly))

	weeks, err = db.ReportWeeks(ctx, database.FamilyTemperature)
	require.NoError(t, err)
	assert.Empty(t, weeks)
}

func TestTemperatureReport_RoundTrip(t *testing.T) {
	ctx, db := setup(t)
	start := utc("2026-03-09T00:00:00Z")

	r := &database.TemperatureReport{
		ReportHeader: database.ReportHeader{
			Scope:       database.ScopeEstablishment,
			ScopeID:     ptr(int64(10)),
			WeekStart:   start,
			WeekEnd:     start.AddDate(0, 0, 6),
			SampleCount: 2,
		},
		AvgTemperatureC: ptr(31.5),
	}
	require.NoError(t, db.InsertTemperatureReport(ctx, r))
	assert.NotZero(t, r.ID)

	reports, err := db.ListTemperatureReports(ctx, database.ReportFilter{
		Scope:   ptr(database.ScopeEstablishment),
		ScopeID: ptr(int64(10)),
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 31.5, *reports[0].AvgTemperatureC)
	assert.Nil(t, reports[0].MinTemperatureC)
	assert.Nil(t, reports[0].ChangeVsLastWeek)
	assert.Equal(t, int64(10), *reports[0].ScopeID)
}
