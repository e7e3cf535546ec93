package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 35.0, cfg.Thresholds.TemperatureHigh)
	assert.Equal(t, 40.0, cfg.Thresholds.TemperatureVeryHigh)
	assert.Equal(t, 100.0, cfg.Thresholds.MethaneHigh)
	assert.Equal(t, 200.0, cfg.Thresholds.MethaneVeryHigh)
	assert.Equal(t, 7, cfg.Forecast.Days)
	assert.Equal(t, time.Monday, cfg.Aggregation.RunDay)
	assert.Equal(t, "carbonwatch.alerts", cfg.Kafka.TopicAlerts)
	assert.Equal(t, 5*time.Minute, cfg.Aggregation.BackfillGrace)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FORECAST_TIMEOUT", "2s")
	t.Setenv("AGGREGATION_RUN_DAY", "Sunday")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Forecast.Timeout)
	assert.Equal(t, time.Sunday, cfg.Aggregation.RunDay)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoad_RejectsBadWeekday(t *testing.T) {
	t.Setenv("AGGREGATION_RUN_DAY", "someday")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_ThresholdOrder(t *testing.T) {
	t.Setenv("THRESHOLD_TEMPERATURE_HIGH", "45")

	_, err := Load()
	assert.ErrorContains(t, err, "temperature thresholds")
}

func TestValidate_RunTime(t *testing.T) {
	t.Setenv("AGGREGATION_RUN_TIME", "25:00")

	_, err := Load()
	assert.ErrorContains(t, err, "aggregation run time")
}

func TestValidate_BackfillGrace(t *testing.T) {
	t.Setenv("AGGREGATION_BACKFILL_GRACE", "-1m")

	_, err := Load()
	assert.ErrorContains(t, err, "backfill grace")
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.ConnectionString())
}
