package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	HTTP        HTTPConfig
	Aggregation AggregationConfig
	Forecast    ForecastConfig
	Thresholds  ThresholdConfig
	SMTP        SMTPConfig
	Log         LogConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

type KafkaConfig struct {
	Brokers     []string
	TopicAlerts string
	Enabled     bool
}

type HTTPConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// AggregationConfig controls the weekly report job. RunDay is the weekday the
// previous week is rolled up on, RunTime is "HH:MM" local time. Alert backfill
// runs every BackfillWindow and skips readings younger than BackfillGrace.
type AggregationConfig struct {
	RunDay         time.Weekday
	RunTime        string
	BackfillWindow time.Duration
	BackfillGrace  time.Duration
}

type ForecastConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Days     int
	Timezone string
	CacheTTL time.Duration
	RPS      float64
	Burst    int
}

type ThresholdConfig struct {
	TemperatureHigh     float64
	TemperatureVeryHigh float64
	MethaneHigh         float64
	MethaneVeryHigh     float64
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	runDay, err := parseWeekday(getEnv("AGGREGATION_RUN_DAY", "monday"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "bytetech"),
			Password:      getEnv("DB_PASSWORD", "bytetech"),
			DBName:        getEnv("DB_NAME", "carbonwatch"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicAlerts: getEnv("KAFKA_TOPIC_ALERTS", "carbonwatch.alerts"),
			Enabled:     getEnvAsBool("KAFKA_ENABLED", true),
		},
		HTTP: HTTPConfig{
			Port:           getEnvAsInt("HTTP_PORT", 3000),
			ReadTimeout:    getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			AllowedOrigins: strings.Split(getEnv("HTTP_ALLOWED_ORIGINS", "*"), ","),
		},
		Aggregation: AggregationConfig{
			RunDay:         runDay,
			RunTime:        getEnv("AGGREGATION_RUN_TIME", "00:15"),
			BackfillWindow: getEnvAsDuration("AGGREGATION_BACKFILL_WINDOW", 24*time.Hour),
			BackfillGrace:  getEnvAsDuration("AGGREGATION_BACKFILL_GRACE", 5*time.Minute),
		},
		Forecast: ForecastConfig{
			BaseURL:  getEnv("FORECAST_BASE_URL", "https://api.open-meteo.com/v1"),
			Timeout:  getEnvAsDuration("FORECAST_TIMEOUT", 5*time.Second),
			Days:     getEnvAsInt("FORECAST_DAYS", 7),
			Timezone: getEnv("FORECAST_TIMEZONE", "Asia/Singapore"),
			CacheTTL: getEnvAsDuration("FORECAST_CACHE_TTL", 30*time.Minute),
			RPS:      getEnvAsFloat("FORECAST_RPS", 2),
			Burst:    getEnvAsInt("FORECAST_BURST", 4),
		},
		Thresholds: ThresholdConfig{
			TemperatureHigh:     getEnvAsFloat("THRESHOLD_TEMPERATURE_HIGH", 35),
			TemperatureVeryHigh: getEnvAsFloat("THRESHOLD_TEMPERATURE_VERY_HIGH", 40),
			MethaneHigh:         getEnvAsFloat("THRESHOLD_METHANE_HIGH", 100),
			MethaneVeryHigh:     getEnvAsFloat("THRESHOLD_METHANE_VERY_HIGH", 200),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "carbonwatch@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", false),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects combinations the services cannot run with.
func (c *Config) Validate() error {
	if c.Thresholds.TemperatureHigh >= c.Thresholds.TemperatureVeryHigh {
		return fmt.Errorf("temperature thresholds out of order: high=%.2f very_high=%.2f",
			c.Thresholds.TemperatureHigh, c.Thresholds.TemperatureVeryHigh)
	}
	if c.Thresholds.MethaneHigh >= c.Thresholds.MethaneVeryHigh {
		return fmt.Errorf("methane thresholds out of order: high=%.2f very_high=%.2f",
			c.Thresholds.MethaneHigh, c.Thresholds.MethaneVeryHigh)
	}
	if c.Forecast.Days <= 0 || c.Forecast.Days > 16 {
		return fmt.Errorf("forecast days must be between 1 and 16, got %d", c.Forecast.Days)
	}
	if c.Forecast.Timeout <= 0 {
		return fmt.Errorf("forecast timeout must be positive")
	}
	if c.Aggregation.BackfillGrace < 0 {
		return fmt.Errorf("backfill grace must not be negative")
	}
	var hour, minute int
	if _, err := fmt.Sscanf(c.Aggregation.RunTime, "%d:%d", &hour, &minute); err != nil || hour > 23 || minute > 59 {
		return fmt.Errorf("invalid aggregation run time: %s (expected HH:MM)", c.Aggregation.RunTime)
	}
	return nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday: %s", s)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
