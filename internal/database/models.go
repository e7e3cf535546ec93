package database

import (
	"fmt"
	"strings"
	"time"
)

// Level is the shared severity scale used by carbon readings, alerts and
// forecast predictions.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelNormal   Level = "NORMAL"
	LevelHigh     Level = "HIGH"
	LevelVeryHigh Level = "VERY_HIGH"
	LevelUnknown  Level = "UNKNOWN"
)

// ParseCarbonLevel normalizes a sensor supplied carbon level. Matching is
// case-insensitive and accepts "VERY HIGH" and "VERY-HIGH" as sent by older
// firmware.
func ParseCarbonLevel(s string) (Level, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	switch Level(normalized) {
	case LevelLow, LevelNormal, LevelHigh, LevelVeryHigh:
		return Level(normalized), true
	default:
		return "", false
	}
}

// Scope is the aggregation granularity of a weekly report.
type Scope string

const (
	ScopeEstablishment Scope = "ESTABLISHMENT"
	ScopeBarangay      Scope = "BARANGAY"
	ScopeCity          Scope = "CITY"
)

func ParseScope(s string) (Scope, error) {
	switch scope := Scope(strings.ToUpper(strings.TrimSpace(s))); scope {
	case ScopeEstablishment, ScopeBarangay, ScopeCity:
		return scope, nil
	default:
		return "", fmt.Errorf("unknown scope %q (expected ESTABLISHMENT, BARANGAY or CITY)", s)
	}
}

// Family selects which weekly report table and metric is used.
type Family string

const (
	FamilyCarbon      Family = "carbon"
	FamilyTemperature Family = "temperature"
)

func ParseFamily(s string) (Family, error) {
	switch family := Family(strings.ToLower(s)); family {
	case FamilyCarbon, FamilyTemperature:
		return family, nil
	default:
		return "", fmt.Errorf("unknown report family %q", s)
	}
}

// Reading is one immutable telemetry sample from a field sensor.
type Reading struct {
	ID           int64     `json:"data_id"`
	SensorID     int64     `json:"sensor_id"`
	RecordedAt   time.Time `json:"recorded_at"`
	MQ2Analog    float64   `json:"mq2_analog"`
	MethanePPM   *float64  `json:"methane_ppm"`
	CO2Density   *float64  `json:"co2_density"`
	CarbonLevel  Level     `json:"carbon_level"`
	Humidity     float64   `json:"humidity"`
	TemperatureC float64   `json:"temperature_c"`
	TemperatureF *float64  `json:"temperature_f"`
	HeatIndexC   *float64  `json:"heat_index_c"`
	HeatIndexF   *float64  `json:"heat_index_f"`
}

// Alert types produced by the threshold evaluator.
const (
	AlertTypeCarbonLevel     = "Carbon Level"
	AlertTypeHighTemperature = "High Temperature"
	AlertTypeMethane         = "Methane"
)

// Alert is owned by the reading whose evaluation produced it.
type Alert struct {
	ID        int64     `json:"alert_id"`
	DataID    int64     `json:"data_id"`
	SensorID  int64     `json:"sensor_id"`
	Type      string    `json:"type"`
	Value     *float64  `json:"value"`
	Level     Level     `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportHeader holds the fields shared by both weekly report families.
type ReportHeader struct {
	ID               int64     `json:"report_id"`
	Scope            Scope     `json:"scope"`
	ScopeID          *int64    `json:"scope_id"`
	WeekStart        time.Time `json:"week_start"`
	WeekEnd          time.Time `json:"week_end"`
	SampleCount      int       `json:"sample_count"`
	ChangeVsLastWeek *float64  `json:"change_vs_last_week"`
	CreatedAt        time.Time `json:"created_at"`
}

type CarbonReport struct {
	ReportHeader
	AvgCO2Density *float64 `json:"avg_co2_density"`
	MinCO2Density *float64 `json:"min_co2_density"`
	MaxCO2Density *float64 `json:"max_co2_density"`
	TotalCO2Tons  *float64 `json:"total_co2_tons"`
}

type TemperatureReport struct {
	ReportHeader
	AvgTemperatureC *float64 `json:"avg_temperature_c"`
	MinTemperatureC *float64 `json:"min_temperature_c"`
	MaxTemperatureC *float64 `json:"max_temperature_c"`
}

// ReportFilter narrows report listings. A nil Scope lists everything.
type ReportFilter struct {
	Scope   *Scope
	ScopeID *int64
}

// ReportWeek is one distinct reporting window.
type ReportWeek struct {
	WeekStart time.Time `json:"week_start"`
	WeekEnd   time.Time `json:"week_end"`
}

// Barangay is read-only reference data owned by the admin CRUD layer.
type Barangay struct {
	ID        int64   `json:"barangay_id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Establishment is read-only reference data like Barangay.
type Establishment struct {
	ID         int64  `json:"establishment_id"`
	Name       string `json:"name"`
	BarangayID int64  `json:"barangay_id"`
}

// Metric names a numeric reading column that can be aggregated.
type Metric string

const (
	MetricTemperatureC Metric = "temperature_c"
	MetricCO2Density   Metric = "co2_density"
)
