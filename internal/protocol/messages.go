package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Poyyy414/ByteTech/internal/apperr"
	"github.com/Poyyy414/ByteTech/internal/database"
)

// Telemetry payload field names as sent by the sensor firmware.
const (
	FieldSensorID     = "sensor_id"
	FieldRecordedAt   = "recorded_at"
	FieldMQ2Analog    = "mq2_analog"
	FieldMethanePPM   = "methane_ppm"
	FieldCO2Density   = "co2_density"
	FieldCarbonLevel  = "carbon_level"
	FieldHumidity     = "humidity"
	FieldTemperatureC = "temperature_c"
	FieldTemperatureF = "temperature_f"
	FieldHeatIndexC   = "heat_index_c"
	FieldHeatIndexF   = "heat_index_f"
)

// ParseTelemetry decodes one sensor payload into a Reading. Numbers may be
// sent as JSON numbers or numeric strings. When recorded_at is absent the
// reading is stamped with receivedAt.
//
// Every missing or malformed field is collected so the caller gets the full
// list in a single validation error.
func ParseTelemetry(data []byte, receivedAt time.Time) (*database.Reading, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, apperr.Validationf("body must be a JSON object")
	}

	p := &payloadParser{raw: raw}
	r := &database.Reading{
		SensorID:     p.requiredID(FieldSensorID),
		MQ2Analog:    p.requiredNumber(FieldMQ2Analog),
		TemperatureC: p.requiredNumber(FieldTemperatureC),
		Humidity:     p.requiredNumber(FieldHumidity),
		MethanePPM:   p.optionalNumber(FieldMethanePPM),
		CO2Density:   p.optionalNumber(FieldCO2Density),
		TemperatureF: p.optionalNumber(FieldTemperatureF),
		HeatIndexC:   p.optionalNumber(FieldHeatIndexC),
		HeatIndexF:   p.optionalNumber(FieldHeatIndexF),
		CarbonLevel:  p.carbonLevel(FieldCarbonLevel),
		RecordedAt:   p.timestamp(FieldRecordedAt, receivedAt),
	}

	if len(p.invalid) > 0 {
		return nil, apperr.Validation(p.invalid...)
	}
	return r, nil
}

type payloadParser struct {
	raw     map[string]json.RawMessage
	invalid []string
}

func (p *payloadParser) fail(field string) {
	p.invalid = append(p.invalid, field)
}

// lookup returns the raw value and whether it is present and not null.
func (p *payloadParser) lookup(field string) (json.RawMessage, bool) {
	v, ok := p.raw[field]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func (p *payloadParser) requiredNumber(field string) float64 {
	v, ok := p.lookup(field)
	if !ok {
		p.fail(field)
		return 0
	}
	f, err := decodeNumber(v)
	if err != nil {
		p.fail(field)
		return 0
	}
	return f
}

func (p *payloadParser) requiredID(field string) int64 {
	v, ok := p.lookup(field)
	if !ok {
		p.fail(field)
		return 0
	}
	f, err := decodeNumber(v)
	if err != nil || f <= 0 || f != math.Trunc(f) || f >= 1<<63 {
		p.fail(field)
		return 0
	}
	return int64(f)
}

func (p *payloadParser) optionalNumber(field string) *float64 {
	v, ok := p.lookup(field)
	if !ok {
		return nil
	}
	f, err := decodeNumber(v)
	if err != nil {
		p.fail(field)
		return nil
	}
	return &f
}

func (p *payloadParser) carbonLevel(field string) database.Level {
	v, ok := p.lookup(field)
	if !ok {
		return database.LevelNormal
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		p.fail(field)
		return ""
	}
	if strings.TrimSpace(s) == "" {
		return database.LevelNormal
	}
	level, ok := database.ParseCarbonLevel(s)
	if !ok {
		p.fail(field)
		return ""
	}
	return level
}

func (p *payloadParser) timestamp(field string, fallback time.Time) time.Time {
	v, ok := p.lookup(field)
	if !ok {
		return fallback.UTC()
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		p.fail(field)
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		p.fail(field)
		return time.Time{}
	}
	return ts.UTC()
}

func decodeNumber(v json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", v)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}
