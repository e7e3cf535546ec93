package alarming

import (
	"github.com/Poyyy414/ByteTech/internal/database"
)

// Thresholds are the inclusive lower bounds of each alert band. A value at or
// above the VeryHigh bound never also raises the High alert.
type Thresholds struct {
	TemperatureHigh     float64
	TemperatureVeryHigh float64
	MethaneHigh         float64
	MethaneVeryHigh     float64
}

// DefaultThresholds returns the bands used by the carbon watch sensors.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureHigh:     35,
		TemperatureVeryHigh: 40,
		MethaneHigh:         100,
		MethaneVeryHigh:     200,
	}
}

// Evaluator maps a reading to the alerts it should raise. It has no side
// effects and holds no state besides its thresholds.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates a new threshold evaluator
func NewEvaluator(thresholds Thresholds) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate returns alert drafts for r in rule order: carbon level, then
// temperature, then methane. Drafts carry the reading's id and sensor id but
// no alert id or creation time.
func (e *Evaluator) Evaluate(r *database.Reading) []*database.Alert {
	var drafts []*database.Alert

	if r.CarbonLevel == database.LevelHigh || r.CarbonLevel == database.LevelVeryHigh {
		drafts = append(drafts, draft(r, database.AlertTypeCarbonLevel, r.CarbonLevel, r.CO2Density))
	}

	if level, ok := band(r.TemperatureC, e.thresholds.TemperatureHigh, e.thresholds.TemperatureVeryHigh); ok {
		drafts = append(drafts, draft(r, database.AlertTypeHighTemperature, level, &r.TemperatureC))
	}

	if r.MethanePPM != nil {
		if level, ok := band(*r.MethanePPM, e.thresholds.MethaneHigh, e.thresholds.MethaneVeryHigh); ok {
			drafts = append(drafts, draft(r, database.AlertTypeMethane, level, r.MethanePPM))
		}
	}

	return drafts
}

// band picks the highest band value falls into.
func band(value, high, veryHigh float64) (database.Level, bool) {
	switch {
	case value >= veryHigh:
		return database.LevelVeryHigh, true
	case value >= high:
		return database.LevelHigh, true
	default:
		return "", false
	}
}

func draft(r *database.Reading, alertType string, level database.Level, value *float64) *database.Alert {
	return &database.Alert{
		DataID:   r.ID,
		SensorID: r.SensorID,
		Type:     alertType,
		Value:    copyFloat(value),
		Level:    level,
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}
