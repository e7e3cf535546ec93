package forecast

import (
	"time"

	"github.com/Poyyy414/ByteTech/internal/database"
)

// WeatherDay is one day of external forecast data. Any metric may be missing.
type WeatherDay struct {
	Date            string   `json:"date"`
	TempMax         *float64 `json:"temp_max"`
	TempMin         *float64 `json:"temp_min"`
	RainProbability *float64 `json:"rain_probability"`
	WindSpeed       *float64 `json:"wind_speed"`
}

// Day is a forecast day with its predicted carbon level.
type Day struct {
	WeatherDay
	PredictedCarbonLevel database.Level `json:"predicted_carbon_level"`
}

// Weekly is the forecast returned for one barangay.
type Weekly struct {
	BarangayID   int64  `json:"barangay_id"`
	BarangayName string `json:"barangay_name"`
	ForecastDays int    `json:"forecast_days"`
	Forecast     []Day  `json:"forecast"`
	Degraded     bool   `json:"degraded"`
}

// Predict applies the carbon level rule table to one day. The first matching
// rule wins. Days missing max temperature, rain probability or wind speed are
// NORMAL.
func Predict(d WeatherDay) database.Level {
	if d.TempMax == nil || d.RainProbability == nil || d.WindSpeed == nil {
		return database.LevelNormal
	}
	tmax, rain, wind := *d.TempMax, *d.RainProbability, *d.WindSpeed

	switch {
	case tmax >= 35 && rain < 20 && wind < 3:
		return database.LevelVeryHigh
	case tmax >= 32 && rain < 40:
		return database.LevelHigh
	case rain >= 60 || wind >= 6:
		return database.LevelLow
	default:
		return database.LevelNormal
	}
}

// PredictAll predicts every day in order.
func PredictAll(days []WeatherDay) []Day {
	out := make([]Day, 0, len(days))
	for _, d := range days {
		out = append(out, Day{WeatherDay: d, PredictedCarbonLevel: Predict(d)})
	}
	return out
}

// Placeholder returns n days starting at today with no metrics and an UNKNOWN
// prediction. It stands in when the weather source is unavailable.
func Placeholder(today time.Time, n int) []Day {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	out := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Day{
			WeatherDay:           WeatherDay{Date: start.AddDate(0, 0, i).Format(time.DateOnly)},
			PredictedCarbonLevel: database.LevelUnknown,
		})
	}
	return out
}
