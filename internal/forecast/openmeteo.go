package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const openMeteoDailyFields = "temperature_2m_max,temperature_2m_min,precipitation_probability_max,wind_speed_10m_max"

// OpenMeteoSource provides daily forecasts from the Open-Meteo API
type OpenMeteoSource struct {
	baseURL  string
	timezone string
	client   *http.Client
}

var _ Source = (*OpenMeteoSource)(nil)

// NewOpenMeteoSource creates a new Open-Meteo source. baseURL is the API root,
// e.g. https://api.open-meteo.com/v1.
func NewOpenMeteoSource(baseURL, timezone string, timeout time.Duration) *OpenMeteoSource {
	return &OpenMeteoSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timezone: timezone,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider name
func (o *OpenMeteoSource) Name() string {
	return "Open-Meteo"
}

// openMeteoResponse holds the daily block. Entries are null when the model
// has no value for a day.
type openMeteoResponse struct {
	Daily *struct {
		Time                        []string   `json:"time"`
		Temperature2mMax            []*float64 `json:"temperature_2m_max"`
		Temperature2mMin            []*float64 `json:"temperature_2m_min"`
		PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
		WindSpeed10mMax             []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// FetchDaily gets the daily forecast for a coordinate
func (o *OpenMeteoSource) FetchDaily(ctx context.Context, lat, lon float64, days int) ([]WeatherDay, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("daily", openMeteoDailyFields)
	params.Set("timezone", o.timezone)
	params.Set("forecast_days", strconv.Itoa(days))

	apiURL := o.baseURL + "/forecast?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open-meteo returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data openMeteoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if data.Error {
		return nil, fmt.Errorf("open-meteo error: %s", data.Reason)
	}
	if data.Daily == nil || len(data.Daily.Time) == 0 {
		return nil, fmt.Errorf("open-meteo returned no daily data")
	}

	d := data.Daily
	out := make([]WeatherDay, 0, len(d.Time))
	for i, date := range d.Time {
		out = append(out, WeatherDay{
			Date:            date,
			TempMax:         at(d.Temperature2mMax, i),
			TempMin:         at(d.Temperature2mMin, i),
			RainProbability: at(d.PrecipitationProbabilityMax, i),
			WindSpeed:       at(d.WindSpeed10mMax, i),
		})
	}

	return out, nil
}

// at tolerates series shorter than the time axis.
func at(series []*float64, i int) *float64 {
	if i >= len(series) {
		return nil
	}
	return series[i]
}
