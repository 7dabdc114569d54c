// Package weather fetches forecasts from an Open-Meteo style API and
// aggregates hourly series to the daily values agronomy decisions run on.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Delhi, the fallback when geocoding cannot place a location.
const (
	DefaultLat = 28.6139
	DefaultLon = 77.2090
)

// Client talks to the forecast and geocoding endpoints.
type Client struct {
	forecastURL string
	geocodeURL  string
	userAgent   string
	http        *http.Client
	log         zerolog.Logger
}

// New builds a client. userAgent is required by Nominatim's usage policy.
func New(forecastURL, geocodeURL, userAgent string, log zerolog.Logger) *Client {
	return &Client{
		forecastURL: forecastURL,
		geocodeURL:  geocodeURL,
		userAgent:   userAgent,
		http:        &http.Client{Timeout: 20 * time.Second},
		log:         log.With().Str("component", "weather").Logger(),
	}
}

// Day is one day of aggregated forecast.
type Day struct {
	Date             string  `json:"date"`
	TempMean         float64 `json:"temp_mean"`
	TempMax          float64 `json:"temp_max"`
	TempMin          float64 `json:"temp_min"`
	HumidityMean     float64 `json:"humidity_mean"`
	RainSum          float64 `json:"rain_sum"`
	WindSpeedMean    float64 `json:"wind_speed_mean"`
	WindGustsMax     float64 `json:"wind_gusts_max"`
	SoilMoistureMean float64 `json:"soil_moisture_mean"`
}

// Summary condenses a daily series for prompts and alert thresholds.
type Summary struct {
	PeriodDays    int     `json:"period_days"`
	TempAvg       float64 `json:"temp_avg"`
	TempMax       float64 `json:"temp_max"`
	TempMin       float64 `json:"temp_min"`
	TotalRainfall float64 `json:"total_rainfall"`
	RainyDays     int     `json:"rainy_days"`
	AvgWindSpeed  float64 `json:"avg_wind_speed"`
	MaxWindGust   float64 `json:"max_wind_gust"`
}

// Forecast is the aggregated result for one location and period.
type Forecast struct {
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Start     string  `json:"start"`
	End       string  `json:"end"`
	Days      []Day   `json:"daily_data"`
	Summary   Summary `json:"summary"`
}

// Locate geocodes a pincode or place name. On failure it logs and returns
// the default coordinates rather than blocking the advisory.
func (c *Client) Locate(ctx context.Context, location string) (lat, lon float64) {
	query := strings.TrimSpace(location)
	if isPincode(query) {
		query += ", India"
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geocodeURL+"?"+q.Encode(), nil)
	if err != nil {
		return DefaultLat, DefaultLon
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("location", location).Msg("geocoding failed, using default coordinates")
		return DefaultLat, DefaultLon
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("location", location).
			Msg("geocoding failed, using default coordinates")
		return DefaultLat, DefaultLon
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(body, &results); err != nil || len(results) == 0 {
		c.log.Warn().Str("location", location).Msg("location not found, using default coordinates")
		return DefaultLat, DefaultLon
	}

	fmt.Sscanf(results[0].Lat, "%f", &lat)
	fmt.Sscanf(results[0].Lon, "%f", &lon)
	if lat == 0 && lon == 0 {
		return DefaultLat, DefaultLon
	}
	return lat, lon
}

func isPincode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type hourlyResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Humidity      []float64 `json:"relative_humidity_2m"`
		Rain          []float64 `json:"rain"`
		WindSpeed120m []float64 `json:"wind_speed_120m"`
		WindGusts10m  []float64 `json:"wind_gusts_10m"`
		SoilMoisture  []float64 `json:"soil_moisture_3_to_9cm"`
	} `json:"hourly"`
}

// Fetch retrieves the hourly forecast for [start, end] (YYYY-MM-DD, both
// inclusive) and aggregates it to a daily series.
func (c *Client) Fetch(ctx context.Context, location string, lat, lon float64, start, end string) (*Forecast, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("start_date", start)
	q.Set("end_date", end)
	q.Set("hourly", strings.Join([]string{
		"temperature_2m", "relative_humidity_2m", "rain",
		"wind_speed_120m", "wind_gusts_10m", "soil_moisture_3_to_9cm",
	}, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.forecastURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API error (status %d): %s", resp.StatusCode, string(body))
	}

	var hr hourlyResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	days := aggregateDaily(&hr)
	if len(days) == 0 {
		return nil, fmt.Errorf("weather API returned no hourly data")
	}

	return &Forecast{
		Location:  location,
		Latitude:  lat,
		Longitude: lon,
		Start:     start,
		End:       end,
		Days:      days,
		Summary:   Summarize(days),
	}, nil
}

// aggregateDaily folds hourly samples into per-date mean/max/min/sum values.
func aggregateDaily(hr *hourlyResponse) []Day {
	type acc struct {
		n                                  int
		tempSum, tempMax, tempMin          float64
		humSum, rainSum, windSum, soilSum  float64
		gustMax                            float64
	}
	order := []string{}
	byDate := map[string]*acc{}

	h := hr.Hourly
	for i, ts := range h.Time {
		if len(ts) < 10 {
			continue
		}
		date := ts[:10]
		a, ok := byDate[date]
		if !ok {
			a = &acc{tempMax: -1e9, tempMin: 1e9}
			byDate[date] = a
			order = append(order, date)
		}
		a.n++
		if i < len(h.Temperature) {
			t := h.Temperature[i]
			a.tempSum += t
			if t > a.tempMax {
				a.tempMax = t
			}
			if t < a.tempMin {
				a.tempMin = t
			}
		}
		if i < len(h.Humidity) {
			a.humSum += h.Humidity[i]
		}
		if i < len(h.Rain) {
			a.rainSum += h.Rain[i]
		}
		if i < len(h.WindSpeed120m) {
			a.windSum += h.WindSpeed120m[i]
		}
		if i < len(h.WindGusts10m) && h.WindGusts10m[i] > a.gustMax {
			a.gustMax = h.WindGusts10m[i]
		}
		if i < len(h.SoilMoisture) {
			a.soilSum += h.SoilMoisture[i]
		}
	}

	days := make([]Day, 0, len(order))
	for _, date := range order {
		a := byDate[date]
		n := float64(a.n)
		days = append(days, Day{
			Date:             date,
			TempMean:         round1(a.tempSum / n),
			TempMax:          round1(a.tempMax),
			TempMin:          round1(a.tempMin),
			HumidityMean:     round1(a.humSum / n),
			RainSum:          round1(a.rainSum),
			WindSpeedMean:    round1(a.windSum / n),
			WindGustsMax:     round1(a.gustMax),
			SoilMoistureMean: round3(a.soilSum / n),
		})
	}
	return days
}

// Summarize condenses a daily series.
func Summarize(days []Day) Summary {
	if len(days) == 0 {
		return Summary{}
	}
	s := Summary{
		PeriodDays: len(days),
		TempMax:    days[0].TempMax,
		TempMin:    days[0].TempMin,
	}
	var tempSum, windSum float64
	for _, d := range days {
		tempSum += d.TempMean
		windSum += d.WindSpeedMean
		s.TotalRainfall += d.RainSum
		if d.RainSum > 0.1 {
			s.RainyDays++
		}
		if d.TempMax > s.TempMax {
			s.TempMax = d.TempMax
		}
		if d.TempMin < s.TempMin {
			s.TempMin = d.TempMin
		}
		if d.WindGustsMax > s.MaxWindGust {
			s.MaxWindGust = d.WindGustsMax
		}
	}
	s.TempAvg = round1(tempSum / float64(len(days)))
	s.AvgWindSpeed = round1(windSum / float64(len(days)))
	s.TotalRainfall = round1(s.TotalRainfall)
	return s
}

func round1(v float64) float64 { return float64(int(v*10+sign(v)*0.5)) / 10 }
func round3(v float64) float64 { return float64(int(v*1000+sign(v)*0.5)) / 1000 }

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
