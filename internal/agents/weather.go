package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/weather"
)

// Alert thresholds, all per day.
const (
	heatAlertC      = 40.0 // max temperature
	heavyRainMm     = 50.0 // rain sum
	strongGustKmh   = 50.0 // max gust
	drySpellMm      = 1.0  // below this counts as a dry day
	workableRainMm  = 1.0
	workableWindKmh = 15.0
)

// Irrigation need boundaries over the forecast period.
const (
	irrigationLowAboveMm      = 25.0
	irrigationModerateAboveMm = 10.0
	irrigationHeatForceC      = 35.0 // avg temp above this forces high need
)

const maxForecastDays = 16

// Generic pipeline forecast spans, in days, by crop stage.
const (
	sowingSpanDays  = 16
	growingSpanDays = 10
	harvestSpanDays = 7
)

// Forecaster is the weather data surface. *weather.Client satisfies it.
type Forecaster interface {
	Locate(ctx context.Context, location string) (lat, lon float64)
	Fetch(ctx context.Context, location string, lat, lon float64, start, end string) (*weather.Forecast, error)
}

// WeatherAlert flags one day that needs attention.
type WeatherAlert struct {
	Date     string `json:"date"`
	Kind     string `json:"kind"` // heat, heavy_rain, strong_wind, dry_spell
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// WeatherAdvice is the weather specialist's structured payload.
type WeatherAdvice struct {
	Forecast       *weather.Forecast `json:"forecast"`
	Alerts         []WeatherAlert    `json:"alerts"`
	IrrigationNeed string            `json:"irrigation_need"` // low, moderate, high
	WorkWindows    []string          `json:"field_work_windows"`
	Season         string            `json:"season"`
	CropStage      string            `json:"crop_stage"`
}

// WeatherAgent answers forecast, irrigation, and field-work questions.
type WeatherAgent struct {
	llm LLM
	fc  Forecaster
	now func() time.Time
	log zerolog.Logger
}

func NewWeatherAgent(llm LLM, fc Forecaster, log zerolog.Logger) *WeatherAgent {
	return &WeatherAgent{
		llm: llm,
		fc:  fc,
		now: time.Now,
		log: log.With().Str("component", "weather_agent").Logger(),
	}
}

func (a *WeatherAgent) Tag() Tag { return TagWeather }

const weatherExtractPrompt = `You extract weather query parameters for an Indian farm advisory.
Reply with a JSON object: {"location": "<pincode or place, empty if unknown>",
"start_date": "YYYY-MM-DD or empty", "end_date": "YYYY-MM-DD or empty"}.
Dates are relative to today, %s. Only include what the query states.`

func (a *WeatherAgent) Process(ctx context.Context, req Request) (Finding, error) {
	now := a.now()

	var location, start, end string
	if req.Mode == ModeGeneric {
		// Broad guidance: skip query parsing, the season picks the window.
		location = profileLocation(req.Profile)
		start, end = SeasonalDates(now)
	} else {
		var params struct {
			Location  string `json:"location"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		system := fmt.Sprintf(weatherExtractPrompt, now.Format("2006-01-02"))
		if err := a.llm.CompleteJSON(ctx, system, req.Query, &params); err != nil {
			a.log.Warn().Err(err).Msg("parameter extraction failed, using profile defaults")
		}

		location = strings.TrimSpace(params.Location)
		if location == "" {
			location = profileLocation(req.Profile)
		}
		start, end = ClampDates(params.StartDate, params.EndDate, now)
	}

	lat, lon := a.fc.Locate(ctx, location)
	fc, err := a.fc.Fetch(ctx, location, lat, lon, start, end)
	if err != nil {
		return Failed(TagWeather, err), fmt.Errorf("weather fetch: %w", err)
	}

	season, stage := CurrentSeason(now.Month())
	advice := WeatherAdvice{
		Forecast:       fc,
		Alerts:         BuildAlerts(fc.Days),
		IrrigationNeed: IrrigationNeed(fc.Summary),
		WorkWindows:    WorkWindows(fc.Days),
		Season:         season,
		CropStage:      stage,
	}

	return Finding{
		Agent:      TagWeather,
		Status:     StatusOk,
		Structured: structured(advice),
		Prose:      describeWeather(&advice),
		Insights:   weatherInsights(&advice),
	}, nil
}

func profileLocation(p Profile) string {
	if p.Pincode != "" {
		return p.Pincode
	}
	if p.Village != "" {
		return p.Village
	}
	return p.District
}

// SeasonalDates picks the forecast window for generic pipeline runs:
// sowing stages need the full horizon to plan field preparation and
// seed arrangement, harvest stages a tight window around the cut, and
// growing stages sit in between.
func SeasonalDates(now time.Time) (string, string) {
	const layout = "2006-01-02"
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	_, stage := CurrentSeason(now.Month())
	days := growingSpanDays
	switch stage {
	case "sowing":
		days = sowingSpanDays
	case "harvest":
		days = harvestSpanDays
	}
	return today.Format(layout), today.AddDate(0, 0, days).Format(layout)
}

// ClampDates normalises a requested window: start no earlier than today,
// end at most maxForecastDays out and strictly after start. Blank or
// malformed inputs fall back to today through today+7.
func ClampDates(start, end string, now time.Time) (string, string) {
	const layout = "2006-01-02"
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	maxEnd := today.AddDate(0, 0, maxForecastDays)

	s, err := time.Parse(layout, start)
	if err != nil || s.Before(today) {
		s = today
	}
	e, err := time.Parse(layout, end)
	if err != nil {
		e = s.AddDate(0, 0, 7)
	}
	if e.After(maxEnd) {
		e = maxEnd
	}
	if !e.After(s) {
		e = s.AddDate(0, 0, 7)
		if e.After(maxEnd) {
			e = maxEnd
		}
	}
	return s.Format(layout), e.Format(layout)
}

// BuildAlerts scans the daily series for conditions worth flagging.
func BuildAlerts(days []weather.Day) []WeatherAlert {
	var alerts []WeatherAlert
	dryRun := 0
	for _, d := range days {
		if d.TempMax > heatAlertC {
			alerts = append(alerts, WeatherAlert{
				Date: d.Date, Kind: "heat", Severity: "high",
				Message: fmt.Sprintf("extreme heat expected, up to %.0f°C", d.TempMax),
			})
		}
		if d.RainSum > heavyRainMm {
			alerts = append(alerts, WeatherAlert{
				Date: d.Date, Kind: "heavy_rain", Severity: "high",
				Message: fmt.Sprintf("heavy rainfall expected, %.0fmm", d.RainSum),
			})
		}
		if d.WindGustsMax > strongGustKmh {
			alerts = append(alerts, WeatherAlert{
				Date: d.Date, Kind: "strong_wind", Severity: "moderate",
				Message: fmt.Sprintf("strong wind gusts up to %.0f km/h", d.WindGustsMax),
			})
		}
		if d.RainSum < drySpellMm {
			dryRun++
		} else {
			dryRun = 0
		}
	}
	if dryRun >= 5 && len(days) > 0 {
		alerts = append(alerts, WeatherAlert{
			Date: days[len(days)-1].Date, Kind: "dry_spell", Severity: "moderate",
			Message: fmt.Sprintf("dry spell: %d consecutive days with no useful rain", dryRun),
		})
	}
	return alerts
}

// IrrigationNeed grades the period's rainfall against crop water demand.
func IrrigationNeed(s weather.Summary) string {
	if s.TempAvg > irrigationHeatForceC {
		return "high"
	}
	switch {
	case s.TotalRainfall > irrigationLowAboveMm:
		return "low"
	case s.TotalRainfall > irrigationModerateAboveMm:
		return "moderate"
	default:
		return "high"
	}
}

// WorkWindows lists days calm and dry enough for spraying and harvest work.
func WorkWindows(days []weather.Day) []string {
	var out []string
	for _, d := range days {
		if d.RainSum < workableRainMm && d.WindSpeedMean < workableWindKmh {
			out = append(out, d.Date)
		}
	}
	return out
}

func describeWeather(a *WeatherAdvice) string {
	s := a.Forecast.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s, %s to %s: average %.0f°C (max %.0f°C, min %.0f°C), %.0fmm total rainfall over %d rainy days.",
		a.Forecast.Location, a.Forecast.Start, a.Forecast.End,
		s.TempAvg, s.TempMax, s.TempMin, s.TotalRainfall, s.RainyDays)
	fmt.Fprintf(&b, " Irrigation need is %s.", a.IrrigationNeed)
	for _, al := range a.Alerts {
		fmt.Fprintf(&b, " %s: %s.", al.Date, al.Message)
	}
	if len(a.WorkWindows) > 0 {
		fmt.Fprintf(&b, " Good days for field work: %s.", strings.Join(a.WorkWindows, ", "))
	}
	return b.String()
}

func weatherInsights(a *WeatherAdvice) []string {
	var out []string
	out = append(out, fmt.Sprintf("irrigation need: %s", a.IrrigationNeed))
	for _, al := range a.Alerts {
		out = append(out, fmt.Sprintf("%s alert on %s", al.Kind, al.Date))
	}
	if len(a.WorkWindows) > 0 {
		out = append(out, fmt.Sprintf("%d workable field days in period", len(a.WorkWindows)))
	}
	return out
}
