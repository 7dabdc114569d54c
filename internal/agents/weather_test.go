package agents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/agrivoice/internal/weather"
)

type fakeLLM struct {
	jsonReply string
	textReply string
	err       error
	calls     int
}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	f.calls++
	return f.textReply, f.err
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, system, user string, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.jsonReply), out)
}

type fakeForecaster struct {
	fc       *weather.Forecast
	err      error
	gotStart string
	gotEnd   string
	gotPlace string
}

func (f *fakeForecaster) Locate(ctx context.Context, location string) (float64, float64) {
	f.gotPlace = location
	return 19.07, 72.88
}

func (f *fakeForecaster) Fetch(ctx context.Context, location string, lat, lon float64, start, end string) (*weather.Forecast, error) {
	f.gotStart, f.gotEnd = start, end
	return f.fc, f.err
}

func TestClampDates(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
	}{
		{"defaults", "", "", "2026-08-25", "2026-09-01"},
		{"past start clamped", "2026-08-01", "2026-08-28", "2026-08-25", "2026-08-28"},
		{"end beyond horizon", "2026-08-26", "2026-12-01", "2026-08-26", "2026-09-10"},
		{"end before start", "2026-08-28", "2026-08-26", "2026-08-28", "2026-09-04"},
		{"garbage input", "soon", "later", "2026-08-25", "2026-09-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := ClampDates(tt.start, tt.end, now)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("ClampDates(%q, %q) = %s..%s, want %s..%s",
					tt.start, tt.end, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestBuildAlerts(t *testing.T) {
	days := []weather.Day{
		{Date: "2026-08-25", TempMax: 42, RainSum: 0, WindGustsMax: 30},
		{Date: "2026-08-26", TempMax: 35, RainSum: 60, WindGustsMax: 55},
	}
	alerts := BuildAlerts(days)

	kinds := map[string]bool{}
	for _, a := range alerts {
		kinds[a.Kind] = true
	}
	for _, want := range []string{"heat", "heavy_rain", "strong_wind"} {
		if !kinds[want] {
			t.Errorf("missing %s alert in %+v", want, alerts)
		}
	}
	if kinds["dry_spell"] {
		t.Error("dry_spell alert should need five consecutive dry days")
	}
}

func TestBuildAlertsDrySpell(t *testing.T) {
	var days []weather.Day
	for i := 0; i < 6; i++ {
		days = append(days, weather.Day{Date: "2026-08-2" + string(rune('0'+i)), RainSum: 0.2, TempMax: 30})
	}
	alerts := BuildAlerts(days)
	found := false
	for _, a := range alerts {
		if a.Kind == "dry_spell" {
			found = true
		}
	}
	if !found {
		t.Errorf("six dry days should raise a dry_spell alert, got %+v", alerts)
	}
}

func TestIrrigationNeed(t *testing.T) {
	tests := []struct {
		summary weather.Summary
		want    string
	}{
		{weather.Summary{TotalRainfall: 30, TempAvg: 28}, "low"},
		{weather.Summary{TotalRainfall: 15, TempAvg: 28}, "moderate"},
		{weather.Summary{TotalRainfall: 5, TempAvg: 28}, "high"},
		{weather.Summary{TotalRainfall: 30, TempAvg: 38}, "high"}, // heat overrides rain
	}
	for _, tt := range tests {
		if got := IrrigationNeed(tt.summary); got != tt.want {
			t.Errorf("IrrigationNeed(rain=%v, temp=%v) = %s, want %s",
				tt.summary.TotalRainfall, tt.summary.TempAvg, got, tt.want)
		}
	}
}

func TestWorkWindows(t *testing.T) {
	days := []weather.Day{
		{Date: "2026-08-25", RainSum: 0, WindSpeedMean: 10},
		{Date: "2026-08-26", RainSum: 5, WindSpeedMean: 10},
		{Date: "2026-08-27", RainSum: 0, WindSpeedMean: 20},
		{Date: "2026-08-28", RainSum: 0.5, WindSpeedMean: 12},
	}
	got := WorkWindows(days)
	want := []string{"2026-08-25", "2026-08-28"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("WorkWindows = %v, want %v", got, want)
	}
}

func TestWeatherAgentFallsBackToProfileLocation(t *testing.T) {
	llm := &fakeLLM{jsonReply: `{"location":"","start_date":"","end_date":""}`}
	fc := &fakeForecaster{fc: &weather.Forecast{
		Location: "400001",
		Days:     []weather.Day{{Date: "2026-08-25", TempMean: 28, TempMax: 32, RainSum: 2}},
		Summary:  weather.Summary{PeriodDays: 1, TempAvg: 28, TotalRainfall: 2},
	}}

	agent := NewWeatherAgent(llm, fc, zerolog.Nop())
	agent.now = func() time.Time { return time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC) }

	finding, err := agent.Process(context.Background(), Request{
		Query:   "will it rain this week",
		Profile: Profile{Pincode: "400001"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if finding.Status != StatusOk {
		t.Errorf("status = %s", finding.Status)
	}
	if fc.gotPlace != "400001" {
		t.Errorf("geocoded %q, want the profile pincode", fc.gotPlace)
	}
	if fc.gotStart != "2026-08-25" || fc.gotEnd != "2026-09-01" {
		t.Errorf("window = %s..%s, want default week", fc.gotStart, fc.gotEnd)
	}

	var advice WeatherAdvice
	if err := json.Unmarshal(finding.Structured, &advice); err != nil {
		t.Fatalf("decode structured: %v", err)
	}
	if advice.Season != "kharif" || advice.CropStage != "growing" {
		t.Errorf("season/stage = %s/%s, want kharif/growing for late August", advice.Season, advice.CropStage)
	}
}

func TestSeasonalDates(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want string // expected end date
	}{
		{"kharif growing", time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC), "2026-09-04"},
		{"rabi sowing", time.Date(2026, 11, 10, 9, 0, 0, 0, time.UTC), "2026-11-26"},
		{"rabi harvest", time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), "2026-03-22"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := SeasonalDates(tt.now)
			if start != tt.now.Format("2006-01-02") {
				t.Errorf("start = %s, want today", start)
			}
			if end != tt.want {
				t.Errorf("end = %s, want %s", end, tt.want)
			}
		})
	}
}

func TestWeatherAgentGenericSeasonalWindow(t *testing.T) {
	// The generic pipeline never parses the query for parameters.
	llm := &fakeLLM{err: errors.New("must not be called")}
	fc := &fakeForecaster{fc: &weather.Forecast{
		Location: "400001",
		Days:     []weather.Day{{Date: "2026-08-25", TempMean: 28, TempMax: 32, RainSum: 2}},
		Summary:  weather.Summary{PeriodDays: 1, TempAvg: 28, TotalRainfall: 2},
	}}

	agent := NewWeatherAgent(llm, fc, zerolog.Nop())
	agent.now = func() time.Time { return time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC) }

	finding, err := agent.Process(context.Background(), Request{
		Query:   "help me farm better this season",
		Profile: Profile{Pincode: "400001"},
		Mode:    ModeGeneric,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if finding.Status != StatusOk {
		t.Errorf("status = %s", finding.Status)
	}
	if llm.calls != 0 {
		t.Errorf("llm called %d times, want 0 on the generic pipeline", llm.calls)
	}
	if fc.gotPlace != "400001" {
		t.Errorf("geocoded %q, want the profile pincode", fc.gotPlace)
	}
	// Late August is mid-kharif, so the growing-stage span applies.
	if fc.gotStart != "2026-08-25" || fc.gotEnd != "2026-09-04" {
		t.Errorf("window = %s..%s, want the growing-stage span", fc.gotStart, fc.gotEnd)
	}
}

func TestWeatherAgentFetchFailure(t *testing.T) {
	llm := &fakeLLM{jsonReply: `{"location":"400001"}`}
	fc := &fakeForecaster{err: errors.New("upstream down")}

	agent := NewWeatherAgent(llm, fc, zerolog.Nop())
	finding, err := agent.Process(context.Background(), Request{Query: "weather"})
	if err == nil {
		t.Fatal("Process should propagate fetch failure")
	}
	if finding.Status != StatusFailed {
		t.Errorf("status = %s, want failed", finding.Status)
	}
}
