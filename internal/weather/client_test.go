package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestLocatePincodeQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`[{"lat":"19.0760","lon":"72.8777"}]`))
	}))
	defer srv.Close()

	c := New("", srv.URL, "agrivoice-test", zerolog.Nop())
	lat, lon := c.Locate(context.Background(), "400001")

	if gotQuery != "400001, India" {
		t.Errorf("geocode query = %q, want pincode suffixed with country", gotQuery)
	}
	if lat < 19.0 || lat > 19.1 || lon < 72.8 || lon > 72.9 {
		t.Errorf("coords = %v, %v", lat, lon)
	}
}

func TestLocateFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New("", srv.URL, "agrivoice-test", zerolog.Nop())
	lat, lon := c.Locate(context.Background(), "nowhere village")

	if lat != DefaultLat || lon != DefaultLon {
		t.Errorf("coords = %v, %v; want default fallback", lat, lon)
	}
}

func TestFetchAggregatesDaily(t *testing.T) {
	// Two days, three samples each.
	body := `{"hourly":{
		"time":["2026-08-25T00:00","2026-08-25T08:00","2026-08-25T16:00",
		        "2026-08-26T00:00","2026-08-26T08:00","2026-08-26T16:00"],
		"temperature_2m":[24,32,28,26,38,30],
		"relative_humidity_2m":[80,60,70,75,50,65],
		"rain":[0,2.5,1.5,0,0,0],
		"wind_speed_120m":[10,20,15,5,10,9],
		"wind_gusts_10m":[20,55,30,15,25,20],
		"soil_moisture_3_to_9cm":[0.3,0.25,0.28,0.2,0.18,0.19]
	}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start_date") != "2026-08-25" {
			t.Errorf("start_date = %q", r.URL.Query().Get("start_date"))
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "agrivoice-test", zerolog.Nop())
	fc, err := c.Fetch(context.Background(), "400001", 19.07, 72.88, "2026-08-25", "2026-08-26")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(fc.Days) != 2 {
		t.Fatalf("got %d days, want 2", len(fc.Days))
	}
	d0 := fc.Days[0]
	if d0.Date != "2026-08-25" {
		t.Errorf("day 0 date = %q", d0.Date)
	}
	if d0.TempMean != 28 || d0.TempMax != 32 || d0.TempMin != 24 {
		t.Errorf("day 0 temps = %v/%v/%v, want 28/32/24", d0.TempMean, d0.TempMax, d0.TempMin)
	}
	if d0.RainSum != 4 {
		t.Errorf("day 0 rain = %v, want 4", d0.RainSum)
	}
	if d0.WindGustsMax != 55 {
		t.Errorf("day 0 gusts = %v, want 55", d0.WindGustsMax)
	}

	s := fc.Summary
	if s.PeriodDays != 2 {
		t.Errorf("period days = %d", s.PeriodDays)
	}
	if s.RainyDays != 1 {
		t.Errorf("rainy days = %d, want 1", s.RainyDays)
	}
	if s.TempMax != 38 || s.TempMin != 24 {
		t.Errorf("summary temps = %v/%v, want 38/24", s.TempMax, s.TempMin)
	}
	if s.TotalRainfall != 4 {
		t.Errorf("total rainfall = %v, want 4", s.TotalRainfall)
	}
	if s.MaxWindGust != 55 {
		t.Errorf("max gust = %v, want 55", s.MaxWindGust)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "agrivoice-test", zerolog.Nop())
	if _, err := c.Fetch(context.Background(), "x", 0, 0, "2026-08-25", "2026-08-26"); err == nil {
		t.Error("Fetch on 502 should error")
	}
}
