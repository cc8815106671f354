package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleAQIBody = `[
	{"DateObserved": "2024-05-01", "HourObserved": 14, "ReportingArea": "Chicago", "StateCode": "IL",
	 "ParameterName": "PM2.5", "AQI": 42, "Value": 10.2, "Unit": "UG/M3"},
	{"DateObserved": "2024-05-01", "HourObserved": 14, "ReportingArea": "Chicago", "StateCode": "IL",
	 "ParameterName": "OZONE", "AQI": 35, "Value": 0.041, "Unit": "PPM"}
]`

func testAirClient(t *testing.T, url string) *AirQualityClient {
	t.Helper()
	c := NewAirQualityClient(&http.Client{Timeout: 5 * time.Second}, "test-key")
	c.baseURL = url
	c.httpCfg.Backoff.InitialInterval = time.Millisecond
	return c
}

func TestFetchByCoordinates(t *testing.T) {
	var path, distance string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		distance = r.URL.Query().Get("distance")
		w.Write([]byte(sampleAQIBody))
	}))
	defer srv.Close()

	res := testAirClient(t, srv.URL).FetchByCoordinates(context.Background(), 41.85, -87.65)
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Err)
	}
	if path != "/observation/latLong/current" {
		t.Fatalf("unexpected path: %q", path)
	}
	if distance != "50" {
		t.Fatalf("expected fixed 50-mile radius, got %q", distance)
	}
	if len(res.Reading.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(res.Reading.Observations))
	}
	if res.Reading.Observations[0].Parameter != "PM2.5" || res.Reading.Observations[0].AQI != 42 {
		t.Fatalf("unexpected first observation: %+v", res.Reading.Observations[0])
	}

	var raw struct {
		Observations []json.RawMessage `json:"observations"`
		Total        int               `json:"total_observations"`
		Query        string            `json:"query"`
	}
	if err := json.Unmarshal(res.Raw, &raw); err != nil {
		t.Fatalf("raw payload is not valid JSON: %v", err)
	}
	if raw.Total != 2 || len(raw.Observations) != 2 {
		t.Fatalf("unexpected raw wrapper: %+v", raw)
	}
}

func TestFetchByZip(t *testing.T) {
	var path, zip string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		zip = r.URL.Query().Get("zipCode")
		w.Write([]byte(sampleAQIBody))
	}))
	defer srv.Close()

	res := testAirClient(t, srv.URL).FetchByZip(context.Background(), "60601")
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Err)
	}
	if path != "/observation/zipCode/current" {
		t.Fatalf("unexpected path: %q", path)
	}
	if zip != "60601" {
		t.Fatalf("unexpected zip param: %q", zip)
	}
}

// An empty observation list is a valid reading, not an error.
func TestEmptyObservationListIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	res := testAirClient(t, srv.URL).FetchByCoordinates(context.Background(), 1, 2)
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Err)
	}
	if len(res.Reading.Observations) != 0 {
		t.Fatalf("expected no observations, got %d", len(res.Reading.Observations))
	}
}

// Deriving coordinates from a failed weather result must fail fast without
// touching the network.
func TestFetchForWeatherFailsFastOnWeatherError(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	w := newWeatherError("boom", "Chicago,US", time.Now().UTC())
	res := testAirClient(t, srv.URL).FetchForWeather(context.Background(), w)
	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(res.Err.Cause, "weather data contains error") {
		t.Fatalf("unexpected cause: %q", res.Err.Cause)
	}
	if res.Err.Query != "Chicago,US" {
		t.Fatalf("expected query echo from weather envelope, got %q", res.Err.Query)
	}
	if called {
		t.Fatal("air-quality source must not be invoked for a failed weather result")
	}
}

func TestFetchForWeatherMissingCoordinates(t *testing.T) {
	res := testAirClient(t, "http://unused").FetchForWeather(context.Background(), WeatherResult{})
	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(res.Err.Cause, "missing coordinates") {
		t.Fatalf("unexpected cause: %q", res.Err.Cause)
	}
}

func TestFetchForWeatherUsesReadingCoordinates(t *testing.T) {
	var lat, lon string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lat = r.URL.Query().Get("latitude")
		lon = r.URL.Query().Get("longitude")
		w.Write([]byte(sampleAQIBody))
	}))
	defer srv.Close()

	w := WeatherResult{Reading: &WeatherReading{Latitude: 41.85, Longitude: -87.65}}
	res := testAirClient(t, srv.URL).FetchForWeather(context.Background(), w)
	if res.Failed() {
		t.Fatalf("unexpected failure: %+v", res.Err)
	}
	if lat != "41.850000" || lon != "-87.650000" {
		t.Fatalf("unexpected coordinates: lat=%q lon=%q", lat, lon)
	}
}
