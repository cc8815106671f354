package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/i64829107/weather-aqi-pipeline/internal/source"
)

// CityKey identifies one monitored place. City is required; Country is an
// optional qualifier passed through to the weather source.
type CityKey struct {
	City    string `json:"city"`
	Country string `json:"country,omitempty"`
}

// Query returns the free-text query echoed by the weather source.
func (k CityKey) Query() string {
	if k.Country == "" {
		return k.City
	}
	return k.City + "," + k.Country
}

// ObservationRecord is the unit of persistence: one city at one observation
// time, with the raw source payloads preserved for audit.
type ObservationRecord struct {
	City            string
	Country         string
	Latitude        *float64
	Longitude       *float64
	ObservationTime time.Time
	WeatherData     json.RawMessage
	AirQualityData  json.RawMessage // nil when genuinely absent
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunSummary describes one pipeline run. It is returned to the caller and
// never persisted; per-source counts are filled in even when Status is error.
type RunSummary struct {
	RunID            string        `json:"run_id"`
	StartedAt        time.Time     `json:"start_time"`
	FinishedAt       time.Time     `json:"end_time"`
	Duration         time.Duration `json:"-"`
	DurationSeconds  float64       `json:"duration_seconds"`
	CitiesProcessed  int           `json:"cities_processed"`
	WeatherSuccesses int           `json:"weather_successes"`
	WeatherErrors    int           `json:"weather_errors"`
	AQISuccesses     int           `json:"aqi_successes"`
	AQIErrors        int           `json:"aqi_errors"`
	RecordsLoaded    int64         `json:"records_loaded"`
	Status           string        `json:"status"`
	Error            string        `json:"error,omitempty"`
}

// WeatherFetcher is the weather source contract the orchestrator depends on.
type WeatherFetcher interface {
	FetchByCity(ctx context.Context, city, country string) source.WeatherResult
}

// AirQualityFetcher is the air-quality source contract.
type AirQualityFetcher interface {
	FetchForWeather(ctx context.Context, w source.WeatherResult) source.AirQualityResult
}

// Upserter is the persistence contract: one conflict-resolving batch write
// keyed by (city, observation_time).
type Upserter interface {
	UpsertObservations(ctx context.Context, records []ObservationRecord) (int64, error)
}
