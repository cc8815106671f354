package source

import (
	"encoding/json"
	"time"
)

// ErrorEnvelope is the typed failure value substituted wherever a successful
// reading would go. It carries the human-readable cause, an echo of the query
// that failed, and the capture time. Envelopes are data, not Go errors: they
// flow through assembly into storage so the audit trail reflects exactly what
// happened per attempt.
type ErrorEnvelope struct {
	Cause      string    `json:"error"`
	Query      string    `json:"query"`
	CapturedAt time.Time `json:"api_timestamp"`
}

// WeatherReading is the flattened, typed view of one provider weather
// response. Optional provider fields are pointers so "absent" survives
// normalization.
type WeatherReading struct {
	City        string    `json:"city"`
	Country     string    `json:"country,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	ObservedAt  time.Time `json:"observation_time"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	TempMin     float64   `json:"temperature_min"`
	TempMax     float64   `json:"temperature_max"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	WindDeg     *int      `json:"wind_direction,omitempty"`
	Cloudiness  *int      `json:"cloudiness,omitempty"`
	Condition   string    `json:"weather_main"`
	Description string    `json:"weather_description"`
	Visibility  *int      `json:"visibility,omitempty"`
	FetchedAt   time.Time `json:"api_timestamp"`
	Query       string    `json:"query"`
}

// WeatherResult is the tagged union returned by the weather client: exactly
// one of Reading/Err is set. Raw always carries the serialized audit payload
// (the enriched provider response on success, the envelope on failure).
type WeatherResult struct {
	Reading *WeatherReading
	Err     *ErrorEnvelope
	Raw     json.RawMessage
}

// Failed reports whether this result carries an error envelope.
func (r WeatherResult) Failed() bool { return r.Err != nil }

// ParameterObservation is one per-pollutant observation as reported by the
// air-quality provider. Field tags mirror the provider schema so the stored
// raw payload round-trips.
type ParameterObservation struct {
	Parameter     string  `json:"ParameterName"`
	AQI           int     `json:"AQI"`
	Value         float64 `json:"Value"`
	Unit          string  `json:"Unit"`
	ReportingArea string  `json:"ReportingArea"`
	StateCode     string  `json:"StateCode"`
	DateObserved  string  `json:"DateObserved"`
	HourObserved  int     `json:"HourObserved"`
}

// AirQualityReading is the normalized list of parameter observations for one
// query. An empty Observations slice is a valid reading: the provider had no
// stations in range.
type AirQualityReading struct {
	Observations []ParameterObservation `json:"observations"`
	FetchedAt    time.Time              `json:"api_timestamp"`
	Query        string                 `json:"query"`
}

// AirQualityResult is the tagged union returned by the air-quality client.
type AirQualityResult struct {
	Reading *AirQualityReading
	Err     *ErrorEnvelope
	Raw     json.RawMessage
}

// Failed reports whether this result carries an error envelope.
func (r AirQualityResult) Failed() bool { return r.Err != nil }

func newWeatherError(cause, query string, at time.Time) WeatherResult {
	env := &ErrorEnvelope{Cause: cause, Query: query, CapturedAt: at}
	raw, _ := json.Marshal(env)
	return WeatherResult{Err: env, Raw: raw}
}

// NewAirQualityError builds a failed air-quality result around a synthetic
// cause. The orchestrator uses it to annotate records whose weather fetch
// failed without spending quota on the second source.
func NewAirQualityError(cause, query string, at time.Time) AirQualityResult {
	env := &ErrorEnvelope{Cause: cause, Query: query, CapturedAt: at}
	raw, _ := json.Marshal(env)
	return AirQualityResult{Err: env, Raw: raw}
}
