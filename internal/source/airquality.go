package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// searchRadiusMiles is the fixed radius used for coordinate and ZIP lookups.
const searchRadiusMiles = 50

// AirQualityClient fetches per-pollutant observations from the AirNow API.
type AirQualityClient struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewAirQualityClient(client *http.Client, apiKey string) *AirQualityClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "airnow",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &AirQualityClient{
		name:    "airnow",
		apiKey:  apiKey,
		baseURL: "https://www.airnowapi.org/aq",
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxAttempts:     3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
			AttemptTimeout: 30 * time.Second,
		},
		circuit: cb,
	}
}

// FetchByCoordinates fetches current air quality around a coordinate pair.
func (c *AirQualityClient) FetchByCoordinates(ctx context.Context, lat, lon float64) AirQualityResult {
	query := fmt.Sprintf("%g,%g", lat, lon)

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))

	return c.fetch(ctx, query, "/observation/latLong/current", values)
}

// FetchByZip fetches current air quality by postal code.
func (c *AirQualityClient) FetchByZip(ctx context.Context, zipCode string) AirQualityResult {
	values := url.Values{}
	values.Set("zipCode", zipCode)

	return c.fetch(ctx, zipCode, "/observation/zipCode/current", values)
}

// FetchForWeather derives a coordinate query from a prior weather result.
// It fails fast, without touching the network, when that result itself
// carried an error or lacks coordinates.
func (c *AirQualityClient) FetchForWeather(ctx context.Context, w WeatherResult) AirQualityResult {
	if w.Failed() {
		return NewAirQualityError("cannot fetch AQI: weather data contains error", w.Err.Query, time.Now().UTC())
	}
	if w.Reading == nil {
		return NewAirQualityError("cannot fetch AQI: weather data missing coordinates", "", time.Now().UTC())
	}
	return c.FetchByCoordinates(ctx, w.Reading.Latitude, w.Reading.Longitude)
}

func (c *AirQualityClient) fetch(ctx context.Context, query, path string, values url.Values) AirQualityResult {
	if c.apiKey == "" {
		return NewAirQualityError("airnow api key is not configured", query, time.Now().UTC())
	}

	buildRequest := func() (*http.Request, error) {
		v := url.Values{}
		for key, vals := range values {
			v[key] = vals
		}
		v.Set("format", "application/json")
		v.Set("distance", fmt.Sprintf("%d", searchRadiusMiles))
		v.Set("API_KEY", c.apiKey)
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s%s?%s", c.baseURL, path, v.Encode()), nil)
	}

	body, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	fetchedAt := time.Now().UTC()
	if err != nil {
		return NewAirQualityError(err.Error(), query, fetchedAt)
	}

	return normalizeAirQuality(body, query, fetchedAt)
}

// normalizeAirQuality wraps the provider's observation list with the fetch
// timestamp and query echo. Parse irregularities become error envelopes.
func normalizeAirQuality(body []byte, query string, fetchedAt time.Time) AirQualityResult {
	var observations []ParameterObservation
	if err := json.Unmarshal(body, &observations); err != nil {
		return NewAirQualityError(fmt.Sprintf("failed to parse AQI data: %v", err), query, fetchedAt)
	}

	reading := &AirQualityReading{
		Observations: observations,
		FetchedAt:    fetchedAt,
		Query:        query,
	}

	raw, err := json.Marshal(struct {
		Observations json.RawMessage `json:"observations"`
		Total        int             `json:"total_observations"`
		FetchedAt    time.Time       `json:"api_timestamp"`
		Query        string          `json:"query"`
	}{
		Observations: json.RawMessage(body),
		Total:        len(observations),
		FetchedAt:    fetchedAt,
		Query:        query,
	})
	if err != nil {
		return NewAirQualityError(fmt.Sprintf("failed to parse AQI data: %v", err), query, fetchedAt)
	}

	return AirQualityResult{Reading: reading, Raw: raw}
}
