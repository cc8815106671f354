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

// WeatherClient fetches current weather from the OpenWeatherMap API.
// Ordinary API failures are never returned as Go errors: the result carries
// an error envelope instead.
type WeatherClient struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherClient(client *http.Client, apiKey string) *WeatherClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &WeatherClient{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
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

// FetchByCity fetches current weather by free-text city name, optionally
// qualified with a country code.
func (c *WeatherClient) FetchByCity(ctx context.Context, city, country string) WeatherResult {
	q := city
	if country != "" {
		q = fmt.Sprintf("%s,%s", city, country)
	}
	values := url.Values{}
	values.Set("q", q)
	return c.fetch(ctx, q, values)
}

// FetchByCoords fetches current weather by geographic coordinates.
func (c *WeatherClient) FetchByCoords(ctx context.Context, lat, lon float64) WeatherResult {
	q := fmt.Sprintf("%g,%g", lat, lon)
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	return c.fetch(ctx, q, values)
}

func (c *WeatherClient) fetch(ctx context.Context, query string, values url.Values) WeatherResult {
	if c.apiKey == "" {
		return newWeatherError("openweathermap api key is not configured", query, time.Now().UTC())
	}

	buildRequest := func() (*http.Request, error) {
		v := url.Values{}
		for key, vals := range values {
			v[key] = vals
		}
		v.Set("appid", c.apiKey)
		v.Set("units", "metric")
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", c.baseURL, v.Encode()), nil)
	}

	body, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	fetchedAt := time.Now().UTC()
	if err != nil {
		return newWeatherError(err.Error(), query, fetchedAt)
	}

	return normalizeWeather(body, query, fetchedAt)
}

// owmPayload covers the parts of the provider schema we extract; the full
// response is still preserved in the raw audit payload.
type owmPayload struct {
	Name  string `json:"name"`
	Cod   int    `json:"cod"`
	Dt    int64  `json:"dt"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   *int    `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All *int `json:"all"`
	} `json:"clouds"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Visibility *int    `json:"visibility"`
	Message    *string `json:"message"`
}

// normalizeWeather enriches the raw provider response with the fetch
// timestamp and query echo, then flattens it into a WeatherReading. Any
// parsing irregularity becomes an error envelope, never a panic or a second
// error surface.
func normalizeWeather(body []byte, query string, fetchedAt time.Time) WeatherResult {
	var payload owmPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return newWeatherError(fmt.Sprintf("failed to parse weather data: %v", err), query, fetchedAt)
	}
	if payload.Cod != 0 && payload.Cod != http.StatusOK {
		cause := "unknown API error"
		if payload.Message != nil {
			cause = *payload.Message
		}
		return newWeatherError(fmt.Sprintf("openweathermap API error: %s", cause), query, fetchedAt)
	}

	raw, err := enrichRaw(body, query, fetchedAt)
	if err != nil {
		return newWeatherError(fmt.Sprintf("failed to parse weather data: %v", err), query, fetchedAt)
	}

	reading := &WeatherReading{
		City:        payload.Name,
		Country:     payload.Sys.Country,
		Latitude:    payload.Coord.Lat,
		Longitude:   payload.Coord.Lon,
		ObservedAt:  time.Unix(payload.Dt, 0).UTC(),
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		TempMin:     payload.Main.TempMin,
		TempMax:     payload.Main.TempMax,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		WindSpeed:   payload.Wind.Speed,
		WindDeg:     payload.Wind.Deg,
		Cloudiness:  payload.Clouds.All,
		Visibility:  payload.Visibility,
		FetchedAt:   fetchedAt,
		Query:       query,
	}
	if payload.Dt == 0 {
		reading.ObservedAt = fetchedAt
	}
	if len(payload.Weather) > 0 {
		reading.Condition = payload.Weather[0].Main
		reading.Description = payload.Weather[0].Description
	}

	return WeatherResult{Reading: reading, Raw: raw}
}

// enrichRaw injects the fetch timestamp and query echo into the provider
// response so the stored audit payload is self-describing.
func enrichRaw(body []byte, query string, fetchedAt time.Time) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	ts, _ := json.Marshal(fetchedAt)
	q, _ := json.Marshal(query)
	fields["api_timestamp"] = ts
	fields["query"] = q

	return json.Marshal(fields)
}
