package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i64829107/weather-aqi-pipeline/internal/pipeline"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	AirNowAPIKey      string

	// Database connection parts, assembled into DatabaseURL.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// FetchInterval controls how often the pipeline runs.
	FetchInterval time.Duration

	// Cities to monitor.
	Cities []pipeline.CityKey

	// PipelineWorkers bounds the per-city fan-out inside one run.
	PipelineWorkers int

	// HTTPTimeout is the outbound HTTP client timeout.
	HTTPTimeout time.Duration

	Port string
}

// DatabaseURL assembles the Postgres DSN from the DB_* parts.
func (c *AppConfig) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.AirNowAPIKey = os.Getenv("AIRNOW_API_KEY")

	cfg.DBHost = getenvDefault("DB_HOST", "localhost")
	cfg.DBPort = getenvInt("DB_PORT", 5432)
	cfg.DBUser = getenvDefault("DB_USER", "weather_user")
	cfg.DBPassword = getenvDefault("DB_PASSWORD", "weather_pass")
	cfg.DBName = getenvDefault("DB_NAME", "weather_db")

	intervalStr := getenvDefault("FETCH_INTERVAL", "15m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.PipelineWorkers = getenvInt("PIPELINE_WORKERS", 4)
	cfg.Port = getenvDefault("PORT", "8080")

	cities, err := loadCities()
	if err != nil {
		return nil, err
	}
	cfg.Cities = cities

	return cfg, nil
}

// ValidateAPIKeys returns an error naming any missing source credentials.
func (c *AppConfig) ValidateAPIKeys() error {
	var missing []string
	if c.OpenWeatherAPIKey == "" {
		missing = append(missing, "OPENWEATHER_API_KEY")
	}
	if c.AirNowAPIKey == "" {
		missing = append(missing, "AIRNOW_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required API keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

func loadCities() ([]pipeline.CityKey, error) {
	city := getenvDefault("WEATHER_LOCATION_CITY", "New York,Los Angeles,Chicago")
	country := getenvDefault("WEATHER_LOCATION_COUNTRY", "US,US,US")
	cities := strings.Split(city, ",")
	countries := strings.Split(country, ",")
	if len(cities) != len(countries) {
		return nil, fmt.Errorf("number of cities and countries must be the same")
	}
	var keys []pipeline.CityKey
	for i := range cities {
		keys = append(keys, pipeline.CityKey{
			City:    strings.TrimSpace(cities[i]),
			Country: strings.TrimSpace(countries[i]),
		})
	}

	return keys, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
