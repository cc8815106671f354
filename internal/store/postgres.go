package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i64829107/weather-aqi-pipeline/internal/pipeline"
)

// StoredObservation is one persisted row, audit timestamps included.
type StoredObservation struct {
	ID              int64     `json:"id"`
	City            string    `json:"city"`
	Country         string    `json:"country,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	ObservationTime time.Time `json:"observation_time"`
	WeatherData     []byte    `json:"-"`
	AirQualityData  []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Postgres owns the connection pool. Lifecycle is explicit: Connect on
// startup, Close on shutdown.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens and pings a pgx pool for the given DSN.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	cfg.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// InitSchema creates the observations table and its indexes if missing.
// The uniqueness constraint over (city, observation_time) is the natural key
// every upsert resolves conflicts on.
func (s *Postgres) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS weather_observations (
			id BIGSERIAL PRIMARY KEY,
			city VARCHAR(100) NOT NULL,
			country VARCHAR(10),
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			observation_time TIMESTAMPTZ NOT NULL,
			weather_data JSONB NOT NULL,
			air_quality_data JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (city, observation_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_observation_time ON weather_observations (observation_time)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_created_at ON weather_observations (created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

const upsertObservationSQL = `
INSERT INTO weather_observations
	(city, country, latitude, longitude, observation_time, weather_data, air_quality_data)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (city, observation_time)
DO UPDATE SET
	country = EXCLUDED.country,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	weather_data = EXCLUDED.weather_data,
	air_quality_data = EXCLUDED.air_quality_data,
	updated_at = CURRENT_TIMESTAMP`

// UpsertObservations writes the batch in a single transaction; all rows
// commit or none do. Rows that hit an existing (city, observation_time) key
// update in place, so re-running a pipeline batch never duplicates rows.
func (s *Postgres) UpsertObservations(ctx context.Context, records []pipeline.ObservationRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertObservationSQL,
			rec.City,
			nullableString(rec.Country),
			rec.Latitude,
			rec.Longitude,
			rec.ObservationTime,
			[]byte(rec.WeatherData),
			nullableJSON(rec.AirQualityData),
		)
	}

	results := tx.SendBatch(ctx, batch)
	var affected int64
	for range records {
		tag, execErr := results.Exec()
		if execErr != nil {
			results.Close()
			return 0, fmt.Errorf("upsert observations: %w", execErr)
		}
		affected += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close upsert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert batch: %w", err)
	}
	return affected, nil
}

const selectColumns = `id, city, COALESCE(country, ''), latitude, longitude,
	observation_time, weather_data, air_quality_data, created_at, updated_at`

// RecentObservations returns the most recently created rows, newest first.
func (s *Postgres) RecentObservations(ctx context.Context, limit int) ([]StoredObservation, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM weather_observations ORDER BY created_at DESC LIMIT $1`, selectColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ObservationsByCityRange returns a city's rows within [from, to], ordered by
// observation time ascending.
func (s *Postgres) ObservationsByCityRange(ctx context.Context, city string, from, to time.Time) ([]StoredObservation, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM weather_observations
		 WHERE city = $1 AND observation_time >= $2 AND observation_time <= $3
		 ORDER BY observation_time`, selectColumns), city, from, to)
	if err != nil {
		return nil, fmt.Errorf("query observations by city: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

func scanObservations(rows pgx.Rows) ([]StoredObservation, error) {
	var result []StoredObservation
	for rows.Next() {
		var obs StoredObservation
		if err := rows.Scan(
			&obs.ID,
			&obs.City,
			&obs.Country,
			&obs.Latitude,
			&obs.Longitude,
			&obs.ObservationTime,
			&obs.WeatherData,
			&obs.AirQualityData,
			&obs.CreatedAt,
			&obs.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	return result, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
