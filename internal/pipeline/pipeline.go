package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i64829107/weather-aqi-pipeline/internal/source"
)

// Pipeline drives one fetch -> assemble -> upsert run across the configured
// cities.
type Pipeline struct {
	weather WeatherFetcher
	air     AirQualityFetcher
	store   Upserter
	workers int
}

// New creates a Pipeline. workers bounds the per-city fan-out; values <= 0
// fall back to a single worker.
func New(weather WeatherFetcher, air AirQualityFetcher, store Upserter, workers int) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		weather: weather,
		air:     air,
		store:   store,
		workers: workers,
	}
}

// cityOutcome pairs one city's two source results before assembly.
type cityOutcome struct {
	key     CityKey
	weather source.WeatherResult
	air     source.AirQualityResult
}

// RunOnce executes one pipeline run: per city, fetch weather, then fetch air
// quality by the derived coordinates — or synthesize the "weather data
// unavailable" envelope without calling the second source when the weather
// fetch failed. Every city still yields a record; the whole batch is written
// once. Cities are independent: no city's failure affects another's record.
func (p *Pipeline) RunOnce(ctx context.Context, cities []CityKey) RunSummary {
	start := time.Now().UTC()
	summary := RunSummary{
		RunID:           uuid.NewString(),
		StartedAt:       start,
		CitiesProcessed: len(cities),
		Status:          StatusSuccess,
	}

	log.Printf("pipeline: run %s starting for %d cities", summary.RunID, len(cities))

	outcomes := make([]cityOutcome, len(cities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers) // respect source rate limits

	for i, key := range cities {
		i, key := i, key
		g.Go(func() error {
			w := p.weather.FetchByCity(gctx, key.City, key.Country)

			var aq source.AirQualityResult
			if w.Failed() {
				log.Printf("pipeline: skipping AQI for %s due to weather data error", key.Query())
				aq = source.NewAirQualityError("weather data unavailable", key.Query(), time.Now().UTC())
			} else {
				aq = p.air.FetchForWeather(gctx, w)
			}

			outcomes[i] = cityOutcome{key: key, weather: w, air: aq}
			return nil
		})
	}
	// Fetch goroutines encode failures as envelopes, never as errors.
	_ = g.Wait()

	assembledAt := time.Now().UTC()
	records := make([]ObservationRecord, 0, len(outcomes))
	for _, o := range outcomes {
		if o.weather.Failed() {
			summary.WeatherErrors++
		} else {
			summary.WeatherSuccesses++
		}
		if o.air.Failed() {
			summary.AQIErrors++
		} else {
			summary.AQISuccesses++
		}
		records = append(records, Assemble(o.key, o.weather, o.air, assembledAt))
	}

	loaded, err := p.store.UpsertObservations(ctx, records)
	summary.FinishedAt = time.Now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	summary.DurationSeconds = summary.Duration.Seconds()

	if err != nil {
		// A failed batch write is fatal to this run only; the next run
		// re-fetches and upserts the same natural keys.
		summary.Status = StatusError
		summary.Error = err.Error()
		log.Printf("pipeline: run %s failed after %.2fs: %v", summary.RunID, summary.DurationSeconds, err)
		return summary
	}

	summary.RecordsLoaded = loaded
	log.Printf("pipeline: run %s completed in %.2fs, %d records loaded", summary.RunID, summary.DurationSeconds, loaded)
	return summary
}
