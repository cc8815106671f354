package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i64829107/weather-aqi-pipeline/internal/pipeline"
)

// Runner is the pipeline entry point the scheduler invokes as a black box.
type Runner interface {
	RunOnce(ctx context.Context, cities []pipeline.CityKey) pipeline.RunSummary
}

// Scheduler periodically triggers a pipeline run for the configured cities.
// It treats an error-status summary as a task failure: logged, never fatal
// to the process, and the next run is unaffected.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	cities    []pipeline.CityKey
	interval  time.Duration
}

// New creates a new Scheduler.
func New(cities []pipeline.CityKey, interval time.Duration, runner Runner) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		cities:    cities,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		log.Println("scheduler: no cities configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running pipeline job")

		summary := s.runner.RunOnce(context.Background(), s.cities)
		if summary.Status == pipeline.StatusError {
			log.Printf("scheduler: run %s failed: %s", summary.RunID, summary.Error)
			return
		}
		log.Printf("scheduler: run %s loaded %d records (%d/%d weather, %d/%d aqi ok)",
			summary.RunID, summary.RecordsLoaded,
			summary.WeatherSuccesses, summary.CitiesProcessed,
			summary.AQISuccesses, summary.CitiesProcessed)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
