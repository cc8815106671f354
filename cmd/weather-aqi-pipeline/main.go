package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i64829107/weather-aqi-pipeline/internal/api/http"
	"github.com/i64829107/weather-aqi-pipeline/internal/config"
	"github.com/i64829107/weather-aqi-pipeline/internal/pipeline"
	"github.com/i64829107/weather-aqi-pipeline/internal/scheduler"
	"github.com/i64829107/weather-aqi-pipeline/internal/source"
	"github.com/i64829107/weather-aqi-pipeline/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateAPIKeys(); err != nil {
		log.Printf("WARN: %v; source calls will return error envelopes", err)
	}

	// Connection pool with explicit lifecycle: opened here, closed on shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	pg, err := store.Connect(ctx, cfg.DatabaseURL())
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pg.Close()

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pg.InitSchema(initCtx); err != nil {
		cancelInit()
		log.Fatalf("failed to init schema: %v", err)
	}
	cancelInit()

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	weatherClient := source.NewWeatherClient(httpClient, cfg.OpenWeatherAPIKey)
	airClient := source.NewAirQualityClient(httpClient, cfg.AirNowAPIKey)

	// Core pipeline orchestrating the two sources and the store.
	pipe := pipeline.New(weatherClient, airClient, pg, cfg.PipelineWorkers)

	// Scheduler that periodically runs the pipeline.
	sched := scheduler.New(cfg.Cities, cfg.FetchInterval, pipe)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-aqi-pipeline",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-aqi-pipeline",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, pipe, pg, cfg.Cities)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
