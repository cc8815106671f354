package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i64829107/weather-aqi-pipeline/internal/analytics"
	"github.com/i64829107/weather-aqi-pipeline/internal/pipeline"
	"github.com/i64829107/weather-aqi-pipeline/internal/source"
	"github.com/i64829107/weather-aqi-pipeline/internal/store"
)

var validate = validator.New()

// Runner triggers one pipeline run.
type Runner interface {
	RunOnce(ctx context.Context, cities []pipeline.CityKey) pipeline.RunSummary
}

// Reader covers the stored-observation queries the API serves.
type Reader interface {
	analytics.RecentReader
	analytics.HistoryReader
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. The run and
// quality endpoints are the black-box callables an external scheduler or
// dashboard invokes.
func RegisterRoutes(app *fiber.App, runner Runner, reader Reader, cities []pipeline.CityKey) {
	v1 := app.Group("/api/v1")

	v1.Post("/pipeline/run", func(c *fiber.Ctx) error {
		summary := runner.RunOnce(c.Context(), cities)
		status := fiber.StatusOK
		if summary.Status == pipeline.StatusError {
			status = fiber.StatusInternalServerError
		}
		return c.Status(status).JSON(summary)
	})

	v1.Get("/quality", func(c *fiber.Ctx) error {
		var req qualityQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := analytics.RunQualityCheck(c.Context(), reader, req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to run quality check")
		}
		return c.JSON(report)
	})

	v1.Get("/trends", func(c *fiber.Ctx) error {
		var req trendsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := analytics.CityTrends(c.Context(), reader, req.City, req.Days)
		if err != nil {
			if strings.Contains(err.Error(), "no data found") {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute trends")
		}
		return c.JSON(report)
	})

	v1.Get("/observations/recent", func(c *fiber.Ctx) error {
		var req qualityQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := reader.RecentObservations(c.Context(), req.Limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch observations")
		}

		views := make([]observationView, 0, len(records))
		for _, rec := range records {
			views = append(views, newObservationView(rec))
		}
		return c.JSON(fiber.Map{
			"count":        len(views),
			"observations": views,
		})
	})
}

// observationView decorates a stored row with the worst AQI parsed from its
// raw air-quality payload; the raw payloads themselves stay server-side.
type observationView struct {
	store.StoredObservation
	OverallAQI  *int   `json:"overall_aqi,omitempty"`
	AQICategory string `json:"aqi_category,omitempty"`
}

func newObservationView(rec store.StoredObservation) observationView {
	view := observationView{StoredObservation: rec}

	// Error envelopes and absent payloads unmarshal to an empty reading,
	// which the extractor rejects; the row is served undecorated.
	var reading source.AirQualityReading
	if err := json.Unmarshal(rec.AirQualityData, &reading); err != nil {
		return view
	}
	metrics, err := analytics.ExtractAirQualityMetrics(&reading)
	if err != nil {
		return view
	}

	aqi := metrics.OverallAQI
	view.OverallAQI = &aqi
	view.AQICategory = metrics.OverallCategory
	return view
}

// qualityQuery holds the recency-window parameter shared by the quality and
// recent-observations endpoints.
type qualityQuery struct {
	Limit int `validate:"min=1,max=1000"`
}

func (q *qualityQuery) bind(c *fiber.Ctx) error {
	q.Limit = 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("limit must be an integer")
		}
		q.Limit = n
	}
	return validate.Struct(q)
}

// trendsQuery holds query parameters for the trends endpoint.
type trendsQuery struct {
	City string `validate:"required"`
	Days int    `validate:"min=1,max=90"`
}

func (q *trendsQuery) bind(c *fiber.Ctx) error {
	q.City = c.Query("city")
	q.Days = 7
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("days must be an integer")
		}
		q.Days = n
	}
	return validate.Struct(q)
}
