package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/i64829107/weather-aqi-pipeline/internal/store"
)

// ErrNoValues is returned when a trend is requested over an empty series.
var ErrNoValues = errors.New("no values provided")

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// TrendSummary describes one numeric series: basic statistics plus the
// half-mean trend classification.
type TrendSummary struct {
	Count     int     `json:"count"`
	Mean      float64 `json:"average"`
	Median    float64 `json:"median"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	StdDev    float64 `json:"std_dev"`
	Direction string  `json:"trend_direction"`
	Magnitude float64 `json:"trend_magnitude"`
}

// SummarizeSeries computes statistics and the half-mean trend for a series.
// The series is split at the floor midpoint: the earlier half is
// values[:len/2], the later half values[len/2:], so an odd-length series
// gives its middle element to the later half. Direction is classified
// against half a sample standard deviation. An empty series is an error, not
// a zero-filled summary.
func SummarizeSeries(values []float64) (TrendSummary, error) {
	if len(values) == 0 {
		return TrendSummary{}, ErrNoValues
	}

	mean := meanOf(values)
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var stdDev float64
	if len(values) > 1 {
		var sum float64
		for _, v := range values {
			d := v - mean
			sum += d * d
		}
		stdDev = math.Sqrt(sum / float64(len(values)-1))
	}

	mid := len(values) / 2
	firstAvg := mean
	if mid > 0 {
		firstAvg = meanOf(values[:mid])
	}
	secondAvg := meanOf(values[mid:])

	direction := TrendStable
	switch {
	case secondAvg > firstAvg+stdDev*0.5:
		direction = TrendIncreasing
	case secondAvg < firstAvg-stdDev*0.5:
		direction = TrendDecreasing
	}

	magnitude := secondAvg - firstAvg
	if magnitude < 0 {
		magnitude = -magnitude
	}

	return TrendSummary{
		Count:     len(values),
		Mean:      round2(mean),
		Median:    round2(medianOf(values)),
		Min:       round2(min),
		Max:       round2(max),
		StdDev:    round2(stdDev),
		Direction: direction,
		Magnitude: round2(magnitude),
	}, nil
}

// CityTrendReport bundles the per-metric trends for one city's recent
// history. A nil summary means that metric had no values in the window.
type CityTrendReport struct {
	City              string        `json:"city"`
	PeriodDays        int           `json:"period_days"`
	TotalObservations int           `json:"total_observations"`
	Temperature       *TrendSummary `json:"temperature_trend,omitempty"`
	Humidity          *TrendSummary `json:"humidity_trend,omitempty"`
	AQI               *TrendSummary `json:"aqi_trend,omitempty"`
	WorstAQICategory  string        `json:"worst_aqi_category,omitempty"`
	CalculatedAt      time.Time     `json:"calculated_at"`
}

// HistoryReader reads a city's rows within a time range for trend analysis.
type HistoryReader interface {
	ObservationsByCityRange(ctx context.Context, city string, from, to time.Time) ([]store.StoredObservation, error)
}

// CityTrends loads a city's observations over the lookback window and
// summarizes the temperature, humidity, and worst-AQI-per-record series.
// Malformed records are skipped, not fatal. The AQI series takes the maximum
// AQI across a record's parameter observations; a present-but-empty
// observation list contributes no point.
func CityTrends(ctx context.Context, reader HistoryReader, city string, days int) (CityTrendReport, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	records, err := reader.ObservationsByCityRange(ctx, city, cutoff, time.Now().UTC())
	if err != nil {
		return CityTrendReport{}, fmt.Errorf("load observations for %s: %w", city, err)
	}
	if len(records) == 0 {
		return CityTrendReport{}, fmt.Errorf("no data found for %s in the last %d days", city, days)
	}

	var temperatures, humidities, aqiValues []float64
	for _, rec := range records {
		var weather struct {
			Main struct {
				Temp     *float64 `json:"temp"`
				Humidity *float64 `json:"humidity"`
			} `json:"main"`
		}
		if err := json.Unmarshal(rec.WeatherData, &weather); err == nil {
			if weather.Main.Temp != nil {
				temperatures = append(temperatures, *weather.Main.Temp)
			}
			if weather.Main.Humidity != nil {
				humidities = append(humidities, *weather.Main.Humidity)
			}
		}

		if worst, ok := worstAQI(rec.AirQualityData); ok {
			aqiValues = append(aqiValues, worst)
		}
	}

	report := CityTrendReport{
		City:              city,
		PeriodDays:        days,
		TotalObservations: len(records),
		Temperature:       summarizeOrNil(temperatures),
		Humidity:          summarizeOrNil(humidities),
		AQI:               summarizeOrNil(aqiValues),
		CalculatedAt:      time.Now().UTC(),
	}
	if report.AQI != nil {
		label, _ := CategorizeAQI(int(report.AQI.Max))
		report.WorstAQICategory = label
	}
	return report, nil
}

// worstAQI extracts the maximum AQI across a stored record's parameter
// observations. Absent, erroneous, empty, or malformed payloads yield no
// value.
func worstAQI(payload []byte) (float64, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	var aqi struct {
		Error        *string `json:"error"`
		Observations []struct {
			AQI *float64 `json:"AQI"`
		} `json:"observations"`
	}
	if err := json.Unmarshal(payload, &aqi); err != nil || aqi.Error != nil {
		return 0, false
	}

	var worst float64
	found := false
	for _, obs := range aqi.Observations {
		if obs.AQI == nil {
			continue
		}
		if !found || *obs.AQI > worst {
			worst = *obs.AQI
			found = true
		}
	}
	return worst, found
}

func summarizeOrNil(values []float64) *TrendSummary {
	summary, err := SummarizeSeries(values)
	if err != nil {
		return nil
	}
	return &summary
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
