package analytics

import (
	"errors"
	"testing"

	"github.com/i64829107/weather-aqi-pipeline/internal/source"
)

func TestCategorizeAQIBoundaries(t *testing.T) {
	cases := []struct {
		aqi   int
		label string
		color string
	}{
		{0, "Good", "Green"},
		{50, "Good", "Green"},
		{51, "Moderate", "Yellow"},
		{100, "Moderate", "Yellow"},
		{101, "Unhealthy for Sensitive Groups", "Orange"},
		{150, "Unhealthy for Sensitive Groups", "Orange"},
		{151, "Unhealthy", "Red"},
		{200, "Unhealthy", "Red"},
		{201, "Very Unhealthy", "Purple"},
		{300, "Very Unhealthy", "Purple"},
		{301, "Hazardous", "Maroon"},
		{500, "Hazardous", "Maroon"},
		{501, "Unknown", "Gray"},
		{-1, "Unknown", "Gray"},
	}

	for _, tc := range cases {
		label, color := CategorizeAQI(tc.aqi)
		if label != tc.label || color != tc.color {
			t.Errorf("CategorizeAQI(%d) = %q/%q, want %q/%q", tc.aqi, label, color, tc.label, tc.color)
		}
	}
}

func TestExtractAirQualityMetrics(t *testing.T) {
	reading := &source.AirQualityReading{
		Observations: []source.ParameterObservation{
			{Parameter: "OZONE", AQI: 35, Value: 0.041, Unit: "PPM", ReportingArea: "Chicago", StateCode: "IL"},
			{Parameter: "PM2.5", AQI: 62, Value: 17.5, Unit: "UG/M3", ReportingArea: "Chicago", StateCode: "IL"},
		},
	}

	m, err := ExtractAirQualityMetrics(reading)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.OverallAQI != 62 {
		t.Fatalf("expected worst AQI 62, got %d", m.OverallAQI)
	}
	if m.OverallCategory != "Moderate" || m.OverallColor != "Yellow" {
		t.Fatalf("unexpected category: %q/%q", m.OverallCategory, m.OverallColor)
	}
	if m.PM25AQI == nil || *m.PM25AQI != 62 || *m.PM25Value != 17.5 {
		t.Fatalf("unexpected pm2.5 metrics: %+v", m)
	}
	if m.OzoneAQI == nil || *m.OzoneAQI != 35 {
		t.Fatalf("unexpected ozone metrics: %+v", m)
	}
	if m.ReportingArea != "Chicago" || m.Observations != 2 {
		t.Fatalf("unexpected metadata: %+v", m)
	}
}

func TestExtractAirQualityMetricsEmpty(t *testing.T) {
	_, err := ExtractAirQualityMetrics(&source.AirQualityReading{})
	if !errors.Is(err, ErrNoValues) {
		t.Fatalf("expected ErrNoValues, got %v", err)
	}
	_, err = ExtractAirQualityMetrics(nil)
	if !errors.Is(err, ErrNoValues) {
		t.Fatalf("expected ErrNoValues, got %v", err)
	}
}
