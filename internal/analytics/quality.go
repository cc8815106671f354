package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/i64829107/weather-aqi-pipeline/internal/store"
)

// Numeric sanity bounds for stored observations.
const (
	minTemperatureC = -100.0
	maxTemperatureC = 70.0
	minHumidityPct  = 0.0
	maxHumidityPct  = 100.0
	minAQI          = 0.0
	maxAQI          = 500.0
)

// requiredWeatherSections must be present in a successful weather payload.
var requiredWeatherSections = []string{"main", "weather", "coord"}

// Validation is the per-record outcome of the quality rules. A record is
// valid iff it raised zero issues.
type Validation struct {
	RecordID int64    `json:"record_id"`
	City     string   `json:"city"`
	Valid    bool     `json:"is_valid"`
	Issues   []string `json:"issues"`
}

// QualityReport aggregates validation outcomes over the most recent records.
type QualityReport struct {
	TotalChecked    int            `json:"total_records_checked"`
	ValidRecords    int            `json:"valid_records"`
	InvalidRecords  int            `json:"invalid_records"`
	QualityScore    float64        `json:"data_quality_score"`
	IssueCategories map[string]int `json:"issue_categories"`
	CheckedAt       time.Time      `json:"checked_at"`
}

// ValidateObservation applies the post-hoc quality rules to one stored row.
// Validation never fails: malformed payloads are reported as issues on the
// record, not as errors.
func ValidateObservation(rec store.StoredObservation) Validation {
	v := Validation{
		RecordID: rec.ID,
		City:     rec.City,
		Issues:   []string{},
	}

	v.Issues = append(v.Issues, weatherIssues(rec.WeatherData)...)
	v.Issues = append(v.Issues, airQualityIssues(rec.AirQualityData)...)
	v.Valid = len(v.Issues) == 0
	return v
}

func weatherIssues(payload []byte) []string {
	var issues []string

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return []string{fmt.Sprintf("JSON parsing error: %v", err)}
	}

	// An error-envelope payload is a single issue: the sections below are
	// expected to be missing.
	if rawCause, ok := fields["error"]; ok {
		var cause string
		if err := json.Unmarshal(rawCause, &cause); err != nil {
			cause = string(rawCause)
		}
		return []string{fmt.Sprintf("Weather API error: %s", cause)}
	}

	for _, section := range requiredWeatherSections {
		if _, ok := fields[section]; !ok {
			issues = append(issues, fmt.Sprintf("Missing weather field: %s", section))
		}
	}

	if rawMain, ok := fields["main"]; ok {
		var main struct {
			Temp     *float64 `json:"temp"`
			Humidity *float64 `json:"humidity"`
		}
		if err := json.Unmarshal(rawMain, &main); err != nil {
			issues = append(issues, fmt.Sprintf("JSON parsing error: %v", err))
			return issues
		}
		if main.Temp != nil && (*main.Temp < minTemperatureC || *main.Temp > maxTemperatureC) {
			issues = append(issues, fmt.Sprintf("Temperature out of range: %g°C", *main.Temp))
		}
		if main.Humidity != nil && (*main.Humidity < minHumidityPct || *main.Humidity > maxHumidityPct) {
			issues = append(issues, fmt.Sprintf("Humidity out of range: %g%%", *main.Humidity))
		}
	}

	return issues
}

func airQualityIssues(payload []byte) []string {
	if len(payload) == 0 {
		return nil
	}

	var aqi struct {
		Error        *string `json:"error"`
		Observations []struct {
			AQI *float64 `json:"AQI"`
		} `json:"observations"`
	}
	if err := json.Unmarshal(payload, &aqi); err != nil {
		return []string{fmt.Sprintf("JSON parsing error: %v", err)}
	}
	// An AQI error envelope is already explained by the weather-side issue
	// (or by a source failure the report does not re-count).
	if aqi.Error != nil {
		return nil
	}

	var issues []string
	for _, obs := range aqi.Observations {
		if obs.AQI != nil && (*obs.AQI < minAQI || *obs.AQI > maxAQI) {
			issues = append(issues, fmt.Sprintf("AQI out of range: %g", *obs.AQI))
		}
	}
	return issues
}

// issueCategory derives the aggregation category from an issue's leading
// label, the text before the first colon.
func issueCategory(issue string) string {
	if i := strings.Index(issue, ":"); i >= 0 {
		return issue[:i]
	}
	return "Other"
}

// RecentReader reads rows by recency for quality checks.
type RecentReader interface {
	RecentObservations(ctx context.Context, limit int) ([]store.StoredObservation, error)
}

// RunQualityCheck validates the limit most-recently-created records and
// aggregates issue counts by category. Individual malformed records count as
// issues, never as a report-level failure.
func RunQualityCheck(ctx context.Context, reader RecentReader, limit int) (QualityReport, error) {
	records, err := reader.RecentObservations(ctx, limit)
	if err != nil {
		return QualityReport{}, fmt.Errorf("load recent observations: %w", err)
	}

	report := QualityReport{
		TotalChecked:    len(records),
		IssueCategories: make(map[string]int),
		CheckedAt:       time.Now().UTC(),
	}

	for _, rec := range records {
		v := ValidateObservation(rec)
		if v.Valid {
			report.ValidRecords++
			continue
		}
		for _, issue := range v.Issues {
			report.IssueCategories[issueCategory(issue)]++
		}
	}

	report.InvalidRecords = report.TotalChecked - report.ValidRecords
	if report.TotalChecked > 0 {
		report.QualityScore = round2(float64(report.ValidRecords) / float64(report.TotalChecked) * 100)
	}
	return report, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
