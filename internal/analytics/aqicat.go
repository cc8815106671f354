package analytics

import (
	"strings"

	"github.com/i64829107/weather-aqi-pipeline/internal/source"
)

// aqiBand is one row of the AQI category table. Bounds are inclusive.
type aqiBand struct {
	Lo    int
	Hi    int
	Label string
	Color string
}

// aqiBands is scanned in order; bands follow the standard AQI breakpoints.
var aqiBands = []aqiBand{
	{0, 50, "Good", "Green"},
	{51, 100, "Moderate", "Yellow"},
	{101, 150, "Unhealthy for Sensitive Groups", "Orange"},
	{151, 200, "Unhealthy", "Red"},
	{201, 300, "Very Unhealthy", "Purple"},
	{301, 500, "Hazardous", "Maroon"},
}

// CategorizeAQI maps an AQI value to its category label and display color.
// Out-of-table values map to Unknown/Gray.
func CategorizeAQI(aqi int) (label, color string) {
	for _, band := range aqiBands {
		if aqi >= band.Lo && aqi <= band.Hi {
			return band.Label, band.Color
		}
	}
	return "Unknown", "Gray"
}

// AirQualityMetrics is the flattened view of one air-quality reading: the
// overall AQI (worst across parameters), its category, and the headline
// pollutants.
type AirQualityMetrics struct {
	OverallAQI      int      `json:"overall_aqi"`
	OverallCategory string   `json:"overall_category"`
	OverallColor    string   `json:"overall_color"`
	PM25AQI         *int     `json:"pm25_aqi,omitempty"`
	PM25Value       *float64 `json:"pm25_value,omitempty"`
	PM25Unit        string   `json:"pm25_unit,omitempty"`
	OzoneAQI        *int     `json:"ozone_aqi,omitempty"`
	OzoneValue      *float64 `json:"ozone_value,omitempty"`
	OzoneUnit       string   `json:"ozone_unit,omitempty"`
	ReportingArea   string   `json:"reporting_area,omitempty"`
	StateCode       string   `json:"state_code,omitempty"`
	Observations    int      `json:"total_observations"`
}

// ExtractAirQualityMetrics flattens a reading's parameter observations into
// headline metrics. An empty observation list is an ErrNoValues condition.
func ExtractAirQualityMetrics(reading *source.AirQualityReading) (AirQualityMetrics, error) {
	if reading == nil || len(reading.Observations) == 0 {
		return AirQualityMetrics{}, ErrNoValues
	}

	m := AirQualityMetrics{
		ReportingArea: reading.Observations[0].ReportingArea,
		StateCode:     reading.Observations[0].StateCode,
		Observations:  len(reading.Observations),
	}

	for i := range reading.Observations {
		obs := reading.Observations[i]
		if obs.AQI > m.OverallAQI {
			m.OverallAQI = obs.AQI
		}
		switch {
		case containsFold(obs.Parameter, "PM2.5") && m.PM25AQI == nil:
			aqi, value := obs.AQI, obs.Value
			m.PM25AQI, m.PM25Value, m.PM25Unit = &aqi, &value, obs.Unit
		case containsFold(obs.Parameter, "OZONE") && m.OzoneAQI == nil:
			aqi, value := obs.AQI, obs.Value
			m.OzoneAQI, m.OzoneValue, m.OzoneUnit = &aqi, &value, obs.Unit
		}
	}

	m.OverallCategory, m.OverallColor = CategorizeAQI(m.OverallAQI)
	return m, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(sub))
}
