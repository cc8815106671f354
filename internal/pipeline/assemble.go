package pipeline

import (
	"time"

	"github.com/i64829107/weather-aqi-pipeline/internal/source"
)

// Assemble merges one city's weather and air-quality results into a
// persistable record. It always succeeds and never drops data: a failed
// weather fetch falls back to the city key for location and to the assembly
// time for the observation time, and the raw payloads (error envelopes
// included) are stored verbatim so the audit trail shows why data is missing.
func Assemble(key CityKey, w source.WeatherResult, aq source.AirQualityResult, now time.Time) ObservationRecord {
	rec := ObservationRecord{
		City:            key.City,
		ObservationTime: now,
		WeatherData:     w.Raw,
		AirQualityData:  aq.Raw,
	}

	if !w.Failed() && w.Reading != nil {
		r := w.Reading
		if r.City != "" {
			rec.City = r.City
		}
		rec.Country = r.Country
		lat, lon := r.Latitude, r.Longitude
		rec.Latitude = &lat
		rec.Longitude = &lon
		rec.ObservationTime = r.ObservedAt
	}

	return rec
}
