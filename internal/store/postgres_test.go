package store

import (
	"context"
	"strings"
	"testing"
)

// An empty batch is a no-op: no transaction, zero rows affected.
func TestUpsertObservationsEmptyBatch(t *testing.T) {
	s := &Postgres{}

	affected, err := s.UpsertObservations(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected 0 rows affected, got %d", affected)
	}
}

func TestUpsertSQLResolvesNaturalKeyConflicts(t *testing.T) {
	if !strings.Contains(upsertObservationSQL, "ON CONFLICT (city, observation_time)") {
		t.Fatal("upsert must key conflicts on (city, observation_time)")
	}
	if !strings.Contains(upsertObservationSQL, "updated_at = CURRENT_TIMESTAMP") {
		t.Fatal("conflicting rows must refresh updated_at")
	}
	for _, column := range []string{"country", "latitude", "longitude", "weather_data", "air_quality_data"} {
		if !strings.Contains(upsertObservationSQL, column+" = EXCLUDED."+column) {
			t.Fatalf("conflicting rows must overwrite %s", column)
		}
	}
}

func TestNullableHelpers(t *testing.T) {
	if nullableString("") != nil {
		t.Fatal("empty string must map to NULL")
	}
	if v := nullableString("US"); v == nil || *v != "US" {
		t.Fatalf("unexpected value: %v", v)
	}
	if nullableJSON(nil) != nil || nullableJSON([]byte{}) != nil {
		t.Fatal("absent payload must map to NULL")
	}
	if nullableJSON([]byte(`{}`)) == nil {
		t.Fatal("present payload must not map to NULL")
	}
}
