package source

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"
)

func TestMemorySource_FetchHonorsHalfOpenWindow(t *testing.T) {
	start := time.Date(2025, 11, 9, 18, 0, 0, 0, time.UTC)
	s := NewMemorySource([]model.RawSample{
		{Timestamp: start.Add(-time.Second), SourceID: "before"},
		{Timestamp: start, SourceID: "at-start"},
		{Timestamp: start.Add(4 * time.Second), SourceID: "inside"},
		{Timestamp: start.Add(5 * time.Second), SourceID: "at-end"},
	})

	got, err := s.Fetch(context.Background(), start, start.Add(5*time.Second))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(got))
	}
	if got[0].SourceID != "at-start" || got[1].SourceID != "inside" {
		t.Errorf("Wrong samples selected: %+v", got)
	}
}

func TestNew_UnknownKindIsConfigurationError(t *testing.T) {
	_, err := New(config.SourceConfig{Kind: "carrier-pigeon"})
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected a ConfigurationError, got %v", err)
	}
}

func TestNewInfluxSource_RejectsIncompleteConfig(t *testing.T) {
	cases := []config.InfluxConfig{
		{},
		{URL: "http://localhost:8086"},
		{URL: "http://localhost:8086", Bucket: "vitals"},
		{URL: "http://localhost:8086", Bucket: "vitals", Measurement: "heartbeat"},
	}
	for _, cfg := range cases {
		if _, err := NewInfluxSource(cfg); err == nil {
			t.Errorf("Expected error for config %+v", cfg)
		}
	}
}

func TestInfluxSource_FluxQueryShape(t *testing.T) {
	s, err := NewInfluxSource(config.InfluxConfig{
		URL:          "http://localhost:8086",
		Bucket:       "vitals",
		Measurement:  "heartbeat",
		Fields:       []string{"hr", "spo2"},
		SourceTag:    "device",
		SourceFilter: "ward-3",
	})
	if err != nil {
		t.Fatalf("NewInfluxSource failed: %v", err)
	}
	defer s.Close()

	start := time.Date(2025, 11, 9, 18, 0, 0, 0, time.UTC)
	q := s.fluxQuery(start, start.Add(5*time.Second))

	for _, fragment := range []string{
		`from(bucket: "vitals")`,
		`range(start: 2025-11-09T18:00:00Z, stop: 2025-11-09T18:00:05Z)`,
		`r._measurement == "heartbeat"`,
		`r._field == "hr" or r._field == "spo2"`,
		`r.device == "ward-3"`,
		`pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")`,
	} {
		if !strings.Contains(q, fragment) {
			t.Errorf("Query missing %q:\n%s", fragment, q)
		}
	}
}

func TestInfluxSource_NoFilterWithoutConfiguredSource(t *testing.T) {
	s, err := NewInfluxSource(config.InfluxConfig{
		URL:         "http://localhost:8086",
		Bucket:      "vitals",
		Measurement: "heartbeat",
		Fields:      []string{"hr"},
	})
	if err != nil {
		t.Fatalf("NewInfluxSource failed: %v", err)
	}
	defer s.Close()

	start := time.Date(2025, 11, 9, 18, 0, 0, 0, time.UTC)
	q := s.fluxQuery(start, start.Add(5*time.Second))
	if strings.Contains(q, "r.source ==") {
		t.Errorf("Query should not filter by source when no filter is configured:\n%s", q)
	}
}
