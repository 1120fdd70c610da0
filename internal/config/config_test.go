package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"AnonVitals/internal/model"
)

const sampleConfig = `
anonymizer:
  k_value: 5
  quasi_identifiers: ["hr"]
  hierarchy_path: "configs/hierarchy.yaml"
scheduler:
  mode: "historical"
  batch_window: "5s"
  start_time: "2025-11-09T18:00:00Z"
  end_time: "2025-11-09T19:00:00Z"
sinks:
  - kind: "csv"
    enabled: true
    csv:
      output_dir: "out"
`

func loadSample(t *testing.T, content string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg := loadSample(t, sampleConfig)

	if cfg.Anonymizer.SuppressedPolicy != "drop" {
		t.Errorf("Default suppressed_policy should be drop, got %q", cfg.Anonymizer.SuppressedPolicy)
	}
	if cfg.Scheduler.FetchAttempts != 3 {
		t.Errorf("Default fetch_attempts should be 3, got %d", cfg.Scheduler.FetchAttempts)
	}
	if cfg.Dispatcher.MaxAttempts != 3 {
		t.Errorf("Default max_attempts should be 3, got %d", cfg.Dispatcher.MaxAttempts)
	}
	if got := cfg.WriteTimeout(); got != 30*time.Second {
		t.Errorf("Default write_timeout should be 30s, got %s", got)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Sample config should validate: %v", err)
	}
	start, end := cfg.HistoricalRange()
	if !start.Before(end) || cfg.BatchWindow() != 5*time.Second {
		t.Errorf("Parsed range/window wrong: %s %s %s", start, end, cfg.BatchWindow())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("Expected error for missing file")
	}
}

func TestValidate_Violations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero k", func(c *Config) { c.Anonymizer.KValue = 0 }},
		{"no quasi-identifiers", func(c *Config) { c.Anonymizer.QuasiIdentifiers = nil }},
		{"no hierarchy path", func(c *Config) { c.Anonymizer.HierarchyPath = "" }},
		{"bad policy", func(c *Config) { c.Anonymizer.SuppressedPolicy = "shred" }},
		{"bad window", func(c *Config) { c.Scheduler.BatchWindow = "-5s" }},
		{"bad mode", func(c *Config) { c.Scheduler.Mode = "warp" }},
		{"missing start", func(c *Config) { c.Scheduler.StartTime = "" }},
		{"inverted range", func(c *Config) {
			c.Scheduler.StartTime, c.Scheduler.EndTime = c.Scheduler.EndTime, c.Scheduler.StartTime
		}},
		{"negative cap", func(c *Config) { c.Scheduler.MaxRecordsPerWindow = -1 }},
		{"negative fetch attempts", func(c *Config) { c.Scheduler.FetchAttempts = -1 }},
		{"bad fetch backoff", func(c *Config) { c.Scheduler.FetchBackoff = "soon" }},
		{"no enabled sink", func(c *Config) { c.Sinks[0].Enabled = false }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := loadSample(t, sampleConfig)
			tc.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *model.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("Expected a ConfigurationError, got %v", err)
			}
		})
	}
}

func TestValidate_StreamingNeedsNoRange(t *testing.T) {
	cfg := loadSample(t, sampleConfig)
	cfg.Scheduler.Mode = "streaming"
	cfg.Scheduler.StartTime = ""
	cfg.Scheduler.EndTime = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Streaming mode should not require a historical range: %v", err)
	}
}
