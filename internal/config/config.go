package config

import (
	"fmt"
	"os"
	"time"

	"AnonVitals/internal/model"

	"gopkg.in/yaml.v3"
)

// ClampRule clamps a field's raw values into [Min, Max] before
// anonymization. Out-of-range readings are sensor artifacts, not data.
type ClampRule struct {
	Field string  `yaml:"field"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

// AnonymizerConfig holds the k-anonymity settings.
type AnonymizerConfig struct {
	KValue               int         `yaml:"k_value"`
	QuasiIdentifiers     []string    `yaml:"quasi_identifiers"`
	HierarchyPath        string      `yaml:"hierarchy_path"`
	SuppressedPolicy     string      `yaml:"suppressed_policy"` // drop | mark
	ImputeIdentityGroups bool        `yaml:"impute_identity_groups"`
	RedactSourceID       bool        `yaml:"redact_source_id"`
	Clamp                []ClampRule `yaml:"clamp"`
}

// SchedulerConfig holds the window cadence settings.
type SchedulerConfig struct {
	Mode                string `yaml:"mode"` // historical | streaming
	BatchWindow         string `yaml:"batch_window"`
	StartTime           string `yaml:"start_time"` // historical, RFC3339
	EndTime             string `yaml:"end_time"`   // historical, RFC3339
	PollInterval        string `yaml:"poll_interval"`
	MaxRecordsPerWindow int    `yaml:"max_records_per_window"`
	FetchAttempts       int    `yaml:"fetch_attempts"`
	FetchBackoff        string `yaml:"fetch_backoff"`
}

// DispatcherConfig holds the per-sink retry settings.
type DispatcherConfig struct {
	WriteTimeout string `yaml:"write_timeout"`
	MaxAttempts  int    `yaml:"max_attempts"`
	RetryBackoff string `yaml:"retry_backoff"`
}

// InfluxConfig describes an InfluxDB connection, used by both the batch
// source and the influxdb sink.
type InfluxConfig struct {
	URL          string   `yaml:"url"`
	Token        string   `yaml:"token"`
	Org          string   `yaml:"org"`
	Bucket       string   `yaml:"bucket"`
	Measurement  string   `yaml:"measurement"`
	Fields       []string `yaml:"fields"`
	SourceTag    string   `yaml:"source_tag"`
	SourceFilter string   `yaml:"source_filter"`
}

// ClickHouseConfig describes a ClickHouse connection for the time-series sink.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CSVConfig describes the delimited-file export sink.
type CSVConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// HTTPConfig describes the HTTP/API sink.
type HTTPConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Timeout  string `yaml:"timeout"`
}

// NATSConfig describes the NATS fan-out sink.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SinkDef describes one configured output sink.
type SinkDef struct {
	Kind       string           `yaml:"kind"` // clickhouse | influxdb | csv | http | nats
	Name       string           `yaml:"name"`
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Influx     InfluxConfig     `yaml:"influx"`
	CSV        CSVConfig        `yaml:"csv"`
	HTTP       HTTPConfig       `yaml:"http"`
	NATS       NATSConfig       `yaml:"nats"`
}

// SourceConfig describes the batch source.
type SourceConfig struct {
	Kind   string       `yaml:"kind"` // influxdb
	Influx InfluxConfig `yaml:"influx"`
}

// ReportConfig holds the stats/metrics listener settings.
type ReportConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the top-level configuration struct for the entire application.
// It is immutable after Load; every option is validated once at engine
// construction, never re-read during processing.
type Config struct {
	Anonymizer AnonymizerConfig `yaml:"anonymizer"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Source     SourceConfig     `yaml:"source"`
	Sinks      []SinkDef        `yaml:"sinks"`
	Report     ReportConfig     `yaml:"report"`
}

// Load reads the configuration from a YAML file and returns a Config struct.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Anonymizer.SuppressedPolicy == "" {
		c.Anonymizer.SuppressedPolicy = "drop"
	}
	if c.Scheduler.Mode == "" {
		c.Scheduler.Mode = "historical"
	}
	if c.Scheduler.BatchWindow == "" {
		c.Scheduler.BatchWindow = "5s"
	}
	if c.Scheduler.PollInterval == "" {
		c.Scheduler.PollInterval = "5s"
	}
	if c.Scheduler.FetchAttempts == 0 {
		c.Scheduler.FetchAttempts = 3
	}
	if c.Scheduler.FetchBackoff == "" {
		c.Scheduler.FetchBackoff = "500ms"
	}
	if c.Dispatcher.WriteTimeout == "" {
		c.Dispatcher.WriteTimeout = "30s"
	}
	if c.Dispatcher.MaxAttempts == 0 {
		c.Dispatcher.MaxAttempts = 3
	}
	if c.Dispatcher.RetryBackoff == "" {
		c.Dispatcher.RetryBackoff = "200ms"
	}
}

// Validate checks the configuration once, at construction time. Any
// violation is a *model.ConfigurationError and fatal to the run.
func (c *Config) Validate() error {
	if c.Anonymizer.KValue < 1 {
		return model.NewConfigurationError("k_value must be >= 1, got %d", c.Anonymizer.KValue)
	}
	if len(c.Anonymizer.QuasiIdentifiers) == 0 {
		return model.NewConfigurationError("at least one quasi-identifier field is required")
	}
	if c.Anonymizer.HierarchyPath == "" {
		return model.NewConfigurationError("hierarchy_path is required")
	}
	switch c.Anonymizer.SuppressedPolicy {
	case "drop", "mark":
	default:
		return model.NewConfigurationError("suppressed_policy must be 'drop' or 'mark', got %q", c.Anonymizer.SuppressedPolicy)
	}

	window, err := time.ParseDuration(c.Scheduler.BatchWindow)
	if err != nil || window <= 0 {
		return model.NewConfigurationError("batch_window must be a positive duration, got %q", c.Scheduler.BatchWindow)
	}

	switch c.Scheduler.Mode {
	case "historical":
		start, err := time.Parse(time.RFC3339, c.Scheduler.StartTime)
		if err != nil {
			return model.NewConfigurationError("historical mode requires a valid RFC3339 start_time: %v", err)
		}
		end, err := time.Parse(time.RFC3339, c.Scheduler.EndTime)
		if err != nil {
			return model.NewConfigurationError("historical mode requires a valid RFC3339 end_time: %v", err)
		}
		if !start.Before(end) {
			return model.NewConfigurationError("start_time must be before end_time")
		}
	case "streaming":
		if _, err := time.ParseDuration(c.Scheduler.PollInterval); err != nil {
			return model.NewConfigurationError("invalid poll_interval: %v", err)
		}
	default:
		return model.NewConfigurationError("mode must be 'historical' or 'streaming', got %q", c.Scheduler.Mode)
	}

	if c.Scheduler.MaxRecordsPerWindow < 0 {
		return model.NewConfigurationError("max_records_per_window must not be negative")
	}
	if c.Scheduler.FetchAttempts < 1 {
		return model.NewConfigurationError("fetch_attempts must be >= 1, got %d", c.Scheduler.FetchAttempts)
	}
	if _, err := time.ParseDuration(c.Scheduler.FetchBackoff); err != nil {
		return model.NewConfigurationError("invalid fetch_backoff: %v", err)
	}

	if _, err := time.ParseDuration(c.Dispatcher.WriteTimeout); err != nil {
		return model.NewConfigurationError("invalid write_timeout: %v", err)
	}
	if _, err := time.ParseDuration(c.Dispatcher.RetryBackoff); err != nil {
		return model.NewConfigurationError("invalid retry_backoff: %v", err)
	}

	enabled := 0
	for _, def := range c.Sinks {
		if def.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return model.NewConfigurationError("at least one sink must be enabled")
	}

	return nil
}

// BatchWindow returns the parsed window width. Validate must have passed.
func (c *Config) BatchWindow() time.Duration {
	d, _ := time.ParseDuration(c.Scheduler.BatchWindow)
	return d
}

// PollInterval returns the parsed streaming poll interval.
func (c *Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Scheduler.PollInterval)
	return d
}

// FetchBackoff returns the initial backoff for batch source retries.
func (c *Config) FetchBackoff() time.Duration {
	d, _ := time.ParseDuration(c.Scheduler.FetchBackoff)
	return d
}

// WriteTimeout returns the per-sink write timeout.
func (c *Config) WriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Dispatcher.WriteTimeout)
	return d
}

// RetryBackoff returns the initial backoff for sink write retries.
func (c *Config) RetryBackoff() time.Duration {
	d, _ := time.ParseDuration(c.Dispatcher.RetryBackoff)
	return d
}

// HistoricalRange returns the parsed start/end of a historical run.
func (c *Config) HistoricalRange() (time.Time, time.Time) {
	start, _ := time.Parse(time.RFC3339, c.Scheduler.StartTime)
	end, _ := time.Parse(time.RFC3339, c.Scheduler.EndTime)
	return start, end
}
