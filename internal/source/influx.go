// Package source holds the batch source implementations the scheduler
// fetches raw samples from.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// New builds the configured batch source.
func New(cfg config.SourceConfig) (model.Source, error) {
	switch cfg.Kind {
	case "influxdb":
		return NewInfluxSource(cfg.Influx)
	default:
		return nil, model.NewConfigurationError("unknown source kind %q", cfg.Kind)
	}
}

// InfluxSource fetches raw samples from an InfluxDB bucket with a Flux
// query, pivoting the per-field rows into one multi-field sample per
// (time, source) pair.
type InfluxSource struct {
	client    influxdb2.Client
	queryAPI  api.QueryAPI
	bucket    string
	meas      string
	fields    []string
	sourceTag string
	filter    string
}

// NewInfluxSource creates an InfluxDB source from its configuration.
func NewInfluxSource(cfg config.InfluxConfig) (*InfluxSource, error) {
	if cfg.URL == "" || cfg.Bucket == "" || cfg.Measurement == "" {
		return nil, model.NewConfigurationError("influxdb source requires url, bucket and measurement")
	}
	if len(cfg.Fields) == 0 {
		return nil, model.NewConfigurationError("influxdb source requires at least one field")
	}
	sourceTag := cfg.SourceTag
	if sourceTag == "" {
		sourceTag = "source"
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSource{
		client:    client,
		queryAPI:  client.QueryAPI(cfg.Org),
		bucket:    cfg.Bucket,
		meas:      cfg.Measurement,
		fields:    cfg.Fields,
		sourceTag: sourceTag,
		filter:    cfg.SourceFilter,
	}, nil
}

// Fetch queries [start, end) and returns one sample per (time, source) row.
// Query failures come back as *model.SourceUnavailableError so the scheduler
// retries them.
func (s *InfluxSource) Fetch(ctx context.Context, start, end time.Time) ([]model.RawSample, error) {
	result, err := s.queryAPI.Query(ctx, s.fluxQuery(start, end))
	if err != nil {
		return nil, &model.SourceUnavailableError{Err: err}
	}

	var samples []model.RawSample
	for result.Next() {
		record := result.Record()

		fields := make(map[string]float64, len(s.fields))
		for _, name := range s.fields {
			if v, ok := record.ValueByKey(name).(float64); ok {
				fields[name] = v
			}
		}
		if len(fields) == 0 {
			continue
		}

		sourceID, _ := record.ValueByKey(s.sourceTag).(string)
		samples = append(samples, model.RawSample{
			Timestamp: record.Time(),
			SourceID:  sourceID,
			Fields:    fields,
		})
	}
	if err := result.Err(); err != nil {
		return nil, &model.SourceUnavailableError{Err: err}
	}

	return samples, nil
}

// fluxQuery builds the pivoted window query. The range stop is exclusive,
// matching the half-open window.
func (s *InfluxSource) fluxQuery(start, end time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", s.bucket)
	fmt.Fprintf(&b, "  |> range(start: %s, stop: %s)\n",
		start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q)\n", s.meas)

	preds := make([]string, len(s.fields))
	for i, f := range s.fields {
		preds[i] = fmt.Sprintf("r._field == %q", f)
	}
	fmt.Fprintf(&b, "  |> filter(fn: (r) => %s)\n", strings.Join(preds, " or "))

	if s.filter != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.%s == %q)\n", s.sourceTag, s.filter)
	}

	b.WriteString(`  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")`)
	return b.String()
}

// Close shuts the underlying HTTP client down.
func (s *InfluxSource) Close() error {
	s.client.Close()
	return nil
}
