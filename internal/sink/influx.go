package sink

import (
	"context"
	"fmt"
	"strconv"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func init() {
	Register("influxdb", func(def config.SinkDef) (model.Sink, error) {
		return NewInfluxSink(def.Name, def.Influx)
	})
}

// InfluxSink writes anonymized batches back into an InfluxDB bucket, one
// point per sample. Generalization tokens travel as tags, imputed values as
// fields.
type InfluxSink struct {
	name        string
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	sourceTag   string
}

// NewInfluxSink creates an InfluxDB sink from its configuration.
func NewInfluxSink(name string, cfg config.InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, model.NewConfigurationError("influxdb sink requires url and bucket")
	}
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "anonymized_vitals"
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		name:        name,
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: measurement,
		sourceTag:   cfg.SourceTag,
	}, nil
}

func (s *InfluxSink) Name() string { return s.name }

// Write converts each sample into a point and writes them in one call.
func (s *InfluxSink) Write(ctx context.Context, batch *model.AnonymizedBatch) (int, error) {
	points := make([]*write.Point, 0, len(batch.Samples))

	for _, sample := range batch.Samples {
		p := influxdb2.NewPointWithMeasurement(s.measurement).
			AddTag("level", strconv.Itoa(sample.Level)).
			AddTag("suppressed", strconv.FormatBool(sample.Suppressed)).
			SetTime(sample.Timestamp)

		if s.sourceTag != "" && sample.SourceID != "" {
			p.AddTag(s.sourceTag, sample.SourceID)
		}
		for field, token := range sample.Tokens {
			p.AddTag("token_"+field, token)
		}
		for field, value := range sample.Fields {
			p.AddField(field, value)
		}
		if len(sample.Fields) == 0 {
			// Influx rejects field-less points; suppressed markers carry a
			// sentinel field instead.
			p.AddField("suppressed_marker", true)
		}
		points = append(points, p)
	}

	if len(points) == 0 {
		return 0, nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("failed to write points: %w", err)
	}
	return len(batch.Samples), nil
}

// Close shuts the underlying HTTP client down.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}
