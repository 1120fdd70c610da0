package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"

	"github.com/nats-io/nats.go"
)

func init() {
	Register("nats", func(def config.SinkDef) (model.Sink, error) {
		return NewNATSSink(def.Name, def.NATS)
	})
}

// NATSSink publishes each anonymized batch as one JSON message, for
// downstream consumers that want the release stream live.
type NATSSink struct {
	name    string
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the NATS server.
func NewNATSSink(name string, cfg config.NATSConfig) (*NATSSink, error) {
	if cfg.Subject == "" {
		return nil, model.NewConfigurationError("nats sink requires a subject")
	}
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSSink{name: name, nc: nc, subject: cfg.Subject}, nil
}

func (s *NATSSink) Name() string { return s.name }

// Write publishes the batch and flushes so delivery failures surface here
// instead of at connection teardown.
func (s *NATSSink) Write(ctx context.Context, batch *model.AnonymizedBatch) (int, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal batch: %w", err)
	}
	if err := s.nc.Publish(s.subject, data); err != nil {
		return 0, fmt.Errorf("failed to publish batch: %w", err)
	}
	if err := s.nc.FlushWithContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to flush publish: %w", err)
	}
	return len(batch.Samples), nil
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() error {
	if s.nc != nil {
		s.nc.Drain()
	}
	return nil
}
