package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"
)

func init() {
	Register("http", func(def config.SinkDef) (model.Sink, error) {
		return NewHTTPSink(def.Name, def.HTTP)
	})
}

// HTTPSink POSTs each batch as a JSON document to an API endpoint.
type HTTPSink struct {
	name     string
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPSink creates an HTTP sink from its configuration.
func NewHTTPSink(name string, cfg config.HTTPConfig) (*HTTPSink, error) {
	if cfg.Endpoint == "" {
		return nil, model.NewConfigurationError("http sink requires an endpoint")
	}
	timeout := 30 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, model.NewConfigurationError("invalid http sink timeout: %v", err)
		}
		timeout = d
	}
	return &HTTPSink{
		name:     name,
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPSink) Name() string { return s.name }

// Write posts the batch and treats any non-2xx response as a failure, which
// the dispatcher retries.
func (s *HTTPSink) Write(ctx context.Context, batch *model.AnonymizedBatch) (int, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return len(batch.Samples), nil
}

// Close is a no-op; the HTTP client holds no persistent connection state
// worth tearing down.
func (s *HTTPSink) Close() error { return nil }
