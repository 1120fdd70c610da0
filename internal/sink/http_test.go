package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"
)

func TestHTTPSink_PostsBatchWithBearerToken(t *testing.T) {
	var gotAuth, gotType string
	var gotBatch model.AnonymizedBatch

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotBatch); err != nil {
			t.Errorf("Request body is not valid JSON: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewHTTPSink("http", config.HTTPConfig{Endpoint: srv.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("NewHTTPSink failed: %v", err)
	}

	n, err := s.Write(context.Background(), exportBatch())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 records written, got %d", n)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization header %q, want Bearer secret", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type %q, want application/json", gotType)
	}
	if gotBatch.KValue != 5 || len(gotBatch.Samples) != 2 {
		t.Errorf("Unexpected payload: %+v", gotBatch)
	}
}

func TestHTTPSink_NonSuccessStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := NewHTTPSink("http", config.HTTPConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewHTTPSink failed: %v", err)
	}
	if _, err := s.Write(context.Background(), exportBatch()); err == nil {
		t.Errorf("Expected an error for a 503 response")
	}
}

func TestNewHTTPSink_RejectsBadConfig(t *testing.T) {
	if _, err := NewHTTPSink("http", config.HTTPConfig{}); err == nil {
		t.Errorf("Expected error for missing endpoint")
	}
	if _, err := NewHTTPSink("http", config.HTTPConfig{Endpoint: "http://x", Timeout: "soon"}); err == nil {
		t.Errorf("Expected error for malformed timeout")
	}
}
