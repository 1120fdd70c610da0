package report

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the run report and Prometheus metrics over HTTP. It is the
// pull interface for the external monitoring collaborator.
type Server struct {
	reporter *Reporter
	server   *http.Server
}

// NewServer creates a stats server bound to addr.
func NewServer(reporter *Reporter, addr string) *Server {
	r := mux.NewRouter()

	s := &Server{reporter: reporter}
	r.HandleFunc("/api/v1/report", s.reportHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(reporter.MetricsHandle().Registry, promhttp.HandlerOpts{}))

	s.server = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start runs the listener in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("Stats server starting on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Stats server stopped: %v", err)
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// reportHandler serves the aggregated run report as JSON.
func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := s.reporter.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		http.Error(w, "failed to encode report", http.StatusInternalServerError)
	}
}
