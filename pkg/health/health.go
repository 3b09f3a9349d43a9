// Package health serves liveness and readiness endpoints for the
// gateway, plus a JSON dump of delivery metrics.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tinyland-inc/relaybot/pkg/metrics"
)

type Server struct {
	server *http.Server
	ready  atomic.Bool
	meters *metrics.Store
	start  time.Time
}

func NewServer(host string, port int) *Server {
	s := &Server{start: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}
	return s
}

// SetMetrics attaches the delivery metrics store served at /metrics.
func (s *Server) SetMetrics(m *metrics.Store) { s.meters = m }

// SetReady flips the readiness state reported at /ready.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "not ready")
		return
	}
	fmt.Fprintln(w, "ready")
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.meters == nil {
		fmt.Fprintln(w, "{}")
		return
	}
	json.NewEncoder(w).Encode(s.meters.GetAllMeters())
}
