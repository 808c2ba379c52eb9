// File: internal/infra/web/server.go
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"image-enhance-client/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the local observability surface: health, Prometheus
// metrics and the set of currently held operation keys.
type Server struct {
	registry *usecase.OperationRegistry
	version  string
	log      *zerolog.Logger
	server   *http.Server
}

func NewServer(port int, registry *usecase.OperationRegistry, version string, logger *zerolog.Logger) *Server {
	webLog := logger.With().Str("component", "WebServer").Logger()
	s := &Server{registry: registry, version: version, log: &webLog}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/v1/status", s.handleStatus)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("admin server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type statusResponse struct {
	Version          string    `json:"version"`
	Time             time.Time `json:"time"`
	ActiveOperations []string  `json:"active_operations"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Version:          s.version,
		Time:             time.Now().UTC(),
		ActiveOperations: s.registry.Active(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("encode status response")
	}
}
