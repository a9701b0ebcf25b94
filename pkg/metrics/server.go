package metrics

import (
	"context"
	"net/http"
	"time"
)

// Server serves Prometheus metrics plus health/readiness endpoints.
type Server struct {
	httpServer *http.Server
}

// NewServer creates the metrics HTTP server on addr with the metrics
// handler mounted at path.
func NewServer(addr, path string) *Server {
	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/ready", ReadyHandler())
	mux.HandleFunc("/live", LivenessHandler())

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves until Shutdown; it returns http.ErrServerClosed on clean stop.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
