package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bhamnews/briefing-engine/internal/auth"
	"github.com/bhamnews/briefing-engine/internal/config"
)

// Server is the HTTP front of the briefing engine.
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	server  *http.Server
}

// NewServer creates the API server with routes wired.
func NewServer(cfg config.ServerConfig, h *Handlers, gate *auth.Gate) *Server {
	return &Server{
		config:  cfg,
		handler: SetupRoutes(h, gate),
	}
}

// ListenAndServe starts the HTTP server on the configured address.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.GetHost(), s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("[Server] Listening on %s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
