// Package web serves the JSON API.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/user/nettools/internal/util"
)

// Server is the API server.
type Server struct {
	handlers *Handlers
	port     int
	srv      *http.Server
}

// NewServer creates the API server.
func NewServer(handlers *Handlers, port int) *Server {
	return &Server{handlers: handlers, port: port}
}

// Start runs the server until Stop is called. It blocks.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.handlers.Register(mux)

	s.srv = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// Speed tests and scans hold the response open for minutes.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	util.Info().Int("port", s.port).Msg("web server starting")

	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
