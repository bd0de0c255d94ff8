package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"mingmong/internal/certs"
)

// Server represents an HTTP server
type Server struct {
	srv    *http.Server
	bundle *certs.Bundle
}

// New creates a new server instance. A nil bundle means plain HTTP.
func New(handler http.Handler, port string, bundle *certs.Bundle) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		bundle: bundle,
	}
}

// TLSEnabled reports whether the server will listen with TLS.
func (s *Server) TLSEnabled() bool {
	return s.bundle != nil
}

// Start starts the server
func (s *Server) Start() error {
	if s.bundle != nil {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		go func() {
			if err := s.srv.ListenAndServeTLS(s.bundle.CertFile, s.bundle.KeyFile); err != nil && err != http.ErrServerClosed {
				panic(err)
			}
		}()
		return nil
	}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
