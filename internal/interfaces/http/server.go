package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/turtacn/FairPlay-Intelligence/internal/config"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// Server wraps http.Server with the lifecycle the daemons expect: a blocking
// Start and a bounded, graceful Stop.
type Server struct {
	srv             *http.Server
	handler         http.Handler
	log             logging.Logger
	shutdownTimeout time.Duration
}

// NewServer builds the server around an assembled handler, typically the
// engine returned by NewRouter.
func NewServer(cfg config.ServerConfig, handler http.Handler, log logging.Logger) *Server {
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		// Synchronous analysis holds the connection for the whole engine
		// run, so the write timeout is generous.
		writeTimeout = 5 * time.Minute
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	return &Server{
		handler:         handler,
		log:             log,
		shutdownTimeout: shutdownTimeout,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until Stop is called or the listener fails. A graceful
// shutdown is reported as nil.
func (s *Server) Start() error {
	s.log.Info("http server listening", logging.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests, waiting at most the configured shutdown
// timeout before forcing connections closed.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
