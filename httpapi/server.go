// Package httpapi exposes the engine over HTTP: quote and dispatch
// endpoints, admin CRUD for zones and fare rules, a driver-state webhook,
// and health probes.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gatiride/gati-platform/engine/logging"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// RateLimit wraps the handler with a per-client request budget.
	// Nil disables rate limiting.
	RateLimit *RateLimiterConfig
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server wraps an HTTP server with graceful shutdown. When rate limiting
// is configured the server owns the limiter and stops its cleanup loop on
// shutdown.
type Server struct {
	server          *http.Server
	limiter         *RateLimiter
	shutdownTimeout time.Duration
	logger          *logging.Logger
}

// NewServer creates a new HTTP server.
func NewServer(config ServerConfig, handler http.Handler, logger *logging.Logger) *Server {
	var limiter *RateLimiter
	if config.RateLimit != nil {
		limiter = NewRateLimiter(*config.RateLimit, logger)
		handler = limiter.Middleware(handler)
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		limiter:         limiter,
		shutdownTimeout: config.ShutdownTimeout,
		logger:          logger,
	}
}

// Run starts the server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) shutdown() error {
	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = DefaultServerConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.limiter != nil {
		s.limiter.Close()
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
