package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/twopc/savings/backend/internal/config"
)

// Server owns the HTTP listener lifecycle plus the teardown that must run
// after the listener stops accepting traffic: draining the notification
// dispatcher and closing the store. Teardown runs in registration order so
// queued notifications flush before their backing store goes away.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cleanup    []func()
}

// New constructs a Server around the provided router. cleanup functions are
// invoked during Shutdown, after in-flight requests finish.
func New(logger *slog.Logger, cfg config.HTTPConfig, handler http.Handler, cleanup ...func()) *Server {
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return &Server{
		httpServer: httpServer,
		logger:     logger,
		cleanup:    cleanup,
	}
}

// Start begins listening for HTTP traffic and blocks until the listener
// stops. A close triggered by Shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new connections, waits for active requests up to
// the context deadline, then runs the registered cleanup functions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	err := s.httpServer.Shutdown(ctx)
	for _, fn := range s.cleanup {
		fn()
	}
	return err
}
