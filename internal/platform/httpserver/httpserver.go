// Package httpserver runs the query API with bounded timeouts and a
// graceful stop.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"idstatus/internal/platform/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = time.Minute
	fallbackWrite     = 15 * time.Second
	fallbackShutdown  = 10 * time.Second
)

// Server wraps http.Server with the shutdown budget it was configured with.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New builds a Server for handler. Zero timeouts in cfg fall back to
// package defaults.
func New(cfg config.Server, handler http.Handler, logger *slog.Logger) *Server {
	write := cfg.WriteTimeout
	if write <= 0 {
		write = fallbackWrite
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = fallbackShutdown
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       write,
			WriteTimeout:      write,
			IdleTimeout:       idleTimeout,
		},
		shutdownTimeout: shutdown,
		logger:          logger,
	}
}

// HTTP exposes the underlying server.
func (s *Server) HTTP() *http.Server {
	return s.srv
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout. A listener failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "http server listening", "addr", s.srv.Addr)
		err := s.srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.InfoContext(shutdownCtx, "http server stopped")
	return <-errCh
}
