package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.GetAppAddr()
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown closes every realtime session, which fires the offline
// cascade, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.sockets.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close realtime sessions: %w", err))
	}
	if err := s.E.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
