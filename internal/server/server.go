package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
)

// Serve listens on the unix socket at socketPath and serves handler until
// ctx is cancelled. A stale socket from an unclean exit is removed first;
// the live socket is owner-only, which is the access control for the
// control API.
func Serve(ctx context.Context, socketPath string, handler http.Handler, logger *slog.Logger) error {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = lis.Close() //nolint:errcheck
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	srv := &http.Server{Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("control API shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("control API listening", slog.String("socket", socketPath))
	err = srv.Serve(lis)
	_ = os.Remove(socketPath) //nolint:errcheck
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
