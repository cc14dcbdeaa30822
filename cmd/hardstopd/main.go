// Package main provides the entry point for the hardstop daemon.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Evalutik/hardstop/internal/authgate"
	"github.com/Evalutik/hardstop/internal/config"
	"github.com/Evalutik/hardstop/internal/credential"
	"github.com/Evalutik/hardstop/internal/deadline"
	"github.com/Evalutik/hardstop/internal/engine"
	"github.com/Evalutik/hardstop/internal/fileguard"
	"github.com/Evalutik/hardstop/internal/instance"
	"github.com/Evalutik/hardstop/internal/logging"
	"github.com/Evalutik/hardstop/internal/metrics"
	"github.com/Evalutik/hardstop/internal/power"
	"github.com/Evalutik/hardstop/internal/server"
	"github.com/Evalutik/hardstop/internal/storage"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hardstopd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("hardstopd starting", slog.String("version", version))

	// Refuse to start if a fire would fail at deadline time.
	if err := power.Probe(); err != nil {
		return fmt.Errorf("shutdown privilege check failed: %w", err)
	}

	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	guard := fileguard.New()
	if cfg.DisableProtection {
		logger.Warn("file protection disabled, credential and deadline files are not tamper-resistant")
		guard = fileguard.NewNoop()
	}

	audit, err := storage.New(cfg.AuditPath())
	if err != nil {
		return fmt.Errorf("failed to open audit trail: %w", err)
	}
	defer audit.Close() //nolint:errcheck

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	store := credential.NewStore(cfg.CredentialPath(), guard)
	dfile := deadline.NewFile(cfg.DeadlinePath())

	// The notify hook runs with engine internals locked: it records and
	// burns state but never calls back into the engine.
	notify := func(kind string) {
		if err := audit.Append(context.Background(), kind, ""); err != nil {
			logger.Warn("failed to append audit event", slog.String("kind", kind), slog.Any("error", err))
		}
		switch kind {
		case engine.EventAboutToFire:
			// Burn the credential before the shutdown call so a restored
			// backup of the file cannot authorize anything afterwards.
			if err := store.Consume(); err != nil {
				logger.Warn("failed to consume credential before fire", slog.Any("error", err))
			}
		case engine.EventFired:
			m.RecordFired()
		}
	}

	eng := engine.New(
		dfile,
		instance.New(cfg.LockPath()),
		power.NewSystemExecutor(logger),
		logger,
		engine.WithNotify(notify),
	)

	resumed, err := eng.Resume()
	if err != nil {
		// Fail closed to unarmed rather than refuse to start.
		logger.Warn("could not resume persisted deadline", slog.Any("error", err))
	}
	if resumed {
		st := eng.Status()
		m.RecordArmed(st.Target)
		logger.Info("resumed armed deadline", slog.Time("target", st.Target))
	}

	gate := authgate.New(store, eng, logger)
	handler := server.NewHandler(eng, gate, store, dfile, audit, m, logger, version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		logger.Info("metrics listening", slog.String("addr", cfg.MetricsListenAddr))
		if err := http.ListenAndServe(cfg.MetricsListenAddr, mux); err != nil {
			logger.Warn("metrics listener failed", slog.Any("error", err))
		}
	}()

	if err := server.Serve(ctx, cfg.SocketPath, handler.NewRouter(), logger); err != nil {
		return fmt.Errorf("control API failed: %w", err)
	}

	logger.Info("hardstopd stopped")
	return nil
}
