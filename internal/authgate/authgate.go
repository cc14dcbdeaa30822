// Package authgate is the thin orchestration between a cancellation
// request and the credential store. It validates a candidate secret and,
// on success, disarms the engine and erases the credential.
package authgate

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/Evalutik/hardstop/internal/credential"
	"github.com/Evalutik/hardstop/internal/engine"
	"github.com/Evalutik/hardstop/internal/logging"
)

// ErrAuthDenied is returned on any mismatch, decode error, or consumed
// credential. The reason is never disclosed.
var ErrAuthDenied = errors.New("authorization denied")

// Gate serializes cancellation attempts. The mutex spans the whole
// validate-and-consume sequence so two near-simultaneous correct guesses
// cannot both observe an unconsumed credential.
type Gate struct {
	mu     sync.Mutex
	store  *credential.Store
	engine *engine.Engine
	logger *slog.Logger
}

// New constructs a Gate over the store and engine.
func New(store *credential.Store, eng *engine.Engine, logger *slog.Logger) *Gate {
	return &Gate{store: store, engine: eng, logger: logger}
}

// Cancel attempts to cancel the armed shutdown with the candidate secret.
// Returns nil on success, ErrAuthDenied on a failed check (state
// unchanged, retryable without limit), engine.ErrAlreadyFired after the
// shutdown fired, and engine.ErrNotArmed when there is no armed timer.
// The candidate itself is never logged.
func (g *Gate) Cancel(candidate string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.engine.State() {
	case engine.StateArmed:
	case engine.StateFired:
		return engine.ErrAlreadyFired
	default:
		return engine.ErrNotArmed
	}

	// The engine, not the file, says whether a password guards this timer.
	// A destroyed credential file on a protected timer denies everything.
	if !g.store.Validate(candidate, g.engine.Protected()) {
		g.logger.Info("cancellation denied", slog.String("candidate", logging.Redact(candidate)))
		return ErrAuthDenied
	}

	if err := g.engine.Disarm(); err != nil {
		// The engine fired between the state check and the disarm.
		return err
	}

	if err := g.store.Wipe(); err != nil {
		g.logger.Warn("failed to erase consumed credential", slog.Any("error", err))
	}

	g.logger.Info("cancellation accepted")
	return nil
}
