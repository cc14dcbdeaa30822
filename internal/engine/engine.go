// Package engine owns the Unarmed -> Armed -> {Cancelled, Fired} state
// machine. The deadline is an absolute wall-clock instant re-read from
// persistent storage on every wake, so neither a process restart nor a
// system suspend can shorten, extend, or reset it.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Evalutik/hardstop/internal/deadline"
	"github.com/Evalutik/hardstop/internal/instance"
)

// defaultWakeInterval caps how long the wait loop sleeps between
// re-checks of the persisted target. System sleep can delay a fire by at
// most one interval past the true deadline and can never cause an early
// fire, because remaining time is always recomputed from the absolute
// target.
const defaultWakeInterval = 30 * time.Second

// Executor fires the terminal shutdown action.
type Executor interface {
	Execute()
}

// Engine drives a single armed deadline.
type Engine struct {
	file   *deadline.File
	guard  *instance.Guard
	exec   Executor
	logger *slog.Logger

	notify       func(kind string)
	wakeInterval time.Duration

	mu        sync.Mutex
	state     State
	target    time.Time
	protected bool
	cancelCh  chan struct{}
	fired     chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithWakeInterval overrides the wait-loop wake cadence (tests).
func WithWakeInterval(d time.Duration) Option {
	return func(e *Engine) { e.wakeInterval = d }
}

// WithNotify installs a hook invoked synchronously on every lifecycle
// event (armed, resumed, cancelled, about_to_fire, fired). The hook is
// for display and audit only; it must not be trusted to enforce anything.
func WithNotify(fn func(kind string)) Option {
	return func(e *Engine) { e.notify = fn }
}

// New constructs an unarmed Engine.
func New(file *deadline.File, guard *instance.Guard, exec Executor, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		file:         file,
		guard:        guard,
		exec:         exec,
		logger:       logger,
		notify:       func(string) {},
		wakeInterval: defaultWakeInterval,
		fired:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Arm acquires the single-instance token, persists the deadline record,
// and starts the watcher. The record is on stable storage before Arm
// returns, so a crash immediately afterwards still resumes the same
// deadline. protected records whether a cancellation password guards this
// timer; the flag is persisted so a restart cannot be tricked into
// no-password mode by deleting the credential file. Fails with
// instance.ErrAlreadyArmed while a timer is armed anywhere on the system.
func (e *Engine) Arm(target time.Time, protected bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateArmed:
		return instance.ErrAlreadyArmed
	case StateFired:
		return ErrAlreadyFired
	}
	if !target.After(time.Now()) {
		return ErrPastDeadline
	}

	if err := e.guard.Acquire(); err != nil {
		return err
	}
	if err := e.file.Save(deadline.Record{Target: target, Armed: true, Protected: protected}); err != nil {
		_ = e.guard.Release() //nolint:errcheck
		return fmt.Errorf("failed to persist deadline: %w", err)
	}

	e.target = target
	e.protected = protected
	e.state = StateArmed
	e.cancelCh = make(chan struct{})
	e.logger.Info("armed", slog.Time("target", target))
	e.notify(EventArmed)

	go e.run(e.cancelCh)
	return nil
}

// Resume restores an Armed state from a persisted record on process
// start. This is what makes killing the watcher not a bypass: the same
// target_time is honored, and a deadline that passed while the process
// was down fires immediately. An unreadable record degrades to unarmed
// (fail closed, never invent a deadline); the error is returned for
// logging. Returns true if a timer was resumed.
func (e *Engine) Resume() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateUnarmed {
		return false, nil
	}

	rec, err := e.file.Load()
	if errors.Is(err, deadline.ErrNoRecord) {
		return false, nil
	}
	if err != nil {
		_ = e.file.Clear() //nolint:errcheck
		return false, fmt.Errorf("ignoring unreadable deadline record: %w", err)
	}
	if !rec.Armed {
		_ = e.file.Clear() //nolint:errcheck
		return false, nil
	}

	if err := e.guard.Acquire(); err != nil {
		return false, err
	}

	e.target = rec.Target
	e.protected = rec.Protected
	e.state = StateArmed
	e.cancelCh = make(chan struct{})
	e.logger.Info("resumed armed deadline", slog.Time("target", rec.Target))
	e.notify(EventResumed)

	go e.run(e.cancelCh)
	return true, nil
}

// Disarm transitions Armed -> Cancelled, releases the token, and destroys
// the deadline record. Authorization has already happened by the time
// this is called. After Fired the request is moot and reported as such;
// otherwise with no armed timer there is nothing to cancel.
func (e *Engine) Disarm() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateArmed:
	case StateFired:
		return ErrAlreadyFired
	default:
		return ErrNotArmed
	}

	e.state = StateCancelled
	close(e.cancelCh)

	if err := e.file.Clear(); err != nil {
		e.logger.Warn("failed to clear deadline record", slog.Any("error", err))
	}
	if err := e.guard.Release(); err != nil {
		e.logger.Warn("failed to release instance token", slog.Any("error", err))
	}

	e.logger.Info("cancelled")
	e.notify(EventCancelled)
	return nil
}

// Status returns a snapshot for the presentation layer.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{State: e.state}
	if e.state == StateArmed {
		st.Target = e.target
		if rem := time.Until(e.target); rem > 0 {
			st.Remaining = rem
		}
	}
	return st
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Protected reports whether the armed timer was configured with a
// cancellation password. Authorization must consult this rather than the
// presence of the credential file: an absent file on a protected timer
// means the file was destroyed, not that no password was set.
func (e *Engine) Protected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateArmed && e.protected
}

// Fired returns a channel closed when the shutdown has fired.
func (e *Engine) Fired() <-chan struct{} {
	return e.fired
}

// run is the sole long-lived suspension point: a wait-with-timeout loop
// over the sooner of the wall-clock deadline and the cancel signal,
// re-evaluated on every wake.
func (e *Engine) run(cancel <-chan struct{}) {
	for {
		target, ok := e.checkpoint()
		if !ok {
			return
		}

		remaining := time.Until(target)
		if remaining <= 0 {
			e.fire()
			return
		}

		d := remaining
		if d > e.wakeInterval {
			d = e.wakeInterval
		}
		timer := time.NewTimer(d)
		select {
		case <-cancel:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// checkpoint re-reads the persisted target under the lock. If the record
// was tampered with or deleted while armed, the in-memory absolute
// target still stands and is re-persisted; deleting the file is not a
// bypass. Returns ok=false when the engine is no longer armed.
func (e *Engine) checkpoint() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateArmed {
		return time.Time{}, false
	}

	rec, err := e.file.Load()
	if err == nil && rec.Armed {
		e.target = rec.Target
	} else {
		e.logger.Warn("persisted deadline missing or unreadable, rewriting", slog.Time("target", e.target))
		if err := e.file.Save(deadline.Record{Target: e.target, Armed: true, Protected: e.protected}); err != nil {
			e.logger.Error("failed to rewrite deadline record", slog.Any("error", err))
		}
	}
	return e.target, true
}

// fire performs the terminal transition. The state flip under the lock is
// the single-fire latch against a concurrent Disarm; the executor has its
// own latch against re-entry.
func (e *Engine) fire() {
	e.mu.Lock()
	if e.state != StateArmed {
		e.mu.Unlock()
		return
	}
	e.state = StateFired
	e.mu.Unlock()

	e.notify(EventAboutToFire)

	if err := e.file.Clear(); err != nil {
		e.logger.Warn("failed to clear deadline record", slog.Any("error", err))
	}
	if err := e.guard.Release(); err != nil {
		e.logger.Warn("failed to release instance token", slog.Any("error", err))
	}

	e.notify(EventFired)
	close(e.fired)
	e.exec.Execute()
}
