// Package instance enforces the one-armed-timer-system-wide invariant
// with an exclusive flock on a well-known lock file. The lock is
// kernel-visible: any process can probe it, and it disappears only when
// explicitly released or when the holding process exits.
package instance

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrAlreadyArmed is returned when the system-wide token is held by
// another process, i.e. a timer is already armed.
var ErrAlreadyArmed = errors.New("another timer is already armed")

// Guard owns the system-wide armed-timer token.
type Guard struct {
	path string
	f    *os.File
}

// New creates a Guard for the lock file at path. No lock is taken yet.
func New(path string) *Guard {
	return &Guard{path: path}
}

// Acquire claims the token. The flock(2) attempt is atomic at the OS
// level: there is no window where two callers both believe they hold it.
// Returns ErrAlreadyArmed if any other process holds the lock.
func (g *Guard) Acquire() error {
	if g.f != nil {
		return ErrAlreadyArmed
	}

	f, err := os.OpenFile(g.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close() //nolint:errcheck
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrAlreadyArmed
		}
		return fmt.Errorf("failed to lock %s: %w", g.path, err)
	}

	// Holder metadata is informational only; the flock is the invariant.
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "pid=%d armed_at=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))

	g.f = f
	return nil
}

// Held reports whether this Guard currently owns the token.
func (g *Guard) Held() bool {
	return g.f != nil
}

// Release relinquishes the token. Called only on normal disarm or
// terminal shutdown; a crashed process drops the flock implicitly, which
// is what makes a crashed-but-intended-active timer recoverable on
// restart. Idempotent.
func (g *Guard) Release() error {
	if g.f == nil {
		return nil
	}
	f := g.f
	g.f = nil

	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		_ = f.Close() //nolint:errcheck
		return fmt.Errorf("failed to unlock %s: %w", g.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	_ = os.Remove(g.path) //nolint:errcheck
	return nil
}
