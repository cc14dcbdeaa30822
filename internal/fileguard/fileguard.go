// Package fileguard implements the deny-write/deny-delete overlay applied
// to protected state files while a timer is armed. The overlay is a
// capability: the core never assumes a specific permission model beyond
// "write/delete can be toggled by the owning privileged process".
package fileguard

import "errors"

// ErrUnsupported is returned when the platform cannot apply the overlay.
// Callers must treat this as a setup failure, not a soft error: arming
// with weakened protection defeats the tamper-resistance guarantee.
var ErrUnsupported = errors.New("file protection not supported on this platform")

// Guard toggles the deny-write/deny-delete overlay on a single file.
// Reading a protected file stays possible; only mutation and removal
// are blocked.
type Guard interface {
	// Protect applies the overlay. The file must exist.
	Protect(path string) error
	// Unprotect lifts the overlay. Safe to call on an unprotected file.
	Unprotect(path string) error
}

// WithUnprotected lifts the overlay around fn and reapplies it afterwards,
// including on error paths, so a failure inside fn cannot leave the file
// permanently writable while armed.
func WithUnprotected(g Guard, path string, fn func() error) error {
	if err := g.Unprotect(path); err != nil {
		return err
	}
	fnErr := fn()
	if err := g.Protect(path); err != nil {
		if fnErr != nil {
			return errors.Join(fnErr, err)
		}
		return err
	}
	return fnErr
}

// Noop is a Guard that does nothing. Used in tests and when
// HARDSTOP_DISABLE_PROTECTION is set for development.
type Noop struct{}

// NewNoop returns a Guard without any protection semantics.
func NewNoop() Noop { return Noop{} }

// Protect implements Guard.
func (Noop) Protect(string) error { return nil }

// Unprotect implements Guard.
func (Noop) Unprotect(string) error { return nil }
