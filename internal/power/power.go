// Package power performs the forced power-off and the startup privilege
// probe that must succeed before any timer is allowed to arm.
package power

import "errors"

// ErrPrivilege is returned by Probe when the process cannot request a
// system power-off. Arming without this privilege would produce a timer
// that cannot fire, so the daemon treats it as a fatal setup error.
var ErrPrivilege = errors.New("shutdown privilege unavailable")

// Executor performs the terminal forced power-off. Execute does not
// return control in production; implementations must still latch against
// re-entry (signal re-delivery, double fire).
type Executor interface {
	Execute()
}
