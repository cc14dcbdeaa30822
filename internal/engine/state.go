package engine

import "time"

// State is the engine lifecycle state. Armed transitions to exactly one
// of Cancelled or Fired; both release the single-instance token.
type State int

const (
	StateUnarmed State = iota
	StateArmed
	StateCancelled
	StateFired
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateUnarmed:
		return "unarmed"
	case StateArmed:
		return "armed"
	case StateCancelled:
		return "cancelled"
	case StateFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot for the presentation layer.
type Status struct {
	State     State
	Target    time.Time     // zero unless armed
	Remaining time.Duration // clamped at zero
}

// Lifecycle event kinds emitted through the notify hook.
const (
	EventArmed       = "armed"
	EventResumed     = "resumed"
	EventCancelled   = "cancelled"
	EventAboutToFire = "about_to_fire"
	EventFired       = "fired"
)
