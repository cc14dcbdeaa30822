package engine

import "errors"

var (
	// ErrPastDeadline is returned by Arm when the target is not in the future.
	ErrPastDeadline = errors.New("target time must be in the future")

	// ErrNotArmed is returned by Disarm when there is nothing to cancel.
	ErrNotArmed = errors.New("nothing to cancel")

	// ErrAlreadyFired is returned once the shutdown has fired; it is
	// deliberately distinct from an authorization denial.
	ErrAlreadyFired = errors.New("shutdown already fired")
)
