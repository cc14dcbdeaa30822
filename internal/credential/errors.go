package credential

import "errors"

var (
	// ErrProtection is returned when the deny-write/deny-delete overlay
	// could not be applied to the credential file. This is a setup
	// failure: the caller must refuse to arm rather than continue with
	// weakened protection.
	ErrProtection = errors.New("could not protect credential file")
)
