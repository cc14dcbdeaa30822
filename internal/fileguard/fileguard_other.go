//go:build !linux

package fileguard

// New returns a Guard that refuses to protect on unsupported platforms.
// The daemon treats the resulting ErrUnsupported as a setup failure.
func New() Guard { return unsupported{} }

type unsupported struct{}

func (unsupported) Protect(string) error   { return ErrUnsupported }
func (unsupported) Unprotect(string) error { return nil }
