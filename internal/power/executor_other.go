//go:build !linux

package power

import "log/slog"

// SystemExecutor is a stub on unsupported platforms; Probe always fails,
// so the daemon never arms here.
type SystemExecutor struct {
	logger *slog.Logger
}

// NewSystemExecutor creates the stub executor.
func NewSystemExecutor(logger *slog.Logger) *SystemExecutor {
	return &SystemExecutor{logger: logger}
}

// Execute logs and does nothing.
func (e *SystemExecutor) Execute() {
	e.logger.Error("forced power off requested on unsupported platform")
}

// Probe reports that the platform cannot power off.
func Probe() error {
	return ErrPrivilege
}
