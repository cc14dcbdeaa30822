//go:build linux

package power

import (
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"golang.org/x/sys/unix"
)

// SystemExecutor forces an immediate power-off via reboot(2), falling
// back to systemd if the syscall is rejected.
type SystemExecutor struct {
	logger *slog.Logger
	once   sync.Once

	// overridable in tests; production uses the real syscall chain
	rebootFn   func() error
	fallbackFn func() error
}

// NewSystemExecutor creates the production executor.
func NewSystemExecutor(logger *slog.Logger) *SystemExecutor {
	e := &SystemExecutor{logger: logger}
	e.rebootFn = func() error {
		unix.Sync()
		return unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
	}
	e.fallbackFn = func() error {
		if err := exec.Command("systemctl", "poweroff", "-i", "--force").Run(); err == nil {
			return nil
		}
		return exec.Command("shutdown", "-h", "now").Run()
	}
	return e
}

// Execute powers the machine off. The sync.Once latch makes a second
// call (signal re-delivery, double fire) a no-op.
func (e *SystemExecutor) Execute() {
	e.once.Do(func() {
		e.logger.Error("deadline reached, forcing power off")
		if err := e.rebootFn(); err != nil {
			e.logger.Error("reboot syscall failed, falling back", slog.Any("error", err))
			if err := e.fallbackFn(); err != nil {
				e.logger.Error("fallback shutdown failed", slog.Any("error", err))
			}
		}
	})
}

// Probe verifies at startup that the process may request a power-off:
// either running as root or holding CAP_SYS_BOOT. Failing here aborts
// the daemon before any timer exists, instead of at fire time.
func Probe() error {
	if os.Geteuid() == 0 {
		return nil
	}

	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	var data [2]unix.CapUserData
	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return ErrPrivilege
	}
	if data[0].Effective&(1<<unix.CAP_SYS_BOOT) != 0 {
		return nil
	}
	return ErrPrivilege
}
