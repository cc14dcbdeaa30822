//go:build linux

package fileguard

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FS_IMMUTABLE_FL from linux/fs.h; x/sys/unix exposes the GETFLAGS and
// SETFLAGS ioctls but not the flag bits themselves.
const fsImmutableFL = 0x00000010

// Immutable implements Guard with the ext/xfs immutable inode flag
// (chattr +i). While set, the kernel rejects writes, renames, and
// unlinks for every user including root, until the flag is cleared
// by a process holding CAP_LINUX_IMMUTABLE. Reads are unaffected, so
// credential verification works without lifting the overlay.
type Immutable struct{}

// New returns the platform Guard.
func New() Guard { return Immutable{} }

// Protect sets the immutable flag on path.
func (Immutable) Protect(path string) error {
	return setImmutable(path, true)
}

// Unprotect clears the immutable flag on path.
func (Immutable) Unprotect(path string) error {
	err := setImmutable(path, false)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func setImmutable(path string, on bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	fd := int(f.Fd())
	flags, err := unix.IoctlGetInt(fd, unix.FS_IOC_GETFLAGS)
	if err != nil {
		return fmt.Errorf("get inode flags for %s: %w", path, err)
	}

	if on {
		flags |= fsImmutableFL
	} else {
		flags &^= fsImmutableFL
	}

	if err := unix.IoctlSetPointerInt(fd, unix.FS_IOC_SETFLAGS, flags); err != nil {
		return fmt.Errorf("set inode flags for %s: %w", path, err)
	}
	return nil
}
