// Package deadline persists the armed-deadline record. The record stores
// an absolute wall-clock target, never a relative countdown, so process
// restarts and system suspend cannot desynchronize it.
package deadline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	// ErrNoRecord is returned by Load when no deadline is persisted.
	ErrNoRecord = errors.New("no deadline record")

	// ErrCorrupt is returned by Load when the record exists but cannot
	// be trusted. Callers must fail closed and treat the system as
	// unarmed rather than guess a deadline.
	ErrCorrupt = errors.New("deadline record corrupt")
)

// Record is the persisted deadline state. Protected records whether a
// cancellation password was configured at arm time, so an absent
// credential file after a restart is detectable as tampering rather than
// mistaken for no-password mode.
type Record struct {
	Target    time.Time `json:"target_time"`
	Armed     bool      `json:"armed"`
	Protected bool      `json:"password_protected"`
}

// File reads and writes the deadline record at a fixed path.
type File struct {
	path string
}

// NewFile creates a File for the record at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Save persists rec atomically: the record is written to a temp file and
// renamed over the target, so a crash mid-write cannot corrupt an
// existing record.
func (f *File) Save(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode deadline record: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write deadline record: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace deadline record: %w", err)
	}
	return nil
}

// Load reads the persisted record. Returns ErrNoRecord if none exists and
// ErrCorrupt if the record cannot be decoded or carries no usable target.
func (f *File) Load() (Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNoRecord
		}
		return Record{}, fmt.Errorf("failed to read deadline record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.Target.IsZero() {
		return Record{}, fmt.Errorf("%w: zero target time", ErrCorrupt)
	}
	return rec, nil
}

// Clear removes the persisted record. Idempotent.
func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove deadline record: %w", err)
	}
	return nil
}
