package deadline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestSaveLoadRoundTrip verifies a saved record loads back identically.
func TestSaveLoadRoundTrip(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "deadline.json"))
	target := time.Now().Add(30 * time.Minute).UTC().Truncate(time.Second)

	if err := f.Save(Record{Target: target, Armed: true, Protected: true}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec, err := f.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !rec.Target.Equal(target) {
		t.Errorf("target mismatch: saved %v, loaded %v", target, rec.Target)
	}
	if !rec.Armed {
		t.Errorf("armed flag lost")
	}
	if !rec.Protected {
		t.Errorf("protected flag lost")
	}
}

// TestLoadMissing verifies an absent record returns ErrNoRecord.
func TestLoadMissing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "deadline.json"))
	_, err := f.Load()
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

// TestLoadCorrupt verifies unreadable records fail closed with ErrCorrupt.
func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deadline.json")
	f := NewFile(path)

	if err := os.WriteFile(path, []byte("{{{"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := f.Load(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for bad JSON, got %v", err)
	}

	// Valid JSON without a target is equally untrustworthy.
	if err := os.WriteFile(path, []byte(`{"armed":true}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := f.Load(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for zero target, got %v", err)
	}
}

// TestSaveLeavesNoTempFile verifies the write-then-rename leaves only the
// final record behind.
func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deadline.json")
	f := NewFile(path)

	if err := f.Save(Record{Target: time.Now().Add(time.Hour), Armed: true}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "deadline.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected directory contents: %v", names)
	}
}

// TestClearIsIdempotent verifies Clear on present and absent records.
func TestClearIsIdempotent(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "deadline.json"))
	if err := f.Clear(); err != nil {
		t.Errorf("Clear of absent record should succeed, got %v", err)
	}

	if err := f.Save(Record{Target: time.Now().Add(time.Hour), Armed: true}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := f.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := f.Load(); !errors.Is(err, ErrNoRecord) {
		t.Errorf("record should be gone after Clear, got %v", err)
	}
}
