package fileguard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestNoopAllowsEverything verifies the dev/test guard never blocks.
func TestNoopAllowsEverything(t *testing.T) {
	g := NewNoop()
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := g.Protect(path); err != nil {
		t.Errorf("Protect failed: %v", err)
	}
	if err := g.Unprotect(path); err != nil {
		t.Errorf("Unprotect failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Errorf("file should be removable under noop guard: %v", err)
	}
}

// TestWithUnprotectedReappliesOnError verifies the overlay is reapplied
// even when the wrapped function fails.
func TestWithUnprotectedReappliesOnError(t *testing.T) {
	g := &recordingGuard{}
	wantErr := errors.New("boom")

	err := WithUnprotected(g, "/some/file", func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped fn error, got %v", err)
	}
	if g.unprotects != 1 || g.protects != 1 {
		t.Errorf("expected 1 unprotect and 1 protect, got %d/%d", g.unprotects, g.protects)
	}
}

// TestWithUnprotectedStopsOnUnprotectFailure verifies fn never runs if the
// overlay cannot be lifted.
func TestWithUnprotectedStopsOnUnprotectFailure(t *testing.T) {
	g := &recordingGuard{unprotectErr: errors.New("denied")}
	ran := false

	err := WithUnprotected(g, "/some/file", func() error { ran = true; return nil })
	if err == nil {
		t.Fatalf("expected error")
	}
	if ran {
		t.Errorf("fn should not run when unprotect fails")
	}
}

type recordingGuard struct {
	protects     int
	unprotects   int
	unprotectErr error
}

func (g *recordingGuard) Protect(string) error { g.protects++; return nil }

func (g *recordingGuard) Unprotect(string) error {
	g.unprotects++
	return g.unprotectErr
}
