package main

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

// newFakeDaemon serves handler on a unix socket and returns a client
// dialed at it.
func newFakeDaemon(t *testing.T, handler http.Handler) *client {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "hardstop.sock")
	lis, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("failed to listen on unix socket: %v", err)
	}

	srv := httptest.NewUnstartedServer(handler)
	srv.Listener = lis
	srv.Start()
	t.Cleanup(srv.Close)

	return newClient(socket)
}

func jsonHandler(status int, body any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck
	})
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"explode"}, &out, &errOut); code != exitError {
		t.Errorf("expected exit %d, got %d", exitError, code)
	}
	if !strings.Contains(errOut.String(), "unknown command") {
		t.Errorf("expected usage hint, got %q", errOut.String())
	}
}

func TestRunHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"help"}, &out, &errOut); code != exitOK {
		t.Errorf("expected exit %d, got %d", exitOK, code)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("expected usage text, got %q", out.String())
	}
}

func TestCmdStatusArmed(t *testing.T) {
	c := newFakeDaemon(t, jsonHandler(http.StatusOK, map[string]any{
		"state":             "armed",
		"target":            "2026-01-02T22:00:00Z",
		"remaining_seconds": 5400.0,
	}))

	var out bytes.Buffer
	if err := cmdStatus(c, &out); err != nil {
		t.Fatalf("cmdStatus failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "armed until 2026-01-02T22:00:00Z") || !strings.Contains(got, "1h30m0s") {
		t.Errorf("unexpected status output %q", got)
	}
}

func TestCmdCancelDenied(t *testing.T) {
	c := newFakeDaemon(t, jsonHandler(http.StatusForbidden, map[string]any{"result": "denied"}))

	var out bytes.Buffer
	if err := cmdCancel(c, []string{"--password", "wrong"}, &out); err != errDenied {
		t.Errorf("expected errDenied, got %v", err)
	}
}

func TestCmdCancelNothingArmed(t *testing.T) {
	c := newFakeDaemon(t, jsonHandler(http.StatusConflict, map[string]any{"result": "nothing_to_cancel"}))

	var out bytes.Buffer
	err := cmdCancel(c, []string{"--password", "x"}, &out)
	if err == nil || !strings.Contains(err.Error(), "nothing to cancel") {
		t.Errorf("expected nothing-to-cancel error, got %v", err)
	}
}

func TestCmdArmRejectsAmbiguousDeadline(t *testing.T) {
	c := newFakeDaemon(t, jsonHandler(http.StatusOK, map[string]any{}))

	var out bytes.Buffer
	err := cmdArm(c, []string{"--for", "90m", "--at", "2026-01-02T22:00:00Z", "--no-password"}, &out)
	if err == nil || !strings.Contains(err.Error(), "exactly one") {
		t.Errorf("expected flag validation error, got %v", err)
	}

	err = cmdArm(c, []string{"--no-password"}, &out)
	if err == nil {
		t.Error("expected error when no deadline given")
	}
}

func TestCmdEvents(t *testing.T) {
	c := newFakeDaemon(t, jsonHandler(http.StatusOK, map[string]any{
		"events": []map[string]any{
			{"kind": "armed", "detail": "", "created_at": "2026-01-02T20:00:00Z"},
			{"kind": "cancel_denied", "detail": "", "created_at": "2026-01-02T20:05:00Z"},
		},
	}))

	var out bytes.Buffer
	if err := cmdEvents(c, []string{"--limit", "5"}, &out); err != nil {
		t.Fatalf("cmdEvents failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "armed") || !strings.Contains(got, "cancel_denied") {
		t.Errorf("unexpected events output %q", got)
	}
}

func TestParseTarget(t *testing.T) {
	if got, err := parseTarget("2026-01-02T22:00:00Z"); err != nil || got != "2026-01-02T22:00:00Z" {
		t.Errorf("parseTarget RFC3339 = %q, %v", got, err)
	}
	if got, err := parseTarget("2026-01-02T22:00:00"); err != nil || got == "" {
		t.Errorf("parseTarget local = %q, %v", got, err)
	}
	if _, err := parseTarget("tomorrow"); err == nil {
		t.Error("expected error for unparseable target")
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := map[float64]string{
		0:    "0s",
		90:   "1m30s",
		5400: "1h30m0s",
	}
	for in, want := range cases {
		if got := formatRemaining(in); got != want {
			t.Errorf("formatRemaining(%v) = %q, want %q", in, got, want)
		}
	}
}
