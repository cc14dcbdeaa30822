//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Evalutik/hardstop/internal/authgate"
	"github.com/Evalutik/hardstop/internal/credential"
	"github.com/Evalutik/hardstop/internal/deadline"
	"github.com/Evalutik/hardstop/internal/engine"
	"github.com/Evalutik/hardstop/internal/fileguard"
	"github.com/Evalutik/hardstop/internal/instance"
	"github.com/Evalutik/hardstop/internal/metrics"
	"github.com/Evalutik/hardstop/internal/server"
	"github.com/Evalutik/hardstop/internal/storage"
)

type recordingExecutor struct {
	fired chan struct{}
}

func (e *recordingExecutor) Execute() { close(e.fired) }

// env is one full in-process daemon: real engine, real credential store,
// real audit trail, control API on a real unix socket.
type env struct {
	dir    string
	socket string
	store  *credential.Store
	dfile  *deadline.File
	engine *engine.Engine
	exec   *recordingExecutor
	client *http.Client
	cancel context.CancelFunc
}

func setup(t *testing.T, wake time.Duration) *env {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	audit, err := storage.New(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	m, err := metrics.New()
	require.NoError(t, err)

	store := credential.NewStore(filepath.Join(dir, "cancel.cred"), fileguard.NewNoop())
	dfile := deadline.NewFile(filepath.Join(dir, "deadline.json"))
	exec := &recordingExecutor{fired: make(chan struct{})}

	notify := func(kind string) {
		_ = audit.Append(context.Background(), kind, "")
	}

	eng := engine.New(
		dfile,
		instance.New(filepath.Join(dir, "armed.lock")),
		exec,
		logger,
		engine.WithWakeInterval(wake),
		engine.WithNotify(notify),
	)
	gate := authgate.New(store, eng, logger)
	handler := server.NewHandler(eng, gate, store, dfile, audit, m, logger, "e2e")

	socket := filepath.Join(dir, "hardstop.sock")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(ctx, socket, handler.NewRouter(), logger)
	}()
	t.Cleanup(func() { cancel(); <-done })

	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		},
	}

	// Wait for the socket to appear.
	require.Eventually(t, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	return &env{
		dir: dir, socket: socket, store: store, dfile: dfile,
		engine: eng, exec: exec, client: client, cancel: cancel,
	}
}

func (e *env) call(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, "http://hardstop"+path, reader)
	require.NoError(t, err)
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	return resp.StatusCode, m
}

// TestE2E_CancelLifecycle walks the full arm / deny / cancel sequence
// over the unix-socket API.
func TestE2E_CancelLifecycle(t *testing.T) {
	e := setup(t, 50*time.Millisecond)

	code, body := e.call(t, "POST", "/v1/arm", map[string]any{
		"duration_minutes": 10,
		"password":         "open sesame",
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "armed", body["state"])

	// Wrong password is denied and leaves the timer armed.
	code, body = e.call(t, "POST", "/v1/cancel", map[string]any{"password": "open says me"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "denied", body["result"])

	code, body = e.call(t, "GET", "/v1/status", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "armed", body["state"])

	// Denial does not burn the credential: the correct password still works.
	code, body = e.call(t, "POST", "/v1/cancel", map[string]any{"password": "open sesame"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "cancelled", body["result"])

	// The credential file is gone; the deadline record is cleared.
	assert.False(t, e.store.Configured())
	_, err := e.dfile.Load()
	assert.ErrorIs(t, err, deadline.ErrNoRecord)

	// A second cancel has nothing to act on.
	code, body = e.call(t, "POST", "/v1/cancel", map[string]any{"password": "open sesame"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "nothing_to_cancel", body["result"])

	select {
	case <-e.exec.fired:
		t.Fatal("executor fired despite cancellation")
	default:
	}
}

// TestE2E_FiresAtDeadline verifies an un-cancelled timer reaches the
// executor and that late cancels are reported as such.
func TestE2E_FiresAtDeadline(t *testing.T) {
	e := setup(t, 10*time.Millisecond)

	code, _ := e.call(t, "POST", "/v1/arm", map[string]any{
		"duration_minutes": 0.002, // ~120ms
		"password":         "pw",
	})
	require.Equal(t, http.StatusOK, code)

	select {
	case <-e.exec.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("executor did not fire")
	}

	require.Eventually(t, func() bool {
		code, body := e.call(t, "POST", "/v1/cancel", map[string]any{"password": "pw"})
		return code == http.StatusGone && body["result"] == "already_fired"
	}, time.Second, 20*time.Millisecond)
}

// TestE2E_RestartResumesDeadline simulates a daemon restart: a second
// engine over the same state directory resumes the persisted absolute
// deadline instead of starting fresh.
func TestE2E_RestartResumesDeadline(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dfile := deadline.NewFile(filepath.Join(dir, "deadline.json"))

	// A crashed daemon leaves the armed record on disk; the flock dies
	// with the process. Reproduce that state directly.
	target := time.Now().Add(time.Hour)
	require.NoError(t, dfile.Save(deadline.Record{Target: target, Armed: true}))

	exec2 := &recordingExecutor{fired: make(chan struct{})}
	eng2 := engine.New(dfile, instance.New(filepath.Join(dir, "armed.lock")), exec2, logger,
		engine.WithWakeInterval(10*time.Millisecond))

	resumed, err := eng2.Resume()
	require.NoError(t, err)
	require.True(t, resumed)

	st := eng2.Status()
	assert.Equal(t, engine.StateArmed, st.State)
	assert.WithinDuration(t, target, st.Target, time.Second)

	require.NoError(t, eng2.Disarm())
}
