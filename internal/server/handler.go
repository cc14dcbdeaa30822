// Package server exposes the daemon's control API over a local unix
// socket: arm, cancel, status, events, uninstall. The API is the
// presentation layer's only door into the core; nothing served here is
// trusted to enforce the shutdown itself.
package server

import (
	"log/slog"
	"sync"

	"github.com/Evalutik/hardstop/internal/authgate"
	"github.com/Evalutik/hardstop/internal/credential"
	"github.com/Evalutik/hardstop/internal/deadline"
	"github.com/Evalutik/hardstop/internal/engine"
	"github.com/Evalutik/hardstop/internal/metrics"
	"github.com/Evalutik/hardstop/internal/storage"
)

// Handler wires the core components into HTTP handlers.
type Handler struct {
	// armMu serializes arm requests: seeding the credential and arming
	// the engine must be one atomic step from the API's point of view,
	// or a losing concurrent arm could clobber the winner's credential.
	armMu   sync.Mutex
	engine  *engine.Engine
	gate    *authgate.Gate
	store   *credential.Store
	dfile   *deadline.File
	audit   storage.AuditLog
	metrics *metrics.Metrics
	logger  *slog.Logger
	version string
}

// NewHandler constructs the control API handler.
func NewHandler(
	eng *engine.Engine,
	gate *authgate.Gate,
	store *credential.Store,
	dfile *deadline.File,
	audit storage.AuditLog,
	m *metrics.Metrics,
	logger *slog.Logger,
	version string,
) *Handler {
	return &Handler{
		engine:  eng,
		gate:    gate,
		store:   store,
		dfile:   dfile,
		audit:   audit,
		metrics: m,
		logger:  logger,
		version: version,
	}
}
