// Package storage persists the audit trail of timer lifecycle events in
// SQLite. The trail is display/diagnostic data for the presentation
// layer; nothing in the tamper-resistance core depends on it.
package storage

import (
	"context"
	"time"
)

// Event is one recorded lifecycle transition.
type Event struct {
	ID        int64
	Kind      string // armed, resumed, cancel_denied, cancelled, about_to_fire, fired
	Detail    string
	CreatedAt time.Time
}

// AuditLog records and lists lifecycle events.
type AuditLog interface {
	Append(ctx context.Context, kind, detail string) error
	List(ctx context.Context, limit int) ([]*Event, error)
	Purge(ctx context.Context) error
	Close() error
}
