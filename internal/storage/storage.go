// Package storage defines the persistence interfaces of the entropy engine
// and the records they exchange.
package storage

import (
	"context"
	"time"

	apperrors "github.com/quillhash/entropy-engine/internal/platform/errors"
)

// ErrNotFound indicates a requested persistence record is missing.
// On first boot the engine uses this to trigger construction seeding.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// AuditEvent captures an observability event emitted by a draw. Events are
// appended after commit and never block or fail the draw itself.
type AuditEvent struct {
	Timestamp      time.Time
	EventName      string
	Severity       string
	Caller         string
	Nonce          string
	RequestID      string
	Attributes     map[string]any
	AttributesJSON []byte
}

// AuditStore persists observability events for audits and incident analysis.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, evt AuditEvent) error
}
