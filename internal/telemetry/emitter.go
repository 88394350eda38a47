// Package telemetry records the engine's observability events. Emission is
// fire-and-forget: a draw never fails because its events could not be
// recorded.
package telemetry

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/quillhash/entropy-engine/internal/engine"
	"github.com/quillhash/entropy-engine/internal/storage"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo Severity = "INFO"
	SeverityWarn Severity = "WARN"
)

// Emitter records observability events to an audit store.
type Emitter struct {
	store storage.AuditStore
	clock func() time.Time
}

// NewEmitter creates a new telemetry emitter.
func NewEmitter(store storage.AuditStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records a telemetry event. It is a no-op when the store is nil.
func (e *Emitter) Emit(ctx context.Context, evt storage.AuditEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		if e.clock == nil {
			evt.Timestamp = time.Now().UTC()
		} else {
			evt.Timestamp = e.clock().UTC()
		}
	}
	return e.store.AppendAuditEvent(ctx, evt)
}

// EmitEngineEvents records the events produced by one engine call. Failures
// are logged and swallowed so the already-committed draw result stands.
func (e *Emitter) EmitEngineEvents(ctx context.Context, requestID string, events []engine.Event) {
	for _, evt := range events {
		record, ok := toAuditEvent(evt)
		if !ok {
			continue
		}
		record.RequestID = requestID
		if err := e.Emit(ctx, record); err != nil {
			log.Printf("emit %s event: %v", record.EventName, err)
		}
	}
}

func toAuditEvent(evt engine.Event) (storage.AuditEvent, bool) {
	switch typed := evt.(type) {
	case engine.RandomGenerated:
		return storage.AuditEvent{
			EventName: typed.EventName(),
			Severity:  string(SeverityInfo),
			Caller:    typed.Caller.Hex(),
			Nonce:     typed.Nonce.Dec(),
			Attributes: map[string]any{
				"value": typed.Value.Hex(),
			},
		}, true
	case engine.BatchRandomGenerated:
		values := make([]string, len(typed.Values))
		for i := range typed.Values {
			values[i] = typed.Values[i].Hex()
		}
		return storage.AuditEvent{
			EventName: typed.EventName(),
			Severity:  string(SeverityInfo),
			Caller:    typed.Caller.Hex(),
			Nonce:     typed.StartNonce.Dec(),
			Attributes: map[string]any{
				"count":  len(typed.Values),
				"values": values,
			},
		}, true
	case engine.WeakCallerData:
		return storage.AuditEvent{
			EventName: typed.EventName(),
			Severity:  string(SeverityWarn),
			Caller:    typed.Caller.Hex(),
			Attributes: map[string]any{
				"payload_length": strconv.Itoa(typed.PayloadLength),
			},
		}, true
	default:
		return storage.AuditEvent{}, false
	}
}
