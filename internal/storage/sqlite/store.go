// Package sqlite provides a SQLite-backed audit event journal.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quillhash/entropy-engine/internal/platform/storage/sqlitemigrate"
	"github.com/quillhash/entropy-engine/internal/storage"
	"github.com/quillhash/entropy-engine/internal/storage/sqlite/migrations"
)

// Store persists audit events in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite audit store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.AuditFS, "audit"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendAuditEvent records one observability event.
func (s *Store) AppendAuditEvent(ctx context.Context, evt storage.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	if strings.TrimSpace(evt.Severity) == "" {
		return fmt.Errorf("severity is required")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(evt.AttributesJSON) == 0 && len(evt.Attributes) > 0 {
		payload, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("marshal audit attributes: %w", err)
		}
		evt.AttributesJSON = payload
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO audit_events (timestamp, event_name, severity, caller, nonce, request_id, attributes_json)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		toMillis(evt.Timestamp),
		evt.EventName,
		evt.Severity,
		toNullString(evt.Caller),
		toNullString(evt.Nonce),
		toNullString(evt.RequestID),
		evt.AttributesJSON,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// CountAuditEvents returns how many events with the given name are stored.
// Operational dashboards and tests use it; an empty name counts everything.
func (s *Store) CountAuditEvents(ctx context.Context, eventName string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int64
	var err error
	if strings.TrimSpace(eventName) == "" {
		err = s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&count)
	} else {
		err = s.sqlDB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM audit_events WHERE event_name = ?`, eventName).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}

func toNullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
