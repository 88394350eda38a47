// Package bbolt provides a BoltDB-backed entropy state store.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/quillhash/entropy-engine/internal/engine"
	"github.com/quillhash/entropy-engine/internal/storage"
)

const (
	stateBucket = "entropy_state"
	stateKey    = "current"
)

// Store persists the engine's entropy state snapshot in BoltDB.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveEntropyState replaces the stored state snapshot in one write.
func (s *Store) SaveEntropyState(ctx context.Context, state engine.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	payload, err := json.Marshal(&state)
	if err != nil {
		return fmt.Errorf("marshal entropy state: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucket))
		if bucket == nil {
			return fmt.Errorf("entropy state bucket is missing")
		}
		return bucket.Put([]byte(stateKey), payload)
	})
}

// LoadEntropyState fetches the stored state snapshot. It returns
// storage.ErrNotFound when no state has been stored yet.
func (s *Store) LoadEntropyState(ctx context.Context) (engine.State, error) {
	if err := ctx.Err(); err != nil {
		return engine.State{}, err
	}
	if s == nil || s.db == nil {
		return engine.State{}, fmt.Errorf("storage is not configured")
	}

	var state engine.State
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucket))
		if bucket == nil {
			return fmt.Errorf("entropy state bucket is missing")
		}
		payload := bucket.Get([]byte(stateKey))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &state); err != nil {
			return fmt.Errorf("unmarshal entropy state: %w", err)
		}
		return nil
	})
	if err != nil {
		return engine.State{}, err
	}
	return state, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stateBucket))
		if err != nil {
			return fmt.Errorf("create entropy state bucket: %w", err)
		}
		return nil
	})
}
