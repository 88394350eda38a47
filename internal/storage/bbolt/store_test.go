package bbolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"

	"github.com/quillhash/entropy-engine/internal/engine"
	"github.com/quillhash/entropy-engine/internal/storage"
)

func TestStoreSaveLoadEntropyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine-state.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	state := engine.State{
		Nonce: *uint256.NewInt(42),
		Pool:  *uint256.MustFromHex("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"),
	}
	if err := store.SaveEntropyState(context.Background(), state); err != nil {
		t.Fatalf("save state: %v", err)
	}

	loaded, err := store.LoadEntropyState(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !loaded.Nonce.Eq(&state.Nonce) {
		t.Fatalf("expected nonce %s, got %s", state.Nonce.Dec(), loaded.Nonce.Dec())
	}
	if !loaded.Pool.Eq(&state.Pool) {
		t.Fatalf("expected pool %s, got %s", state.Pool.Hex(), loaded.Pool.Hex())
	}
}

func TestStoreLoadEntropyStateNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine-state.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if _, err := store.LoadEntropyState(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreSaveOverwritesPreviousState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine-state.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	first := engine.State{Nonce: *uint256.NewInt(1), Pool: *uint256.NewInt(100)}
	second := engine.State{Nonce: *uint256.NewInt(2), Pool: *uint256.NewInt(200)}
	if err := store.SaveEntropyState(context.Background(), first); err != nil {
		t.Fatalf("save first state: %v", err)
	}
	if err := store.SaveEntropyState(context.Background(), second); err != nil {
		t.Fatalf("save second state: %v", err)
	}

	loaded, err := store.LoadEntropyState(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if loaded.Nonce.Uint64() != 2 {
		t.Fatalf("expected latest nonce 2, got %s", loaded.Nonce.Dec())
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine-state.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	state := engine.State{Nonce: *uint256.NewInt(7), Pool: *uint256.NewInt(9000)}
	if err := store.SaveEntropyState(context.Background(), state); err != nil {
		t.Fatalf("save state: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.LoadEntropyState(context.Background())
	if err != nil {
		t.Fatalf("load state after reopen: %v", err)
	}
	if loaded.Nonce.Uint64() != 7 || loaded.Pool.Uint64() != 9000 {
		t.Fatalf("unexpected state after reopen: nonce %s pool %s", loaded.Nonce.Dec(), loaded.Pool.Dec())
	}
}

func TestStoreOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
