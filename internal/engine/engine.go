// Package engine implements the entropy-evolution state machine behind the
// randomness API: a monotonic nonce and a 256-bit entropy pool, seeded from
// the first execution context snapshot, mixed with per-call context and
// caller-supplied bytes through Keccak-256, and evolved after every call so
// that no two calls ever repeat an output.
package engine

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/quillhash/entropy-engine/internal/chain"
	apperrors "github.com/quillhash/entropy-engine/internal/platform/errors"
)

// StateStore persists the entropy state across process restarts. Load must
// return a CodeNotFound domain error when no state has been stored yet.
type StateStore interface {
	LoadEntropyState(ctx context.Context) (State, error)
	SaveEntropyState(ctx context.Context, state State) error
}

// Engine owns the entropy state exclusively and exposes the draw
// operations. All calls are serialized: state is snapshotted at entry,
// outputs are computed against the snapshot, and the state is replaced in
// one step only after every validation has passed. A failed call leaves the
// state byte-for-byte unchanged.
type Engine struct {
	mu       sync.Mutex // single-writer discipline; call ordering is host-determined
	state    State
	provider chain.Provider
	store    StateStore
}

// New creates an engine backed by the given context provider. When the
// store holds a previous state the engine resumes from it; otherwise the
// pool is seeded from a fresh context snapshot and the deployer identity,
// and the nonce starts at zero. A nil store keeps state in memory only.
func New(ctx context.Context, provider chain.Provider, store StateStore, deployer common.Address) (*Engine, error) {
	if provider == nil {
		return nil, apperrors.New(apperrors.CodeContextUnavailable, "context provider is required")
	}

	e := &Engine{
		provider: provider,
		store:    store,
	}

	if store != nil {
		state, err := store.LoadEntropyState(ctx)
		if err == nil {
			e.state = state
			return e, nil
		}
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, err
		}
	}

	cc, err := provider.CallContext(ctx, deployer)
	if err != nil {
		return nil, err
	}
	e.state.Pool = seedPool(cc, deployer)

	if store != nil {
		if err := store.SaveEntropyState(ctx, e.state); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Draw produces one 256-bit value for the caller. The returned nonce is the
// counter value this draw consumed.
func (e *Engine) Draw(ctx context.Context, caller common.Address, payload []byte) (DrawResult, []Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draw(ctx, caller, payload)
}

// DrawInRange produces a value in [min, max] inclusive. It delegates to a
// single draw and reduces the result by modulo, keeping the documented
// wrap-around bias of at most one part in 2^256/(max-min+1).
func (e *Engine) DrawInRange(ctx context.Context, caller common.Address, payload []byte, min, max *uint256.Int) (DrawResult, []Event, error) {
	if min == nil || max == nil || max.Cmp(min) <= 0 {
		if min == nil {
			min = new(uint256.Int)
		}
		if max == nil {
			max = new(uint256.Int)
		}
		return DrawResult{}, nil, errRangeInvalid(min, max)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result, events, err := e.draw(ctx, caller, payload)
	if err != nil {
		return DrawResult{}, nil, err
	}

	span := new(uint256.Int).Sub(max, min)
	span.AddUint64(span, 1)
	if span.IsZero() {
		// Full-width range: the reduction is the identity.
		return result, events, nil
	}

	reduced := new(uint256.Int).Mod(&result.Value, span)
	reduced.Add(reduced, min)
	result.Value = *reduced
	return result, events, nil
}

// DrawMany produces count values in one call. All call-constant metadata is
// hashed once into a shared context hash; each element then mixes in its
// own nonce, running entropy value, and batch index so no two elements of
// the same batch collide. State commits once, after the whole batch.
func (e *Engine) DrawMany(ctx context.Context, caller common.Address, payload []byte, count uint64) (BatchResult, []Event, error) {
	if count == 0 || count > MaxBatchCount {
		return BatchResult{}, nil, errCountInvalid(count)
	}
	if len(payload) > MaxCallerDataSize {
		return BatchResult{}, nil, errCallerDataTooLarge(len(payload))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cc, err := e.provider.CallContext(ctx, caller)
	if err != nil {
		return BatchResult{}, nil, err
	}

	var events []Event
	if len(payload) < WeakCallerDataSize {
		events = append(events, WeakCallerData{Caller: cc.Caller, PayloadLength: len(payload)})
	}

	n0 := e.state.Nonce
	pool := e.state.Pool
	shared := mixShared(cc, payload)

	values := make([]uint256.Int, count)
	for i := uint64(0); i < count; i++ {
		nonce := new(uint256.Int).AddUint64(&n0, i)
		value := keccakWords(shared[:], wordOf(nonce), wordOf(&pool), uintWord(i))
		values[i] = value
		pool = evolvePool(pool, value, cc.Timestamp)
	}

	next := State{Pool: pool}
	next.Nonce.AddUint64(&n0, count)
	if err := e.commit(ctx, next); err != nil {
		return BatchResult{}, nil, err
	}

	events = append(events, BatchRandomGenerated{
		Caller:     cc.Caller,
		StartNonce: n0,
		Values:     values,
	})
	return BatchResult{Values: values, StartNonce: n0}, events, nil
}

// CurrentNonce returns the current call counter. Pure read; cannot fail.
func (e *Engine) CurrentNonce() uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Nonce
}

// draw runs the single-draw state machine. Callers must hold the lock.
func (e *Engine) draw(ctx context.Context, caller common.Address, payload []byte) (DrawResult, []Event, error) {
	if len(payload) > MaxCallerDataSize {
		return DrawResult{}, nil, errCallerDataTooLarge(len(payload))
	}

	cc, err := e.provider.CallContext(ctx, caller)
	if err != nil {
		return DrawResult{}, nil, err
	}

	var events []Event
	if len(payload) < WeakCallerDataSize {
		events = append(events, WeakCallerData{Caller: cc.Caller, PayloadLength: len(payload)})
	}

	n0 := e.state.Nonce
	p0 := e.state.Pool
	value := mixSingle(cc, payload, n0, p0)

	next := State{Pool: evolvePool(p0, value, cc.Timestamp)}
	next.Nonce.AddUint64(&n0, 1)
	if err := e.commit(ctx, next); err != nil {
		return DrawResult{}, nil, err
	}

	events = append(events, RandomGenerated{Caller: cc.Caller, Nonce: n0, Value: value})
	return DrawResult{Value: value, Nonce: n0}, events, nil
}

// commit persists the next state and only then replaces the in-memory
// state, so a storage failure cannot leave the two views disagreeing.
func (e *Engine) commit(ctx context.Context, next State) error {
	if e.store != nil {
		if err := e.store.SaveEntropyState(ctx, next); err != nil {
			return err
		}
	}
	e.state = next
	return nil
}

// seedPool derives the initial entropy pool from the construction-time
// context snapshot and the deployer identity.
func seedPool(cc chain.Context, deployer common.Address) uint256.Int {
	return keccakWords(
		uintWord(cc.Timestamp),
		cc.BlockRandom[:],
		uintWord(cc.BlockNumber),
		wordOf(&cc.ChainID),
		addressWord(deployer),
	)
}

// mixSingle computes one output value. The trailing zero word is the batch
// index slot, so the layout matches element zero of a batch.
func mixSingle(cc chain.Context, payload []byte, n0, p0 uint256.Int) uint256.Int {
	return keccakWords(
		uintWord(cc.Timestamp),
		cc.BlockRandom[:],
		uintWord(cc.BlockNumber),
		cc.ParentHash[:],
		addressWord(cc.Caller),
		addressWord(cc.Origin),
		wordOf(&cc.GasPrice),
		payload,
		wordOf(&n0),
		wordOf(&p0),
		wordOf(&cc.Balance),
		uintWord(0),
	)
}

// mixShared hashes everything constant across one batch call, amortizing
// the per-call metadata over every element.
func mixShared(cc chain.Context, payload []byte) common.Hash {
	return crypto.Keccak256Hash(
		uintWord(cc.Timestamp),
		cc.BlockRandom[:],
		uintWord(cc.BlockNumber),
		cc.ParentHash[:],
		addressWord(cc.Caller),
		addressWord(cc.Origin),
		wordOf(&cc.GasPrice),
		payload,
		wordOf(&cc.Balance),
	)
}

// evolvePool folds the last output and the call timestamp into the pool.
// The next pool depends on nothing else.
func evolvePool(pool, value uint256.Int, timestamp uint64) uint256.Int {
	return keccakWords(wordOf(&pool), wordOf(&value), uintWord(timestamp))
}

func keccakWords(chunks ...[]byte) uint256.Int {
	var out uint256.Int
	out.SetBytes(crypto.Keccak256(chunks...))
	return out
}

func wordOf(v *uint256.Int) []byte {
	word := v.Bytes32()
	return word[:]
}

func uintWord(v uint64) []byte {
	return wordOf(uint256.NewInt(v))
}

func addressWord(addr common.Address) []byte {
	return common.LeftPadBytes(addr.Bytes(), 32)
}
