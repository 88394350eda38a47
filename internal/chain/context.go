// Package chain models the execution context the hosting chain supplies to
// the entropy engine: per-call block metadata, caller identity, and account
// state. The engine only ever reads these values as hash-mixing input.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Context is a read-only snapshot of per-call execution metadata. It is
// fetched fresh for every call and never persisted verbatim.
type Context struct {
	Timestamp   uint64
	BlockRandom common.Hash // per-block randomness beacon (prevrandao)
	BlockNumber uint64
	ParentHash  common.Hash
	ChainID     uint256.Int
	Caller      common.Address
	Origin      common.Address
	GasPrice    uint256.Int
	Balance     uint256.Int // balance of the engine account
}

// Provider supplies a fresh execution context for each engine call.
type Provider interface {
	CallContext(ctx context.Context, caller common.Address) (Context, error)
}

// FixedProvider returns a fixed context snapshot on every call, with only
// the caller identity substituted. It lets tests and replay tooling run the
// engine against a deterministic environment.
type FixedProvider struct {
	Snapshot Context
}

// CallContext returns the fixed snapshot with the caller identity applied.
func (p *FixedProvider) CallContext(_ context.Context, caller common.Address) (Context, error) {
	snapshot := p.Snapshot
	snapshot.Caller = caller
	if snapshot.Origin == (common.Address{}) {
		snapshot.Origin = caller
	}
	return snapshot, nil
}
