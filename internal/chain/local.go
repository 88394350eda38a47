package chain

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// LocalProvider synthesizes execution context without a chain node. Each
// call advances a synthetic block: the height increments, the parent hash
// chains from the previous one, and the block randomness comes from
// crypto/rand. It backs standalone deployments and local development.
type LocalProvider struct {
	mu      sync.Mutex
	chainID uint256.Int
	number  uint64
	parent  common.Hash
	clock   func() time.Time
}

// NewLocalProvider creates a provider for the given chain identifier.
func NewLocalProvider(chainID uint64) *LocalProvider {
	return &LocalProvider{
		chainID: *uint256.NewInt(chainID),
		clock:   time.Now,
	}
}

// CallContext synthesizes the next block context.
func (p *LocalProvider) CallContext(_ context.Context, caller common.Address) (Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var random common.Hash
	if _, err := crand.Read(random[:]); err != nil {
		return Context{}, fmt.Errorf("read block randomness: %w", err)
	}

	p.number++
	parent := p.parent
	p.parent = crypto.Keccak256Hash(parent[:], random[:])

	return Context{
		Timestamp:   uint64(p.clock().Unix()),
		BlockRandom: random,
		BlockNumber: p.number,
		ParentHash:  parent,
		ChainID:     p.chainID,
		Caller:      caller,
		Origin:      caller,
	}, nil
}
