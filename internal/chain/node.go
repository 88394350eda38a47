package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	apperrors "github.com/quillhash/entropy-engine/internal/platform/errors"
)

// NodeProvider reads execution context from a chain node over JSON-RPC.
type NodeProvider struct {
	client  *ethclient.Client
	account common.Address
	chainID uint256.Int
}

// NewNodeProvider dials the node at url and resolves the chain identifier
// once. The account is the engine identity whose balance is mixed per call.
func NewNodeProvider(ctx context.Context, url string, account common.Address) (*NodeProvider, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial node %s: %w", url, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve chain id: %w", err)
	}
	id, overflow := uint256.FromBig(chainID)
	if overflow {
		client.Close()
		return nil, fmt.Errorf("chain id %s overflows 256 bits", chainID)
	}

	return &NodeProvider{client: client, account: account, chainID: *id}, nil
}

// CallContext fetches a fresh context snapshot from the node head.
func (p *NodeProvider) CallContext(ctx context.Context, caller common.Address) (Context, error) {
	header, err := p.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return Context{}, apperrors.Wrap(apperrors.CodeContextUnavailable, "fetch head header", err)
	}

	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return Context{}, apperrors.Wrap(apperrors.CodeContextUnavailable, "fetch gas price", err)
	}

	balance, err := p.client.BalanceAt(ctx, p.account, nil)
	if err != nil {
		return Context{}, apperrors.Wrap(apperrors.CodeContextUnavailable, "fetch engine balance", err)
	}

	price, overflow := uint256.FromBig(gasPrice)
	if overflow {
		return Context{}, apperrors.New(apperrors.CodeContextUnavailable, "gas price overflows 256 bits")
	}
	funds, overflow := uint256.FromBig(balance)
	if overflow {
		return Context{}, apperrors.New(apperrors.CodeContextUnavailable, "balance overflows 256 bits")
	}

	return Context{
		Timestamp:   header.Time,
		BlockRandom: header.MixDigest,
		BlockNumber: header.Number.Uint64(),
		ParentHash:  header.ParentHash,
		ChainID:     p.chainID,
		Caller:      caller,
		Origin:      caller,
		GasPrice:    *price,
		Balance:     *funds,
	}, nil
}

// Close releases the underlying node connection.
func (p *NodeProvider) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Close()
}
