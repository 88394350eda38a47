package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PlacementSaltTag is the version-tagged salt for deterministic placement.
// The same engine code deployed from the same deployer resolves to the same
// address on every network, so integrators can hardcode one address.
const PlacementSaltTag = "entropy-engine/v1"

// PlacementSalt returns the fixed placement salt.
func PlacementSalt() common.Hash {
	return crypto.Keccak256Hash([]byte(PlacementSaltTag))
}

// CanonicalAddress computes the deterministic engine address for a deployer
// and engine code hash using CREATE2 semantics.
func CanonicalAddress(deployer common.Address, codeHash common.Hash) common.Address {
	return crypto.CreateAddress2(deployer, PlacementSalt(), codeHash.Bytes())
}
