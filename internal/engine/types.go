package engine

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	apperrors "github.com/quillhash/entropy-engine/internal/platform/errors"
)

const (
	// MaxCallerDataSize bounds the caller payload on every entry point.
	MaxCallerDataSize = 10240

	// MaxBatchCount bounds how many values a single batch call may produce.
	MaxBatchCount = 100

	// WeakCallerDataSize is the payload length below which the engine flags
	// the call as carrying weak caller entropy. Advisory only.
	WeakCallerDataSize = 32
)

// State holds the engine's persistent entropy state: a monotonic call
// counter and a 256-bit accumulator evolved after every successful call.
type State struct {
	Nonce uint256.Int `json:"nonce"`
	Pool  uint256.Int `json:"pool"`
}

// DrawResult is the outcome of a single or ranged draw. Nonce is the
// counter value the draw consumed.
type DrawResult struct {
	Value uint256.Int
	Nonce uint256.Int
}

// BatchResult is the outcome of a batch draw. StartNonce is the counter
// value consumed by the first element.
type BatchResult struct {
	Values     []uint256.Int
	StartNonce uint256.Int
}

// Event is an observability signal produced by a draw. Events are returned
// to the caller layer, which decides how to record them; the engine never
// blocks on their delivery.
type Event interface {
	EventName() string
}

// RandomGenerated reports a completed single draw.
type RandomGenerated struct {
	Caller common.Address
	Nonce  uint256.Int
	Value  uint256.Int
}

// EventName identifies the event kind.
func (RandomGenerated) EventName() string { return "random.generated" }

// BatchRandomGenerated reports a completed batch draw. One event covers the
// whole batch.
type BatchRandomGenerated struct {
	Caller     common.Address
	StartNonce uint256.Int
	Values     []uint256.Int
}

// EventName identifies the event kind.
func (BatchRandomGenerated) EventName() string { return "random.batch_generated" }

// WeakCallerData flags a payload under WeakCallerDataSize bytes. The call
// still succeeds; integrators use this to detect thin caller entropy.
type WeakCallerData struct {
	Caller        common.Address
	PayloadLength int
}

// EventName identifies the event kind.
func (WeakCallerData) EventName() string { return "random.weak_caller_data" }

func errRangeInvalid(min, max *uint256.Int) error {
	return apperrors.WithMetadata(apperrors.CodeRangeInvalid,
		"max must be greater than min",
		map[string]string{"min": min.Dec(), "max": max.Dec()},
	)
}

func errCallerDataTooLarge(length int) error {
	return apperrors.WithMetadata(apperrors.CodeCallerDataTooLarge,
		"caller payload exceeds size limit",
		map[string]string{
			"length": strconv.Itoa(length),
			"limit":  strconv.Itoa(MaxCallerDataSize),
		},
	)
}

func errCountInvalid(count uint64) error {
	return apperrors.WithMetadata(apperrors.CodeCountInvalid,
		"count must be between 1 and the batch limit",
		map[string]string{
			"count": strconv.FormatUint(count, 10),
			"limit": strconv.Itoa(MaxBatchCount),
		},
	)
}
