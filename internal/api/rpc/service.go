// Package rpc implements the engine JSON-RPC API.
package rpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/quillhash/entropy-engine/internal/chain"
	"github.com/quillhash/entropy-engine/internal/engine"
	apperrors "github.com/quillhash/entropy-engine/internal/platform/errors"
	"github.com/quillhash/entropy-engine/internal/platform/metrics"
	"github.com/quillhash/entropy-engine/internal/platform/requestctx"
	"github.com/quillhash/entropy-engine/internal/telemetry"
)

// Namespace is the JSON-RPC namespace the service registers under, so the
// wire methods are engine_getRandomNumber, engine_getRandomInRange,
// engine_getMultipleRandomNumbers, engine_getCurrentNonce, and
// engine_canonicalAddress.
const Namespace = "engine"

// Placement identifies the deterministic deployment of this engine so
// integrators can resolve one address across networks.
type Placement struct {
	Deployer common.Address
	CodeHash common.Hash
}

// RandomnessService exposes the entropy engine over JSON-RPC.
type RandomnessService struct {
	engine        *engine.Engine
	emitter       *telemetry.Emitter
	metrics       *metrics.Engine
	placement     Placement
	defaultCaller common.Address
}

// NewRandomnessService creates a configured RPC handler. The emitter and
// metrics may be nil; recording is then skipped.
func NewRandomnessService(eng *engine.Engine, emitter *telemetry.Emitter, m *metrics.Engine, placement Placement, defaultCaller common.Address) *RandomnessService {
	return &RandomnessService{
		engine:        eng,
		emitter:       emitter,
		metrics:       m,
		placement:     placement,
		defaultCaller: defaultCaller,
	}
}

// GetRandomNumber handles single draw requests.
func (s *RandomnessService) GetRandomNumber(ctx context.Context, payload hexutil.Bytes) (*hexutil.Big, error) {
	if s == nil || s.engine == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "randomness engine is not configured")
	}

	result, events, err := s.engine.Draw(ctx, s.caller(ctx), payload)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	s.recordSuccess(ctx, metrics.DrawKindSingle, events)
	return toBig(&result.Value), nil
}

// GetRandomInRange handles ranged draw requests; the result is in
// [min, max] inclusive.
func (s *RandomnessService) GetRandomInRange(ctx context.Context, payload hexutil.Bytes, min, max *hexutil.Big) (*hexutil.Big, error) {
	if s == nil || s.engine == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "randomness engine is not configured")
	}

	result, events, err := s.engine.DrawInRange(ctx, s.caller(ctx), payload, fromBig(min), fromBig(max))
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	s.recordSuccess(ctx, metrics.DrawKindRange, events)
	return toBig(&result.Value), nil
}

// GetMultipleRandomNumbers handles batch draw requests.
func (s *RandomnessService) GetMultipleRandomNumbers(ctx context.Context, payload hexutil.Bytes, count hexutil.Uint64) ([]*hexutil.Big, error) {
	if s == nil || s.engine == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "randomness engine is not configured")
	}

	result, events, err := s.engine.DrawMany(ctx, s.caller(ctx), payload, uint64(count))
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.BatchSize.Observe(float64(count))
	}
	s.recordSuccess(ctx, metrics.DrawKindBatch, events)

	values := make([]*hexutil.Big, len(result.Values))
	for i := range result.Values {
		values[i] = toBig(&result.Values[i])
	}
	return values, nil
}

// GetCurrentNonce returns the engine's call counter. Pure read.
func (s *RandomnessService) GetCurrentNonce(ctx context.Context) (*hexutil.Big, error) {
	if s == nil || s.engine == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "randomness engine is not configured")
	}
	nonce := s.engine.CurrentNonce()
	return toBig(&nonce), nil
}

// CanonicalAddress returns the deterministic engine address derived from
// the deployer, the version-tagged placement salt, and the code hash.
func (s *RandomnessService) CanonicalAddress(ctx context.Context) (common.Address, error) {
	if s == nil {
		return common.Address{}, apperrors.New(apperrors.CodeUnknown, "randomness engine is not configured")
	}
	return chain.CanonicalAddress(s.placement.Deployer, s.placement.CodeHash), nil
}

// caller resolves the caller identity for this request, falling back to
// the configured default when the transport attached none.
func (s *RandomnessService) caller(ctx context.Context) common.Address {
	caller := requestctx.CallerFromContext(ctx)
	if caller == (common.Address{}) {
		return s.defaultCaller
	}
	return caller
}

func (s *RandomnessService) recordSuccess(ctx context.Context, kind string, events []engine.Event) {
	if s.metrics != nil {
		s.metrics.Draws.WithLabelValues(kind).Inc()
		for _, evt := range events {
			if _, ok := evt.(engine.WeakCallerData); ok {
				s.metrics.WeakPayloads.Inc()
			}
		}
	}
	if s.emitter != nil {
		s.emitter.EmitEngineEvents(ctx, requestctx.RequestIDFromContext(ctx), events)
	}
}

func (s *RandomnessService) recordFailure(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ValidationFailures.WithLabelValues(string(apperrors.GetCode(err))).Inc()
}

func toBig(value *uint256.Int) *hexutil.Big {
	return (*hexutil.Big)(value.ToBig())
}

func fromBig(value *hexutil.Big) *uint256.Int {
	if value == nil {
		return nil
	}
	converted, overflow := uint256.FromBig((*big.Int)(value))
	if overflow {
		// hexutil.Big decoding already rejects values over 256 bits.
		return nil
	}
	return converted
}
