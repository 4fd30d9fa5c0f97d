// Package pool holds per-pool price/liquidity state and implements the
// concentrated-liquidity swap engine and position fee accounting over it.
package pool

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"ammcore/internal/tickmath"
)

var (
	ErrInvalidPoolKey          = errors.New("invalid pool key")
	ErrTickSpacing             = errors.New("tick not aligned to pool spacing")
	ErrFullRangeOnly           = errors.New("pool accepts full-range positions only")
	ErrInvalidBounds           = errors.New("invalid tick bounds")
	ErrReserveUnderflow        = errors.New("pool reserve underflow")
	ErrCheckpointUnderflow     = errors.New("fee checkpoint underflow")
	ErrPositionLiquidity       = errors.New("withdrawal exceeds position liquidity")
	ErrNoLiquidityForFees      = errors.New("cannot accumulate fees without active liquidity")
	ErrSqrtRatioLimitDirection = errors.New("sqrt ratio limit on wrong side of current price")
)

// MaxTickSpacing keeps spacing-compressed tick indexes well inside int32.
const MaxTickSpacing = 698605

// Config is the immutable pool configuration carried in the key.
type Config struct {
	// Fee in parts per million of the gross swap input.
	Fee uint32
	// TickSpacing constrains position boundaries; zero means the pool
	// accepts only full-range positions.
	TickSpacing uint32
	// Extension optionally references the contract whose hooks run around
	// this pool's lifecycle events. Zero address means none.
	Extension common.Address
}

// FullRange reports whether the pool accepts only full-range positions.
func (c Config) FullRange() bool { return c.TickSpacing == 0 }

// Key identifies a pool: an ordered token pair plus its configuration.
type Key struct {
	Token0 common.Address
	Token1 common.Address
	Config Config
}

// Validate checks the well-formedness rules enforced at pool creation.
func (k Key) Validate() error {
	if k.Token0 == k.Token1 {
		return fmt.Errorf("%w: identical tokens", ErrInvalidPoolKey)
	}
	if bytes.Compare(k.Token0.Bytes(), k.Token1.Bytes()) > 0 {
		return fmt.Errorf("%w: tokens out of order", ErrInvalidPoolKey)
	}
	if err := tickmath.ValidateFee(k.Config.Fee); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPoolKey, err)
	}
	if k.Config.TickSpacing > MaxTickSpacing {
		return fmt.Errorf("%w: tick spacing %d too large", ErrInvalidPoolKey, k.Config.TickSpacing)
	}
	return nil
}

// ID returns the keccak hash of the packed key, used as the storage key.
func (k Key) ID() common.Hash {
	var buf bytes.Buffer
	buf.Write(k.Token0.Bytes())
	buf.Write(k.Token1.Bytes())
	var fixed [8]byte
	fixed[0] = byte(k.Config.Fee >> 24)
	fixed[1] = byte(k.Config.Fee >> 16)
	fixed[2] = byte(k.Config.Fee >> 8)
	fixed[3] = byte(k.Config.Fee)
	fixed[4] = byte(k.Config.TickSpacing >> 24)
	fixed[5] = byte(k.Config.TickSpacing >> 16)
	fixed[6] = byte(k.Config.TickSpacing >> 8)
	fixed[7] = byte(k.Config.TickSpacing)
	buf.Write(fixed[:])
	buf.Write(k.Config.Extension.Bytes())
	return crypto.Keccak256Hash(buf.Bytes())
}

type positionKey struct {
	owner  common.Address
	bounds Bounds
}

// Pool is the full persistent record for one pool: current price state,
// global fee accumulators, tick records, positions, and token reserves.
type Pool struct {
	Key Key

	SqrtRatio *big.Int
	Tick      int32
	Liquidity *big.Int

	// Global fees-per-liquidity accumulators, Q128, monotone.
	FeesPerLiquidity0 *big.Int
	FeesPerLiquidity1 *big.Int

	// Reserves track the net token balances the pool is entitled to;
	// they must never go negative.
	Reserve0 *big.Int
	Reserve1 *big.Int

	ticks     map[int32]*TickInfo
	bitmap    map[int32]*big.Int
	positions map[positionKey]*Position
}

// New initializes a pool at the given tick.
func New(key Key, tick int32) (*Pool, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	sqrtRatio, err := tickmath.TickToSqrtRatio(tick)
	if err != nil {
		return nil, err
	}
	return &Pool{
		Key:               key,
		SqrtRatio:         sqrtRatio,
		Tick:              tick,
		Liquidity:         new(big.Int),
		FeesPerLiquidity0: new(big.Int),
		FeesPerLiquidity1: new(big.Int),
		Reserve0:          new(big.Int),
		Reserve1:          new(big.Int),
		ticks:             make(map[int32]*TickInfo),
		bitmap:            make(map[int32]*big.Int),
		positions:         make(map[positionKey]*Position),
	}, nil
}

// Clone deep-copies the pool, including ticks and positions. Used by the
// top-level lock to implement all-or-nothing rollback.
func (p *Pool) Clone() *Pool {
	out := &Pool{
		Key:               p.Key,
		SqrtRatio:         new(big.Int).Set(p.SqrtRatio),
		Tick:              p.Tick,
		Liquidity:         new(big.Int).Set(p.Liquidity),
		FeesPerLiquidity0: new(big.Int).Set(p.FeesPerLiquidity0),
		FeesPerLiquidity1: new(big.Int).Set(p.FeesPerLiquidity1),
		Reserve0:          new(big.Int).Set(p.Reserve0),
		Reserve1:          new(big.Int).Set(p.Reserve1),
		ticks:             make(map[int32]*TickInfo, len(p.ticks)),
		bitmap:            make(map[int32]*big.Int, len(p.bitmap)),
		positions:         make(map[positionKey]*Position, len(p.positions)),
	}
	for tick, info := range p.ticks {
		out.ticks[tick] = info.clone()
	}
	for word, bits := range p.bitmap {
		out.bitmap[word] = new(big.Int).Set(bits)
	}
	for key, pos := range p.positions {
		out.positions[key] = pos.clone()
	}
	return out
}

// applyDelta moves a signed delta into the reserves; a negative result is
// an internal invariant violation and fails loudly.
func (p *Pool) applyDelta(delta0, delta1 *big.Int) error {
	r0 := new(big.Int).Add(p.Reserve0, delta0)
	r1 := new(big.Int).Add(p.Reserve1, delta1)
	if r0.Sign() < 0 || r1.Sign() < 0 {
		return fmt.Errorf("%w: pool %s", ErrReserveUnderflow, p.Key.ID())
	}
	p.Reserve0, p.Reserve1 = r0, r1
	return nil
}

// TickRecord exposes a tick's record for inspection; nil when the tick
// carries no liquidity.
func (p *Pool) TickRecord(tick int32) *TickInfo {
	return p.ticks[tick]
}

// PositionRecord exposes a position for inspection; nil when absent.
func (p *Pool) PositionRecord(owner common.Address, bounds Bounds) *Position {
	return p.positions[positionKey{owner: owner, bounds: bounds}]
}

// Snapshot iteration helpers for persistence.

// EachTick calls fn for every live tick record.
func (p *Pool) EachTick(fn func(tick int32, info *TickInfo)) {
	for tick, info := range p.ticks {
		fn(tick, info)
	}
}

// EachPosition calls fn for every position record.
func (p *Pool) EachPosition(fn func(owner common.Address, bounds Bounds, pos *Position)) {
	for key, pos := range p.positions {
		fn(key.owner, key.bounds, pos)
	}
}
