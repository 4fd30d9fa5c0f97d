package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/tickmath"
)

// Bounds is a position's tick range.
type Bounds struct {
	Lower int32
	Upper int32
}

// Position holds a liquidity range's stake and its fee checkpoint.
type Position struct {
	Liquidity *big.Int
	// FeesInsideLast0/1 checkpoint the inside accumulator at the last
	// liquidity change or collection.
	FeesInsideLast0 *big.Int
	FeesInsideLast1 *big.Int
}

func newPosition() *Position {
	return &Position{
		Liquidity:       new(big.Int),
		FeesInsideLast0: new(big.Int),
		FeesInsideLast1: new(big.Int),
	}
}

func (p *Position) clone() *Position {
	return &Position{
		Liquidity:       new(big.Int).Set(p.Liquidity),
		FeesInsideLast0: new(big.Int).Set(p.FeesInsideLast0),
		FeesInsideLast1: new(big.Int).Set(p.FeesInsideLast1),
	}
}

// CheckBounds validates a tick range against the pool configuration.
func (p *Pool) CheckBounds(b Bounds) error {
	if b.Lower >= b.Upper {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidBounds, b.Lower, b.Upper)
	}
	if b.Lower < tickmath.MinTick || b.Upper > tickmath.MaxTick {
		return fmt.Errorf("%w: [%d, %d) outside tick range", ErrInvalidBounds, b.Lower, b.Upper)
	}
	if p.Key.Config.FullRange() {
		if b.Lower != tickmath.MinTick || b.Upper != tickmath.MaxTick {
			return fmt.Errorf("%w: got [%d, %d)", ErrFullRangeOnly, b.Lower, b.Upper)
		}
		return nil
	}
	spacing := p.spacing()
	if b.Lower%spacing != 0 || b.Upper%spacing != 0 {
		return fmt.Errorf("%w: [%d, %d) spacing %d", ErrTickSpacing, b.Lower, b.Upper, spacing)
	}
	return nil
}

// FeesPerLiquidityInside returns the fee accumulator restricted to a tick
// range using the global-minus-outside technique. The case split keys on
// the pool's current tick.
func (p *Pool) FeesPerLiquidityInside(b Bounds) (inside0, inside1 *big.Int, err error) {
	if err := p.CheckBounds(b); err != nil {
		return nil, nil, err
	}
	lower0, lower1 := p.outsideAccumulators(b.Lower)
	upper0, upper1 := p.outsideAccumulators(b.Upper)

	switch {
	case p.Tick < b.Lower:
		inside0 = new(big.Int).Sub(lower0, upper0)
		inside1 = new(big.Int).Sub(lower1, upper1)
	case p.Tick >= b.Upper:
		inside0 = new(big.Int).Sub(upper0, lower0)
		inside1 = new(big.Int).Sub(upper1, lower1)
	default:
		inside0 = new(big.Int).Sub(p.FeesPerLiquidity0, lower0)
		inside0.Sub(inside0, upper0)
		inside1 = new(big.Int).Sub(p.FeesPerLiquidity1, lower1)
		inside1.Sub(inside1, upper1)
	}
	return inside0, inside1, nil
}

func (p *Pool) outsideAccumulators(tick int32) (*big.Int, *big.Int) {
	if info, ok := p.ticks[tick]; ok {
		return info.FeesOutside0, info.FeesOutside1
	}
	return new(big.Int), new(big.Int)
}

// UpdateLiquidity applies a signed liquidity delta to the (owner, bounds)
// position and returns the token deltas the caller owes (positive) or is
// owed (negative). Pending fees survive liquidity changes through the
// checkpoint re-basing; withdrawing the last liquidity unit pays them out
// through the returned deltas.
func (p *Pool) UpdateLiquidity(owner common.Address, b Bounds, delta *big.Int) (delta0, delta1 *big.Int, err error) {
	if err := p.CheckBounds(b); err != nil {
		return nil, nil, err
	}
	if err := tickmath.CheckAmount(delta); err != nil {
		return nil, nil, err
	}

	key := positionKey{owner: owner, bounds: b}
	pos, ok := p.positions[key]
	if !ok {
		if delta.Sign() < 0 {
			return nil, nil, fmt.Errorf("%w: no position", ErrPositionLiquidity)
		}
		pos = newPosition()
	}
	newLiquidity := new(big.Int).Add(pos.Liquidity, delta)
	if newLiquidity.Sign() < 0 {
		return nil, nil, fmt.Errorf("%w: have %s, withdraw %s", ErrPositionLiquidity, pos.Liquidity, new(big.Int).Neg(delta))
	}
	if err := tickmath.CheckLiquidity(newLiquidity); err != nil {
		return nil, nil, err
	}

	if delta.Sign() != 0 {
		if err := p.updateTick(b.Lower, delta, false); err != nil {
			return nil, nil, err
		}
		if err := p.updateTick(b.Upper, delta, true); err != nil {
			return nil, nil, err
		}
	}

	inside0, inside1, err := p.FeesPerLiquidityInside(b)
	if err != nil {
		return nil, nil, err
	}
	owed0, err := owedFees(inside0, pos.FeesInsideLast0, pos.Liquidity)
	if err != nil {
		return nil, nil, err
	}
	owed1, err := owedFees(inside1, pos.FeesInsideLast1, pos.Liquidity)
	if err != nil {
		return nil, nil, err
	}

	delta0, delta1, err = p.boundsDeltas(b, delta)
	if err != nil {
		return nil, nil, err
	}

	if newLiquidity.Sign() == 0 {
		// No liquidity left to carry the checkpoint trick; settle the
		// pending fees in the returned deltas.
		delta0.Sub(delta0, owed0)
		delta1.Sub(delta1, owed1)
		pos.FeesInsideLast0 = inside0
		pos.FeesInsideLast1 = inside1
	} else {
		pos.FeesInsideLast0, err = rebaseCheckpoint(inside0, owed0, newLiquidity)
		if err != nil {
			return nil, nil, err
		}
		pos.FeesInsideLast1, err = rebaseCheckpoint(inside1, owed1, newLiquidity)
		if err != nil {
			return nil, nil, err
		}
	}
	pos.Liquidity = newLiquidity
	p.positions[key] = pos

	// Active liquidity changes only when the range straddles the current
	// tick.
	if b.Lower <= p.Tick && p.Tick < b.Upper {
		p.Liquidity, err = tickmath.AddLiquidityDelta(p.Liquidity, delta)
		if err != nil {
			return nil, nil, err
		}
	}

	if delta.Sign() < 0 {
		if err := p.clearTick(b.Lower); err != nil {
			return nil, nil, err
		}
		if err := p.clearTick(b.Upper); err != nil {
			return nil, nil, err
		}
	}

	if err := p.applyDelta(delta0, delta1); err != nil {
		return nil, nil, err
	}
	return delta0, delta1, nil
}

// CollectFees pays out the fees owed to a position and advances its
// checkpoint so the same fee units can never be claimed twice.
func (p *Pool) CollectFees(owner common.Address, b Bounds) (fee0, fee1 *big.Int, err error) {
	if err := p.CheckBounds(b); err != nil {
		return nil, nil, err
	}
	pos, ok := p.positions[positionKey{owner: owner, bounds: b}]
	if !ok {
		return new(big.Int), new(big.Int), nil
	}
	inside0, inside1, err := p.FeesPerLiquidityInside(b)
	if err != nil {
		return nil, nil, err
	}
	fee0, err = owedFees(inside0, pos.FeesInsideLast0, pos.Liquidity)
	if err != nil {
		return nil, nil, err
	}
	fee1, err = owedFees(inside1, pos.FeesInsideLast1, pos.Liquidity)
	if err != nil {
		return nil, nil, err
	}
	pos.FeesInsideLast0 = inside0
	pos.FeesInsideLast1 = inside1

	if err := p.applyDelta(new(big.Int).Neg(fee0), new(big.Int).Neg(fee1)); err != nil {
		return nil, nil, err
	}
	return fee0, fee1, nil
}

// AccumulateFees injects fees directly into the global accumulators, the
// extension path for donating value to in-range liquidity.
func (p *Pool) AccumulateFees(amount0, amount1 *big.Int) error {
	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return fmt.Errorf("fee amounts must be non-negative")
	}
	if p.Liquidity.Sign() == 0 {
		return ErrNoLiquidityForFees
	}
	if amount0.Sign() > 0 {
		d, err := tickmath.FeesPerLiquidityDelta(amount0, p.Liquidity)
		if err != nil {
			return err
		}
		p.FeesPerLiquidity0 = new(big.Int).Add(p.FeesPerLiquidity0, d)
	}
	if amount1.Sign() > 0 {
		d, err := tickmath.FeesPerLiquidityDelta(amount1, p.Liquidity)
		if err != nil {
			return err
		}
		p.FeesPerLiquidity1 = new(big.Int).Add(p.FeesPerLiquidity1, d)
	}
	return p.applyDelta(amount0, amount1)
}

// owedFees converts a checkpoint difference into token units, rounding
// down. A checkpoint ahead of the inside accumulator means the range's
// bookkeeping was corrupted; that must surface, not wrap.
func owedFees(inside, checkpoint, liquidity *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(inside, checkpoint)
	if diff.Sign() < 0 {
		return nil, fmt.Errorf("%w: inside %s checkpoint %s", ErrCheckpointUnderflow, inside, checkpoint)
	}
	owed := new(big.Int).Mul(diff, liquidity)
	owed.Rsh(owed, 128)
	if err := tickmath.CheckAmount(owed); err != nil {
		return nil, err
	}
	return owed, nil
}

// rebaseCheckpoint recomputes a position checkpoint so that owed fees stay
// claimable after the liquidity change: checkpoint = inside - owed/L'. The
// offset rounds up; with L' below 2^128 the round-trip through owedFees
// then reproduces the owed amount exactly. The subtraction is checked; a
// wrap here would silently corrupt every future fee read for the range.
func rebaseCheckpoint(inside, owed, newLiquidity *big.Int) (*big.Int, error) {
	units := new(big.Int).Lsh(owed, 128)
	units.Add(units, new(big.Int).Sub(newLiquidity, big.NewInt(1)))
	units.Div(units, newLiquidity)
	out := new(big.Int).Sub(inside, units)
	if out.Sign() < 0 {
		return nil, fmt.Errorf("%w: owed %s exceeds inside accumulator", ErrCheckpointUnderflow, owed)
	}
	return out, nil
}

// updateTick applies a liquidity delta to one boundary tick, creating the
// record and its bitmap bit on first use. A record whose gross liquidity
// returns to zero is reclaimed later by clearTick.
func (p *Pool) updateTick(tick int32, delta *big.Int, isUpper bool) error {
	info, ok := p.ticks[tick]
	if !ok {
		if delta.Sign() < 0 {
			return fmt.Errorf("%w: tick %d has no liquidity", ErrPositionLiquidity, tick)
		}
		info = newTickInfo()
		// Convention: a fresh tick at or below the current price has
		// observed all fees so far on its far side.
		if tick <= p.Tick {
			info.FeesOutside0 = new(big.Int).Set(p.FeesPerLiquidity0)
			info.FeesOutside1 = new(big.Int).Set(p.FeesPerLiquidity1)
		}
		p.ticks[tick] = info
		if err := p.flipTick(tick); err != nil {
			return err
		}
	}

	gross := new(big.Int).Add(info.LiquidityGross, delta)
	if err := tickmath.CheckLiquidity(gross); err != nil {
		return err
	}
	info.LiquidityGross = gross
	if isUpper {
		info.LiquidityNet = new(big.Int).Sub(info.LiquidityNet, delta)
	} else {
		info.LiquidityNet = new(big.Int).Add(info.LiquidityNet, delta)
	}

	return nil
}

// clearTick reclaims a tick record and its bitmap bit once no position
// references it. Deferred until after the fee read: a withdrawal still
// needs the record's outside accumulators to compute what it is owed.
func (p *Pool) clearTick(tick int32) error {
	info, ok := p.ticks[tick]
	if !ok || info.LiquidityGross.Sign() != 0 {
		return nil
	}
	delete(p.ticks, tick)
	return p.flipTick(tick)
}

// boundsDeltas computes the token amounts corresponding to a liquidity
// delta over a range at the current price. Deposits round against the
// depositor; withdrawals round against the withdrawer.
func (p *Pool) boundsDeltas(b Bounds, delta *big.Int) (*big.Int, *big.Int, error) {
	delta0 := new(big.Int)
	delta1 := new(big.Int)
	if delta.Sign() == 0 {
		return delta0, delta1, nil
	}

	lowerRatio, err := tickmath.TickToSqrtRatio(b.Lower)
	if err != nil {
		return nil, nil, err
	}
	upperRatio, err := tickmath.TickToSqrtRatio(b.Upper)
	if err != nil {
		return nil, nil, err
	}

	deposit := delta.Sign() > 0
	magnitude := new(big.Int).Abs(delta)

	switch {
	case p.Tick < b.Lower:
		delta0, err = tickmath.Amount0Delta(lowerRatio, upperRatio, magnitude, deposit)
		if err != nil {
			return nil, nil, err
		}
	case p.Tick >= b.Upper:
		delta1, err = tickmath.Amount1Delta(lowerRatio, upperRatio, magnitude, deposit)
		if err != nil {
			return nil, nil, err
		}
	default:
		delta0, err = tickmath.Amount0Delta(p.SqrtRatio, upperRatio, magnitude, deposit)
		if err != nil {
			return nil, nil, err
		}
		delta1, err = tickmath.Amount1Delta(lowerRatio, p.SqrtRatio, magnitude, deposit)
		if err != nil {
			return nil, nil, err
		}
	}

	if !deposit {
		delta0.Neg(delta0)
		delta1.Neg(delta1)
	}
	return delta0, delta1, nil
}
