package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/tickmath"
)

// Restore rebuilds a pool from persisted state. Tick and position records
// are added afterwards through RestoreTick and RestorePosition so the
// bitmap stays consistent with the tick set.
func Restore(key Key, sqrtRatio *big.Int, tick int32, liquidity, fees0, fees1, reserve0, reserve1 *big.Int) (*Pool, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if sqrtRatio.Cmp(tickmath.MinSqrtRatio) < 0 || sqrtRatio.Cmp(tickmath.MaxSqrtRatio) > 0 {
		return nil, tickmath.ErrSqrtRatioOutOfRange
	}
	if !tickmath.OnGrid(sqrtRatio) {
		return nil, fmt.Errorf("restored sqrt ratio off grid: %s", sqrtRatio)
	}
	if err := tickmath.CheckLiquidity(liquidity); err != nil {
		return nil, err
	}
	if reserve0.Sign() < 0 || reserve1.Sign() < 0 {
		return nil, fmt.Errorf("%w: restored reserves %s / %s", ErrReserveUnderflow, reserve0, reserve1)
	}
	return &Pool{
		Key:               key,
		SqrtRatio:         new(big.Int).Set(sqrtRatio),
		Tick:              tick,
		Liquidity:         new(big.Int).Set(liquidity),
		FeesPerLiquidity0: new(big.Int).Set(fees0),
		FeesPerLiquidity1: new(big.Int).Set(fees1),
		Reserve0:          new(big.Int).Set(reserve0),
		Reserve1:          new(big.Int).Set(reserve1),
		ticks:             make(map[int32]*TickInfo),
		bitmap:            make(map[int32]*big.Int),
		positions:         make(map[positionKey]*Position),
	}, nil
}

// RestoreTick installs a persisted tick record and sets its bitmap bit.
func (p *Pool) RestoreTick(tick int32, net, gross, outside0, outside1 *big.Int) error {
	if _, ok := p.ticks[tick]; ok {
		return fmt.Errorf("tick %d restored twice", tick)
	}
	if gross.Sign() <= 0 {
		return fmt.Errorf("restored tick %d without liquidity", tick)
	}
	if err := tickmath.CheckLiquidity(gross); err != nil {
		return err
	}
	p.ticks[tick] = &TickInfo{
		LiquidityNet:   new(big.Int).Set(net),
		LiquidityGross: new(big.Int).Set(gross),
		FeesOutside0:   new(big.Int).Set(outside0),
		FeesOutside1:   new(big.Int).Set(outside1),
	}
	return p.flipTick(tick)
}

// RestorePosition installs a persisted position record.
func (p *Pool) RestorePosition(owner common.Address, b Bounds, liquidity, last0, last1 *big.Int) error {
	if err := p.CheckBounds(b); err != nil {
		return err
	}
	if err := tickmath.CheckLiquidity(liquidity); err != nil {
		return err
	}
	key := positionKey{owner: owner, bounds: b}
	if _, ok := p.positions[key]; ok {
		return fmt.Errorf("position %s [%d, %d) restored twice", owner, b.Lower, b.Upper)
	}
	p.positions[key] = &Position{
		Liquidity:       new(big.Int).Set(liquidity),
		FeesInsideLast0: new(big.Int).Set(last0),
		FeesInsideLast1: new(big.Int).Set(last1),
	}
	return nil
}
