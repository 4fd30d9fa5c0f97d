package pool

import (
	"errors"
	"fmt"
	"math/big"

	"ammcore/internal/tickmath"
)

var ErrNoOutputMovement = errors.New("output requested but price cannot move")

// SwapParams describes one swap against a pool. Amount is signed: positive
// means exact input (the caller pays |Amount| of the specified token),
// negative means exact output (the caller receives |Amount|). IsToken1
// selects which token the amount is denominated in. SqrtRatioLimit, when
// non-nil, bounds how far the price may move; a swap that reaches the limit
// stops there as a partial fill.
type SwapParams struct {
	Amount         *big.Int
	IsToken1       bool
	SqrtRatioLimit *big.Int
}

// SwapResult reports the balance changes from the pool's point of view
// (positive means the caller owes the pool) and the post-swap price state.
type SwapResult struct {
	Delta0 *big.Int
	Delta1 *big.Int

	SqrtRatioAfter *big.Int
	TickAfter      int32
	LiquidityAfter *big.Int
	FeesPaid       *big.Int
}

// swapStep is the outcome of moving the price across one segment of
// constant liquidity.
type swapStep struct {
	next    *big.Int
	grossIn *big.Int
	out     *big.Int
	fee     *big.Int
}

// tickCross stages a boundary crossing, with the globals observed at the
// moment of crossing, until the final state writeback.
type tickCross struct {
	info    *TickInfo
	global0 *big.Int
	global1 *big.Int
}

// Swap moves the pool price until the requested amount is satisfied, the
// sqrt ratio limit is hit, or the price range is exhausted. Within each
// segment of constant liquidity the price moves by the constant-product
// formulas; initialized ticks crossed on the way flip their fee
// checkpoints and apply their liquidity deltas.
func (p *Pool) Swap(params SwapParams) (SwapResult, error) {
	if params.Amount == nil || params.Amount.Sign() == 0 {
		return SwapResult{
			Delta0:         new(big.Int),
			Delta1:         new(big.Int),
			SqrtRatioAfter: new(big.Int).Set(p.SqrtRatio),
			TickAfter:      p.Tick,
			LiquidityAfter: new(big.Int).Set(p.Liquidity),
			FeesPaid:       new(big.Int),
		}, nil
	}
	if err := tickmath.CheckAmount(params.Amount); err != nil {
		return SwapResult{}, err
	}

	exactIn := params.Amount.Sign() > 0
	// The price moves up exactly when token1 is flowing in, i.e. when the
	// signed amount's token is token1 for exact input or token0 for exact
	// output.
	increasing := exactIn == params.IsToken1

	limit, err := p.swapLimit(params.SqrtRatioLimit, increasing)
	if err != nil {
		return SwapResult{}, err
	}

	fee := p.Key.Config.Fee
	remaining := new(big.Int).Abs(params.Amount)
	totalIn := new(big.Int)
	totalOut := new(big.Int)
	totalFee := new(big.Int)

	sqrtRatio := new(big.Int).Set(p.SqrtRatio)
	tick := p.Tick
	liquidity := new(big.Int).Set(p.Liquidity)
	global0 := new(big.Int).Set(p.FeesPerLiquidity0)
	global1 := new(big.Int).Set(p.FeesPerLiquidity1)
	var crossed []tickCross

	for remaining.Sign() > 0 && sqrtRatio.Cmp(limit) != 0 {
		boundaryTick, initialized := p.nextInitializedTick(tick, increasing)
		boundaryRatio, err := tickmath.TickToSqrtRatio(boundaryTick)
		if err != nil {
			return SwapResult{}, err
		}
		if !increasing && boundaryRatio.Cmp(sqrtRatio) == 0 {
			// Already sitting on the boundary's low edge; leaving the tick
			// downward crosses it with no price movement.
			if initialized {
				info := p.ticks[boundaryTick]
				crossed = append(crossed, tickCross{
					info:    info,
					global0: new(big.Int).Set(global0),
					global1: new(big.Int).Set(global1),
				})
				liquidity, err = tickmath.AddLiquidityDelta(liquidity, new(big.Int).Neg(info.LiquidityNet))
				if err != nil {
					return SwapResult{}, err
				}
			}
			if boundaryTick == tickmath.MinTick {
				break
			}
			tick = boundaryTick - 1
			continue
		}

		target := boundaryRatio
		atBoundary := true
		if increasing && limit.Cmp(target) < 0 {
			target, atBoundary = limit, false
		}
		if !increasing && limit.Cmp(target) > 0 {
			target, atBoundary = limit, false
		}

		step, err := computeSwapStep(sqrtRatio, target, liquidity, remaining, fee, exactIn, increasing)
		if err != nil {
			return SwapResult{}, err
		}

		totalIn.Add(totalIn, step.grossIn)
		totalOut.Add(totalOut, step.out)
		totalFee.Add(totalFee, step.fee)
		if exactIn {
			remaining.Sub(remaining, step.grossIn)
			if remaining.Sign() < 0 {
				return SwapResult{}, fmt.Errorf("swap step overdrew input by %s", new(big.Int).Neg(remaining))
			}
		} else {
			remaining.Sub(remaining, step.out)
			if remaining.Sign() < 0 {
				remaining.SetInt64(0)
			}
		}

		// Credit the step's fee to in-range liquidity before any crossing
		// so a tick crossed right after sees it on the correct side.
		if step.fee.Sign() > 0 && liquidity.Sign() > 0 {
			delta, err := tickmath.FeesPerLiquidityDelta(step.fee, liquidity)
			if err != nil {
				return SwapResult{}, err
			}
			if increasing {
				global1.Add(global1, delta)
			} else {
				global0.Add(global0, delta)
			}
		}

		sqrtRatio = step.next

		switch {
		case atBoundary && sqrtRatio.Cmp(boundaryRatio) == 0:
			if initialized {
				info := p.ticks[boundaryTick]
				crossed = append(crossed, tickCross{
					info:    info,
					global0: new(big.Int).Set(global0),
					global1: new(big.Int).Set(global1),
				})
				net := info.LiquidityNet
				if !increasing {
					net = new(big.Int).Neg(net)
				}
				liquidity, err = tickmath.AddLiquidityDelta(liquidity, net)
				if err != nil {
					return SwapResult{}, err
				}
			}
			if increasing {
				tick = boundaryTick
			} else if boundaryTick == tickmath.MinTick {
				// The price cannot leave the range; park at the bound
				// rather than below it.
				tick = tickmath.MinTick
			} else {
				tick = boundaryTick - 1
			}
		default:
			tick, err = tickmath.SqrtRatioToTick(sqrtRatio)
			if err != nil {
				return SwapResult{}, err
			}
		}

		if step.grossIn.Sign() == 0 && step.out.Sign() == 0 && step.fee.Sign() == 0 && !atBoundary {
			// Price pinned at the limit with nothing moved: partial fill.
			break
		}
	}

	if err := tickmath.CheckAmount(totalIn); err != nil {
		return SwapResult{}, err
	}
	if err := tickmath.CheckAmount(totalOut); err != nil {
		return SwapResult{}, err
	}

	delta0 := new(big.Int)
	delta1 := new(big.Int)
	if increasing {
		delta1.Set(totalIn)
		delta0.Neg(totalOut)
	} else {
		delta0.Set(totalIn)
		delta1.Neg(totalOut)
	}

	if err := p.applyDelta(delta0, delta1); err != nil {
		return SwapResult{}, err
	}

	// All error paths are behind us; flip the staged crossings and commit
	// the new price state. A swap that failed above left the pool exactly
	// as it found it.
	for _, c := range crossed {
		c.info.cross(c.global0, c.global1)
	}
	p.SqrtRatio = sqrtRatio
	p.Tick = tick
	p.Liquidity = liquidity
	p.FeesPerLiquidity0 = global0
	p.FeesPerLiquidity1 = global1

	return SwapResult{
		Delta0:         delta0,
		Delta1:         delta1,
		SqrtRatioAfter: new(big.Int).Set(sqrtRatio),
		TickAfter:      tick,
		LiquidityAfter: new(big.Int).Set(liquidity),
		FeesPaid:       totalFee,
	}, nil
}

// swapLimit resolves and validates the price bound for a swap. A nil limit
// defaults to the extreme of the direction of travel. Off-grid limits are
// snapped toward the current price so the swap never overshoots the
// caller's bound.
func (p *Pool) swapLimit(limit *big.Int, increasing bool) (*big.Int, error) {
	if limit == nil {
		if increasing {
			return tickmath.MaxSqrtRatio, nil
		}
		return tickmath.MinSqrtRatio, nil
	}
	if limit.Cmp(tickmath.MinSqrtRatio) < 0 || limit.Cmp(tickmath.MaxSqrtRatio) > 0 {
		return nil, fmt.Errorf("%w: limit %s outside price range", ErrSqrtRatioLimitDirection, limit)
	}
	if increasing {
		if limit.Cmp(p.SqrtRatio) < 0 {
			return nil, fmt.Errorf("%w: limit %s below current %s", ErrSqrtRatioLimitDirection, limit, p.SqrtRatio)
		}
		return tickmath.FloorToGrid(limit), nil
	}
	if limit.Cmp(p.SqrtRatio) > 0 {
		return nil, fmt.Errorf("%w: limit %s above current %s", ErrSqrtRatioLimitDirection, limit, p.SqrtRatio)
	}
	return tickmath.CeilToGrid(limit), nil
}

// computeSwapStep advances the price from sqrtRatio toward target through a
// segment of constant liquidity and splits the specified amount into net
// input, fee, and output. Reaching target exactly signals the caller to
// consider a tick crossing.
func computeSwapStep(sqrtRatio, target, liquidity, remaining *big.Int, fee uint32, exactIn, increasing bool) (swapStep, error) {
	if liquidity.Sign() == 0 {
		// Nothing to trade against; the price glides to the target.
		return swapStep{
			next:    target,
			grossIn: new(big.Int),
			out:     new(big.Int),
			fee:     new(big.Int),
		}, nil
	}

	inIsToken1 := increasing

	if exactIn {
		feeAmount := tickmath.ComputeFee(remaining, fee)
		netRemaining := new(big.Int).Sub(remaining, feeAmount)

		netToTarget, err := amountIn(sqrtRatio, target, liquidity, inIsToken1)
		if err != nil {
			return swapStep{}, err
		}

		if netRemaining.Cmp(netToTarget) >= 0 {
			// The full distance to the target is affordable.
			grossIn, err := tickmath.AmountBeforeFee(netToTarget, fee)
			if err != nil {
				return swapStep{}, err
			}
			if grossIn.Cmp(remaining) > 0 {
				grossIn = new(big.Int).Set(remaining)
			}
			out, err := amountOut(sqrtRatio, target, liquidity, inIsToken1)
			if err != nil {
				return swapStep{}, err
			}
			return swapStep{
				next:    target,
				grossIn: grossIn,
				out:     out,
				fee:     new(big.Int).Sub(grossIn, netToTarget),
			}, nil
		}

		next, err := tickmath.NextSqrtRatioFromInput(sqrtRatio, liquidity, netRemaining, inIsToken1)
		if err != nil {
			return swapStep{}, err
		}
		if next.Cmp(sqrtRatio) == 0 {
			// Too small to move the price a single grid unit; the whole
			// remainder is kept as a fee.
			return swapStep{
				next:    next,
				grossIn: new(big.Int).Set(remaining),
				out:     new(big.Int),
				fee:     new(big.Int).Set(remaining),
			}, nil
		}
		out, err := amountOut(sqrtRatio, next, liquidity, inIsToken1)
		if err != nil {
			return swapStep{}, err
		}
		// The last step consumes everything that is left; rounding slack
		// between the snapped price and the offered amount stays with the
		// pool as part of the fee.
		return swapStep{
			next:    next,
			grossIn: new(big.Int).Set(remaining),
			out:     out,
			fee:     feeAmount,
		}, nil
	}

	outToTarget, err := amountOut(sqrtRatio, target, liquidity, inIsToken1)
	if err != nil {
		return swapStep{}, err
	}

	next := target
	if remaining.Cmp(outToTarget) < 0 {
		next, err = tickmath.NextSqrtRatioFromOutput(sqrtRatio, liquidity, remaining, !inIsToken1)
		if err != nil {
			return swapStep{}, err
		}
		if next.Cmp(sqrtRatio) == 0 {
			return swapStep{}, fmt.Errorf("%w: output %s", ErrNoOutputMovement, remaining)
		}
		// The grid snap can land exactly on the target; fold that back
		// into the boundary case.
		if increasing && next.Cmp(target) >= 0 || !increasing && next.Cmp(target) <= 0 {
			next = target
		}
	}

	out, err := amountOut(sqrtRatio, next, liquidity, inIsToken1)
	if err != nil {
		return swapStep{}, err
	}
	if out.Cmp(remaining) > 0 {
		// Never deliver more than was asked for; the surplus movement
		// stays in the pool.
		out = new(big.Int).Set(remaining)
	}
	netIn, err := amountIn(sqrtRatio, next, liquidity, inIsToken1)
	if err != nil {
		return swapStep{}, err
	}
	grossIn, err := tickmath.AmountBeforeFee(netIn, fee)
	if err != nil {
		return swapStep{}, err
	}
	return swapStep{
		next:    next,
		grossIn: grossIn,
		out:     out,
		fee:     new(big.Int).Sub(grossIn, netIn),
	}, nil
}

// amountIn is the input-token amount needed to move the price between the
// two ratios, rounded up against the payer.
func amountIn(from, to, liquidity *big.Int, inIsToken1 bool) (*big.Int, error) {
	if inIsToken1 {
		return tickmath.Amount1DeltaRaw(from, to, liquidity, true), nil
	}
	return tickmath.Amount0DeltaRaw(from, to, liquidity, true)
}

// amountOut is the output-token amount released by moving the price between
// the two ratios, rounded down against the receiver.
func amountOut(from, to, liquidity *big.Int, inIsToken1 bool) (*big.Int, error) {
	if inIsToken1 {
		return tickmath.Amount0DeltaRaw(from, to, liquidity, false)
	}
	return tickmath.Amount1DeltaRaw(from, to, liquidity, false), nil
}
