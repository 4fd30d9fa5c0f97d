package tickmath

import (
	"errors"
	"math/big"
)

var (
	ErrAmountOverflow     = errors.New("amount exceeds signed 128-bit range")
	ErrLiquidityOverflow  = errors.New("liquidity exceeds 128-bit range")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
)

var (
	// MaxAmount is the largest token amount any single operation may
	// produce or consume. Deltas are signed, so the magnitude bound is
	// 2^127-1 in both directions.
	MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(one, 127), one)
	MinAmount = new(big.Int).Neg(MaxAmount)

	// MaxLiquidity bounds a pool's active liquidity and any position's
	// liquidity to an unsigned 128-bit value.
	MaxLiquidity = new(big.Int).Sub(new(big.Int).Lsh(one, 128), one)
)

// CheckAmount rejects values outside the signed 128-bit amount range.
func CheckAmount(v *big.Int) error {
	if v.Cmp(MaxAmount) > 0 || v.Cmp(MinAmount) < 0 {
		return ErrAmountOverflow
	}
	return nil
}

// CheckLiquidity rejects values outside [0, 2^128).
func CheckLiquidity(v *big.Int) error {
	if v.Sign() < 0 {
		return ErrLiquidityUnderflow
	}
	if v.Cmp(MaxLiquidity) > 0 {
		return ErrLiquidityOverflow
	}
	return nil
}

// AddLiquidityDelta applies a signed delta to a liquidity value with
// explicit bounds checking.
func AddLiquidityDelta(liquidity, delta *big.Int) (*big.Int, error) {
	out := new(big.Int).Add(liquidity, delta)
	if err := CheckLiquidity(out); err != nil {
		return nil, err
	}
	return out, nil
}
