package tickmath

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrZeroLiquidity  = errors.New("liquidity must be greater than zero")
	ErrPriceExhausted = errors.New("amount exceeds available price range")
)

// Amount0Delta returns the token0 amount between two sqrt ratios for the
// given liquidity: L * (1/lower - 1/upper), in token units. roundUp chooses
// the direction that overcharges the payer; round-down undercredits the
// receiver.
func Amount0Delta(sqrtRatioA, sqrtRatioB, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	out, err := Amount0DeltaRaw(sqrtRatioA, sqrtRatioB, liquidity, roundUp)
	if err != nil {
		return nil, err
	}
	if err := CheckAmount(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Amount0DeltaRaw is Amount0Delta without the fixed-width amount check,
// for intermediate swap-step comparisons where the distance to a far
// boundary may legitimately exceed the amount range.
func Amount0DeltaRaw(sqrtRatioA, sqrtRatioB, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	lower, upper := orderRatios(sqrtRatioA, sqrtRatioB)
	if lower.Sign() <= 0 {
		return nil, ErrSqrtRatioOutOfRange
	}

	numerator1 := new(big.Int).Lsh(liquidity, 128)
	numerator2 := new(big.Int).Sub(upper, lower)

	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, upper), lower), nil
	}
	out := mulDiv(numerator1, numerator2, upper)
	return out.Div(out, lower), nil
}

// Amount1Delta returns the token1 amount between two sqrt ratios for the
// given liquidity: L * (upper - lower).
func Amount1Delta(sqrtRatioA, sqrtRatioB, liquidity *big.Int, roundUp bool) (*big.Int, error) {
	out := Amount1DeltaRaw(sqrtRatioA, sqrtRatioB, liquidity, roundUp)
	if err := CheckAmount(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Amount1DeltaRaw is Amount1Delta without the fixed-width amount check.
func Amount1DeltaRaw(sqrtRatioA, sqrtRatioB, liquidity *big.Int, roundUp bool) *big.Int {
	lower, upper := orderRatios(sqrtRatioA, sqrtRatioB)
	diff := new(big.Int).Sub(upper, lower)

	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q128)
	}
	return mulDiv(liquidity, diff, Q128)
}

// NextSqrtRatioFromInput returns the sqrt ratio reached by spending amountIn
// of one token against the given liquidity, snapped onto the grid toward the
// starting ratio so the payer is never credited with more movement than was
// paid for.
func NextSqrtRatioFromInput(sqrtRatio, liquidity, amountIn *big.Int, isToken1 bool) (*big.Int, error) {
	if liquidity.Sign() <= 0 {
		return nil, ErrZeroLiquidity
	}
	if amountIn.Sign() < 0 {
		return nil, fmt.Errorf("negative input amount: %s", amountIn)
	}

	if isToken1 {
		// Price moves up: sqrtRatio + amount/L, rounded down.
		quotient := mulDiv(amountIn, Q128, liquidity)
		next := new(big.Int).Add(sqrtRatio, quotient)
		return FloorToGrid(next), nil
	}

	// Price moves down: L*sqrtRatio / (L + amount*sqrtRatio), rounded up.
	numerator1 := new(big.Int).Lsh(liquidity, 128)
	denominator := new(big.Int).Mul(amountIn, sqrtRatio)
	denominator.Add(denominator, numerator1)
	next := mulDivRoundingUp(numerator1, sqrtRatio, denominator)
	return CeilToGrid(next), nil
}

// NextSqrtRatioFromOutput returns the sqrt ratio reached by withdrawing
// amountOut of one token, snapped onto the grid away from the starting
// ratio so the full output is always covered by the price movement.
func NextSqrtRatioFromOutput(sqrtRatio, liquidity, amountOut *big.Int, isToken1 bool) (*big.Int, error) {
	if liquidity.Sign() <= 0 {
		return nil, ErrZeroLiquidity
	}
	if amountOut.Sign() < 0 {
		return nil, fmt.Errorf("negative output amount: %s", amountOut)
	}

	if isToken1 {
		// Withdrawing token1 moves the price down.
		quotient := mulDivRoundingUp(amountOut, Q128, liquidity)
		if sqrtRatio.Cmp(quotient) <= 0 {
			return nil, ErrPriceExhausted
		}
		next := new(big.Int).Sub(sqrtRatio, quotient)
		return FloorToGrid(next), nil
	}

	// Withdrawing token0 moves the price up.
	numerator1 := new(big.Int).Lsh(liquidity, 128)
	product := new(big.Int).Mul(amountOut, sqrtRatio)
	if numerator1.Cmp(product) <= 0 {
		return nil, ErrPriceExhausted
	}
	denominator := new(big.Int).Sub(numerator1, product)
	next := mulDivRoundingUp(numerator1, sqrtRatio, denominator)
	return CeilToGrid(next), nil
}

func orderRatios(a, b *big.Int) (lower, upper *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}
