package tickmath

import (
	"errors"
	"fmt"
	"math/big"
)

// Fee rates are expressed in parts per million of the gross input.
const FeeDenominator = 1_000_000

var ErrInvalidFee = errors.New("fee rate must be below 100%")

var feeDenominator = big.NewInt(FeeDenominator)

// ValidateFee rejects fee rates of 100% or more.
func ValidateFee(fee uint32) error {
	if uint64(fee) >= FeeDenominator {
		return fmt.Errorf("%w: %d ppm", ErrInvalidFee, fee)
	}
	return nil
}

// ComputeFee returns the fee charged on a gross amount, rounded up so the
// payer is always overcharged.
func ComputeFee(amount *big.Int, fee uint32) *big.Int {
	if amount.Sign() <= 0 || fee == 0 {
		return new(big.Int)
	}
	return mulDivRoundingUp(amount, new(big.Int).SetUint64(uint64(fee)), feeDenominator)
}

// AmountBeforeFee returns the smallest gross amount that nets to afterFee
// once the fee is deducted: afterFee == y - ComputeFee(y) for the returned y.
func AmountBeforeFee(afterFee *big.Int, fee uint32) (*big.Int, error) {
	if err := ValidateFee(fee); err != nil {
		return nil, err
	}
	if afterFee.Sign() < 0 {
		return nil, fmt.Errorf("negative net amount: %s", afterFee)
	}
	gross := mulDivRoundingUp(afterFee, feeDenominator, new(big.Int).SetUint64(FeeDenominator-uint64(fee)))
	if err := CheckAmount(gross); err != nil {
		return nil, err
	}
	return gross, nil
}

// FeesPerLiquidityDelta converts a charged fee amount into accumulator
// units: fee<<128 / liquidity, rounded down so liquidity providers are
// never credited more than was collected.
func FeesPerLiquidityDelta(fee, liquidity *big.Int) (*big.Int, error) {
	if liquidity.Sign() <= 0 {
		return nil, ErrZeroLiquidity
	}
	return mulDiv(fee, Q128, liquidity), nil
}
