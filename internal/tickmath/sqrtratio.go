package tickmath

import (
	"fmt"
	"math/big"
)

// Sqrt ratios live on a 96-bit grid: a 94-bit mantissa shifted left by 34,
// 66, or 98 bits depending on the magnitude band. Values near price 1.0
// (2^128 in fixed point) carry the most precision; the extremes carry the
// least. Every ratio the engine stores or compares is on this grid, so two
// prices that the encoding cannot distinguish are equal by construction.

const (
	compactMantissaBits = 94
	compactExponentMask = 0x3
)

var (
	gridBand1 = new(big.Int).Lsh(one, 128)
	gridBand2 = new(big.Int).Lsh(one, 160)
)

func gridShift(v *big.Int) uint {
	if v.Cmp(gridBand1) < 0 {
		return 34
	}
	if v.Cmp(gridBand2) < 0 {
		return 66
	}
	return 98
}

// FloorToGrid snaps v down to the nearest representable sqrt ratio.
func FloorToGrid(v *big.Int) *big.Int {
	s := gridShift(v)
	out := new(big.Int).Rsh(v, s)
	return out.Lsh(out, s)
}

// CeilToGrid snaps v up to the nearest representable sqrt ratio.
func CeilToGrid(v *big.Int) *big.Int {
	s := gridShift(v)
	out := new(big.Int).Rsh(v, s)
	out.Lsh(out, s)
	if out.Cmp(v) < 0 {
		out.Add(out, new(big.Int).Lsh(one, s))
	}
	return out
}

// OnGrid reports whether v is exactly representable.
func OnGrid(v *big.Int) bool {
	return FloorToGrid(v).Cmp(v) == 0
}

// EncodeCompact packs a grid sqrt ratio into its 96-bit storage form:
// exponent in the top two bits, mantissa in the low 94.
func EncodeCompact(v *big.Int) (*big.Int, error) {
	if v.Cmp(MinSqrtRatio) < 0 || v.Cmp(MaxSqrtRatio) > 0 {
		return nil, ErrSqrtRatioOutOfRange
	}
	if !OnGrid(v) {
		return nil, fmt.Errorf("sqrt ratio not on compact grid: %s", v)
	}
	s := gridShift(v)
	exp := uint((s - 34) / 32)
	m := new(big.Int).Rsh(v, s)
	out := new(big.Int).SetUint64(uint64(exp))
	out.Lsh(out, compactMantissaBits)
	return out.Or(out, m), nil
}

// DecodeCompact unpacks a 96-bit compact sqrt ratio.
func DecodeCompact(c *big.Int) (*big.Int, error) {
	if c.Sign() < 0 || c.BitLen() > compactMantissaBits+2 {
		return nil, fmt.Errorf("compact sqrt ratio out of range: %s", c)
	}
	exp := new(big.Int).Rsh(c, compactMantissaBits).Uint64()
	if exp > compactExponentMask-1 {
		return nil, fmt.Errorf("compact sqrt ratio exponent out of range: %d", exp)
	}
	m := new(big.Int).And(c, new(big.Int).Sub(new(big.Int).Lsh(one, compactMantissaBits), one))
	v := m.Lsh(m, 34+32*uint(exp))
	if v.Cmp(MinSqrtRatio) < 0 || v.Cmp(MaxSqrtRatio) > 0 {
		return nil, ErrSqrtRatioOutOfRange
	}
	return v, nil
}
