package tickmath

import "math/big"

var (
	one = big.NewInt(1)

	// Q128 is the fixed point scale used for sqrt ratios and
	// fees-per-liquidity accumulators.
	Q128 = new(big.Int).Lsh(one, 128)
)

// mulDiv returns floor(a*b/c).
func mulDiv(a, b, c *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Div(p, c)
}

// mulDivRoundingUp returns ceil(a*b/c).
func mulDivRoundingUp(a, b, c *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	q, r := new(big.Int).QuoRem(p, c, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, one)
	}
	return q
}

// divRoundingUp returns ceil(a/b).
func divRoundingUp(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, one)
	}
	return q
}
