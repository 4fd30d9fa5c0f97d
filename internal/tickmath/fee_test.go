package tickmath

import (
	"math/big"
	"math/rand"
	"testing"
)

func TestComputeFeeKnownValues(t *testing.T) {
	cases := []struct {
		amount int64
		fee    uint32
		want   int64
	}{
		{1000, 3000, 3},
		{997, 3000, 3},
		{1, 3000, 1},
		{0, 3000, 0},
		{1000000, 1, 1},
		{1000, 0, 0},
	}
	for _, c := range cases {
		got := ComputeFee(big.NewInt(c.amount), c.fee)
		if got.Int64() != c.want {
			t.Fatalf("ComputeFee(%d, %d) = %s, want %d", c.amount, c.fee, got, c.want)
		}
	}
}

// The round-trip law: deducting the fee from the gross amount implied by a
// net amount must return exactly that net amount.
func TestFeeRoundTripLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rates := []uint32{1, 100, 3000, 10000, 100000, 500000, 999999}

	check := func(net *big.Int, fee uint32) {
		gross, err := AmountBeforeFee(net, fee)
		if err != nil {
			t.Fatalf("AmountBeforeFee(%s, %d): %v", net, fee, err)
		}
		back := new(big.Int).Sub(gross, ComputeFee(gross, fee))
		if back.Cmp(net) != 0 {
			t.Fatalf("round trip broken: net %s fee %d gross %s back %s", net, fee, gross, back)
		}
	}

	for _, fee := range rates {
		for _, net := range []int64{0, 1, 2, 3, 997, 1000000} {
			check(big.NewInt(net), fee)
		}
		// At the steepest rate the gross runs about 2^20 times the net, so
		// a 2^100 cap keeps the gross inside the signed 128-bit range.
		for i := 0; i < 2000; i++ {
			net := new(big.Int).Rand(rng, new(big.Int).Lsh(big.NewInt(1), 100))
			check(net, fee)
		}
	}
}

func TestAmountBeforeFeeRejectsFullFee(t *testing.T) {
	if _, err := AmountBeforeFee(big.NewInt(100), FeeDenominator); err == nil {
		t.Fatalf("expected error for 100%% fee")
	}
}

func TestAmountBeforeFeeOverflow(t *testing.T) {
	if _, err := AmountBeforeFee(MaxAmount, 500000); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestFeesPerLiquidityDelta(t *testing.T) {
	got, err := FeesPerLiquidityDelta(big.NewInt(3), big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := bigFromDec(t, "1020847100762815390390123822295304")
	if got.Cmp(want) != 0 {
		t.Fatalf("accumulator delta mismatch: got %s want %s", got, want)
	}

	if _, err := FeesPerLiquidityDelta(big.NewInt(3), big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero liquidity")
	}
}
