package tickmath

import (
	"math/big"
	"testing"
)

func TestNextSqrtRatioFromToken1Input(t *testing.T) {
	liquidity := big.NewInt(1_000_000)
	next, err := NextSqrtRatioFromInput(Q128, liquidity, big.NewInt(997), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := bigFromDec(t, "340621628440758639056823978808024498176")
	if next.Cmp(want) != 0 {
		t.Fatalf("next ratio mismatch: got %s want %s", next, want)
	}

	// The payer is charged at most what was offered.
	charged, err := Amount1Delta(Q128, next, liquidity, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if charged.Cmp(big.NewInt(997)) > 0 {
		t.Fatalf("recomputed input exceeds offered amount: %s", charged)
	}
}

func TestNextSqrtRatioFromToken0InputNeverOvercredits(t *testing.T) {
	liquidity := big.NewInt(5_000_000)
	for _, in := range []int64{1, 13, 997, 100000, 123456789} {
		next, err := NextSqrtRatioFromInput(Q128, liquidity, big.NewInt(in), false)
		if err != nil {
			t.Fatalf("in %d: %v", in, err)
		}
		if next.Cmp(Q128) >= 0 {
			t.Fatalf("in %d: token0 input must move price down", in)
		}
		charged, err := Amount0Delta(next, Q128, liquidity, true)
		if err != nil {
			t.Fatalf("in %d: %v", in, err)
		}
		if charged.Cmp(big.NewInt(in)) > 0 {
			t.Fatalf("in %d: recomputed input %s exceeds offered amount", in, charged)
		}
	}
}

func TestNextSqrtRatioFromOutputCoversRequest(t *testing.T) {
	liquidity := big.NewInt(5_000_000)
	for _, out := range []int64{1, 13, 997, 100000} {
		next, err := NextSqrtRatioFromOutput(Q128, liquidity, big.NewInt(out), true)
		if err != nil {
			t.Fatalf("out %d: %v", out, err)
		}
		if next.Cmp(Q128) >= 0 {
			t.Fatalf("out %d: token1 output must move price down", out)
		}
		delivered, err := Amount1Delta(next, Q128, liquidity, false)
		if err != nil {
			t.Fatalf("out %d: %v", out, err)
		}
		if delivered.Cmp(big.NewInt(out)) < 0 {
			t.Fatalf("out %d: price movement delivers only %s", out, delivered)
		}
	}
}

func TestNextSqrtRatioFromOutputExhausted(t *testing.T) {
	liquidity := big.NewInt(1000)
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	if _, err := NextSqrtRatioFromOutput(Q128, liquidity, huge, true); err == nil {
		t.Fatalf("expected exhaustion error for oversized token1 output")
	}
	if _, err := NextSqrtRatioFromOutput(Q128, liquidity, huge, false); err == nil {
		t.Fatalf("expected exhaustion error for oversized token0 output")
	}
}

func TestAmountDeltaRounding(t *testing.T) {
	lower, err := TickToSqrtRatio(-1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upper, err := TickToSqrtRatio(1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	liquidity := big.NewInt(1_000_003)

	down0, err := Amount0Delta(lower, upper, liquidity, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	up0, err := Amount0Delta(lower, upper, liquidity, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diff := new(big.Int).Sub(up0, down0)
	if diff.Sign() < 0 || diff.Cmp(big.NewInt(2)) > 0 {
		t.Fatalf("round-up must exceed round-down by at most the rounding slack, diff %s", diff)
	}

	down1, err := Amount1Delta(lower, upper, liquidity, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	up1, err := Amount1Delta(lower, upper, liquidity, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diff = new(big.Int).Sub(up1, down1)
	if diff.Sign() < 0 || diff.Cmp(big.NewInt(1)) > 0 {
		t.Fatalf("amount1 rounding slack out of range: %s", diff)
	}

	// Argument order must not matter.
	swapped, err := Amount0Delta(upper, lower, liquidity, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swapped.Cmp(up0) != 0 {
		t.Fatalf("delta must be symmetric in ratio order")
	}
}

func TestAmountDeltaOverflow(t *testing.T) {
	if _, err := Amount1Delta(MinSqrtRatio, MaxSqrtRatio, MaxLiquidity, true); err == nil {
		t.Fatalf("expected overflow error")
	}
}
