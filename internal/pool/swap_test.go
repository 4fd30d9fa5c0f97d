package pool

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/tickmath"
)

var (
	testToken0 = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testToken1 = common.HexToAddress("0x0000000000000000000000000000000000000002")
	testOwner  = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big literal %q", s)
	}
	return v
}

// newTestPool initializes a pool at tick 0 with the given fee and spacing.
func newTestPool(t *testing.T, fee, spacing uint32) *Pool {
	t.Helper()
	p, err := New(Key{
		Token0: testToken0,
		Token1: testToken1,
		Config: Config{Fee: fee, TickSpacing: spacing},
	}, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func addFullRange(t *testing.T, p *Pool, liquidity int64) {
	t.Helper()
	_, _, err := p.UpdateLiquidity(testOwner, Bounds{Lower: tickmath.MinTick, Upper: tickmath.MaxTick}, big.NewInt(liquidity))
	if err != nil {
		t.Fatalf("UpdateLiquidity: %v", err)
	}
}

func TestSwapExactInputToken1(t *testing.T) {
	p := newTestPool(t, 3000, 0)
	addFullRange(t, p, 1_000_000)

	res, err := p.Swap(SwapParams{Amount: big.NewInt(1000), IsToken1: true})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	if res.Delta1.Int64() != 1000 {
		t.Fatalf("delta1 = %s, want 1000", res.Delta1)
	}
	if res.Delta0.Int64() != -996 {
		t.Fatalf("delta0 = %s, want -996", res.Delta0)
	}
	if res.FeesPaid.Int64() != 3 {
		t.Fatalf("fee = %s, want 3", res.FeesPaid)
	}

	wantRatio := mustBig(t, "340621628440758639056823978808024498176")
	if res.SqrtRatioAfter.Cmp(wantRatio) != 0 {
		t.Fatalf("sqrt ratio after = %s, want %s", res.SqrtRatioAfter, wantRatio)
	}
	if res.TickAfter != 1993 {
		t.Fatalf("tick after = %d, want 1993", res.TickAfter)
	}

	// The whole 3-unit fee lands in the token1 accumulator for the only
	// liquidity in range.
	wantAcc := mustBig(t, "1020847100762815390390123822295304")
	if p.FeesPerLiquidity1.Cmp(wantAcc) != 0 {
		t.Fatalf("fees per liquidity 1 = %s, want %s", p.FeesPerLiquidity1, wantAcc)
	}
	if p.FeesPerLiquidity0.Sign() != 0 {
		t.Fatalf("fees per liquidity 0 moved: %s", p.FeesPerLiquidity0)
	}
}

func TestSwapExactOutput(t *testing.T) {
	p := newTestPool(t, 3000, 0)
	addFullRange(t, p, 1_000_000)

	startRatio := new(big.Int).Set(p.SqrtRatio)
	res, err := p.Swap(SwapParams{Amount: big.NewInt(-500), IsToken1: false})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	// Exact output delivers exactly what was asked, and the input charged
	// covers the price movement plus the fee.
	if res.Delta0.Int64() != -500 {
		t.Fatalf("delta0 = %s, want -500", res.Delta0)
	}
	if res.Delta1.Sign() <= 0 {
		t.Fatalf("delta1 = %s, want positive input", res.Delta1)
	}
	if res.FeesPaid.Sign() <= 0 {
		t.Fatalf("fee = %s, want positive", res.FeesPaid)
	}
	if res.SqrtRatioAfter.Cmp(startRatio) <= 0 {
		t.Fatalf("taking token0 out must move the price up")
	}
	if p.Reserve0.Sign() < 0 || p.Reserve1.Sign() < 0 {
		t.Fatalf("reserves went negative: %s / %s", p.Reserve0, p.Reserve1)
	}
}

func TestSwapPriceLimitPartialFill(t *testing.T) {
	p := newTestPool(t, 3000, 0)
	addFullRange(t, p, 1_000_000)

	limit, err := tickmath.TickToSqrtRatio(100)
	if err != nil {
		t.Fatalf("TickToSqrtRatio: %v", err)
	}
	res, err := p.Swap(SwapParams{Amount: big.NewInt(1_000_000), IsToken1: true, SqrtRatioLimit: limit})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	if res.SqrtRatioAfter.Cmp(limit) != 0 {
		t.Fatalf("price must stop at the limit: got %s want %s", res.SqrtRatioAfter, limit)
	}
	if res.Delta1.Cmp(big.NewInt(1_000_000)) >= 0 {
		t.Fatalf("limit hit must leave input unconsumed: %s", res.Delta1)
	}
	if res.Delta1.Sign() <= 0 {
		t.Fatalf("partial fill must still consume some input: %s", res.Delta1)
	}
}

func TestSwapLimitWrongSide(t *testing.T) {
	p := newTestPool(t, 3000, 0)
	addFullRange(t, p, 1_000_000)

	below, err := tickmath.TickToSqrtRatio(-100)
	if err != nil {
		t.Fatalf("TickToSqrtRatio: %v", err)
	}
	// Buying with token1 moves the price up; a limit below is unusable.
	_, err = p.Swap(SwapParams{Amount: big.NewInt(1000), IsToken1: true, SqrtRatioLimit: below})
	if !errors.Is(err, ErrSqrtRatioLimitDirection) {
		t.Fatalf("expected ErrSqrtRatioLimitDirection, got %v", err)
	}
}

func TestSwapExhaustsRangeParksAtMinTick(t *testing.T) {
	p := newTestPool(t, 0, 0)
	addFullRange(t, p, 1_000_000)

	amount := new(big.Int).Lsh(big.NewInt(1), 100)
	res, err := p.Swap(SwapParams{Amount: amount, IsToken1: false})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}

	if res.TickAfter != tickmath.MinTick {
		t.Fatalf("tick after = %d, want %d", res.TickAfter, tickmath.MinTick)
	}
	if res.SqrtRatioAfter.Cmp(tickmath.MinSqrtRatio) != 0 {
		t.Fatalf("sqrt ratio after = %s, want min", res.SqrtRatioAfter)
	}
	if res.LiquidityAfter.Sign() != 0 {
		t.Fatalf("crossing the lower bound must deactivate all liquidity: %s", res.LiquidityAfter)
	}
	// The full-range position cannot absorb 2^100 token0; the swap is a
	// partial fill.
	if res.Delta0.Cmp(amount) >= 0 {
		t.Fatalf("input fully consumed against a finite range: %s", res.Delta0)
	}
}

func TestSwapCrossesTickAndBack(t *testing.T) {
	p := newTestPool(t, 0, 1)
	bounds := Bounds{Lower: -100, Upper: 100}
	if _, _, err := p.UpdateLiquidity(testOwner, bounds, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("UpdateLiquidity: %v", err)
	}

	// Swap far enough up to leave the range entirely.
	up, err := p.Swap(SwapParams{Amount: big.NewInt(10_000), IsToken1: true})
	if err != nil {
		t.Fatalf("Swap up: %v", err)
	}
	if up.LiquidityAfter.Sign() != 0 {
		t.Fatalf("liquidity after leaving the range = %s, want 0", up.LiquidityAfter)
	}
	if up.TickAfter < 100 {
		t.Fatalf("tick after = %d, want >= 100", up.TickAfter)
	}
	// Only the in-range part of the input trades; the rest glides the
	// price without counterparty.
	if up.Delta0.Sign() >= 0 {
		t.Fatalf("no token0 came out: %s", up.Delta0)
	}

	// Swap back down: re-entering the range at its upper boundary must
	// restore the liquidity. The amount is small enough to stay inside
	// the range once back in it.
	down, err := p.Swap(SwapParams{Amount: big.NewInt(50), IsToken1: false})
	if err != nil {
		t.Fatalf("Swap down: %v", err)
	}
	if down.LiquidityAfter.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("liquidity after re-entry = %s, want 1000000", down.LiquidityAfter)
	}
	if down.TickAfter >= 100 {
		t.Fatalf("tick after re-entry = %d, want < 100", down.TickAfter)
	}
}

func TestSwapEmptyPoolMovesPriceOnly(t *testing.T) {
	p := newTestPool(t, 3000, 0)

	res, err := p.Swap(SwapParams{Amount: big.NewInt(1000), IsToken1: true})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if res.Delta0.Sign() != 0 || res.Delta1.Sign() != 0 {
		t.Fatalf("empty pool traded tokens: %s / %s", res.Delta0, res.Delta1)
	}
	if res.SqrtRatioAfter.Cmp(tickmath.MaxSqrtRatio) != 0 {
		t.Fatalf("price must glide to the bound: %s", res.SqrtRatioAfter)
	}
}

func TestSwapZeroAmountNoop(t *testing.T) {
	p := newTestPool(t, 3000, 0)
	addFullRange(t, p, 1_000_000)

	before := new(big.Int).Set(p.SqrtRatio)
	res, err := p.Swap(SwapParams{Amount: new(big.Int), IsToken1: true})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if res.Delta0.Sign() != 0 || res.Delta1.Sign() != 0 {
		t.Fatalf("zero swap moved tokens")
	}
	if p.SqrtRatio.Cmp(before) != 0 {
		t.Fatalf("zero swap moved the price")
	}
}

func TestSwapDustInputBecomesFee(t *testing.T) {
	p := newTestPool(t, 500_000, 0)
	addFullRange(t, p, 1_000_000)

	// At a 50% fee a 1-unit input nets to zero and cannot move the price;
	// the unit is kept as a fee rather than refused.
	res, err := p.Swap(SwapParams{Amount: big.NewInt(1), IsToken1: true})
	if err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if res.Delta1.Int64() != 1 {
		t.Fatalf("delta1 = %s, want 1", res.Delta1)
	}
	if res.Delta0.Sign() != 0 {
		t.Fatalf("delta0 = %s, want 0", res.Delta0)
	}
	if res.FeesPaid.Int64() != 1 {
		t.Fatalf("fee = %s, want 1", res.FeesPaid)
	}
	if res.SqrtRatioAfter.Cmp(p.SqrtRatio) != 0 {
		t.Fatalf("price must not move")
	}
}

// A swap that fails after crossing a tick must leave the pool exactly as
// it found it, tick records included, not half-crossed.
func TestSwapErrorLeavesTicksUntouched(t *testing.T) {
	key := Key{
		Token0: testToken0,
		Token1: testToken1,
		Config: Config{Fee: 0, TickSpacing: 1},
	}
	ratio, err := tickmath.TickToSqrtRatio(0)
	if err != nil {
		t.Fatalf("TickToSqrtRatio: %v", err)
	}
	// Reserves far below what the range can pay out, so the swap fails at
	// the reserve check after the tick at 100 has been crossed.
	p, err := Restore(key, ratio, 0, big.NewInt(1_000_000), new(big.Int), new(big.Int), big.NewInt(5), big.NewInt(5))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := p.RestoreTick(-100, big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(7), big.NewInt(11)); err != nil {
		t.Fatalf("RestoreTick(-100): %v", err)
	}
	if err := p.RestoreTick(100, big.NewInt(-1_000_000), big.NewInt(1_000_000), big.NewInt(7), big.NewInt(11)); err != nil {
		t.Fatalf("RestoreTick(100): %v", err)
	}

	_, err = p.Swap(SwapParams{Amount: big.NewInt(200), IsToken1: true})
	if !errors.Is(err, ErrReserveUnderflow) {
		t.Fatalf("expected ErrReserveUnderflow, got %v", err)
	}

	info := p.TickRecord(100)
	if info == nil {
		t.Fatalf("tick record lost by failed swap")
	}
	if info.FeesOutside0.Int64() != 7 || info.FeesOutside1.Int64() != 11 {
		t.Fatalf("failed swap flipped tick checkpoints: %s / %s", info.FeesOutside0, info.FeesOutside1)
	}
	if p.Tick != 0 || p.SqrtRatio.Cmp(ratio) != 0 {
		t.Fatalf("failed swap moved the price: tick %d ratio %s", p.Tick, p.SqrtRatio)
	}
	if p.Liquidity.Int64() != 1_000_000 {
		t.Fatalf("failed swap changed liquidity: %s", p.Liquidity)
	}
}
