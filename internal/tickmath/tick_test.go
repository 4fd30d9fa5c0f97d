package tickmath

import (
	"math/big"
	"testing"
)

func bigFromDec(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad decimal literal: %s", s)
	}
	return v
}

func TestTickToSqrtRatioVectors(t *testing.T) {
	vectors := []struct {
		tick int32
		want string
	}{
		{-88722835, "18447191162625196032"},
		{-88722834, "18447200371035078656"},
		{-10000000, "2292810285051363400276741630355046400"},
		{-1000000, "206391740095027370700312310528859963392"},
		{-100000, "323686608146104804031747792829574807552"},
		{-1000, "340112268350713539826535022309010309120"},
		{-100, "340265353236444914223731134821067390976"},
		{-2, "340282026638911824551550055866842480640"},
		{-1, "340282196779882608775400081047712432128"},
		{0, "340282366920938463463374607431768211456"},
		{1, "340282537062079388641046796912818126848"},
		{2, "340282707203305384373215807553702723584"},
		{100, "340299381456137079471790513880725192704"},
		{1000, "340452550561671819057342578658673426432"},
		{100000, "357729008007184124216479175967204442112"},
		{1000000, "561030636129153856579134353873645338624"},
		{10000000, "50502254805927926084423855178401471004672"},
		{88722834, "6276946463590405995231569687814752028850240276668948152320"},
		{88722835, "6276949602062853172742588666607187473671941430179807625216"},
	}

	for _, vec := range vectors {
		got, err := TickToSqrtRatio(vec.tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", vec.tick, err)
		}
		if got.Cmp(bigFromDec(t, vec.want)) != 0 {
			t.Fatalf("tick %d: ratio mismatch: got %s want %s", vec.tick, got, vec.want)
		}
	}
}

func TestTickToSqrtRatioBounds(t *testing.T) {
	if _, err := TickToSqrtRatio(MinTick - 1); err == nil {
		t.Fatalf("expected error below MinTick")
	}
	if _, err := TickToSqrtRatio(MaxTick + 1); err == nil {
		t.Fatalf("expected error above MaxTick")
	}
	one, err := TickToSqrtRatio(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if one.Cmp(Q128) != 0 {
		t.Fatalf("tick 0 should be exactly 1.0 in Q128, got %s", one)
	}
}

func TestTickToSqrtRatioMonotonic(t *testing.T) {
	ticks := []int32{MinTick, -44000000, -1000001, -1000000, -2, -1, 0, 1, 2, 1000000, 44000000, MaxTick - 1}
	for _, tick := range ticks {
		a, err := TickToSqrtRatio(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		b, err := TickToSqrtRatio(tick + 1)
		if err != nil {
			t.Fatalf("tick %d: %v", tick+1, err)
		}
		if b.Cmp(a) <= 0 {
			t.Fatalf("ratio not strictly increasing at tick %d", tick)
		}
	}
}

func TestSqrtRatioToTickRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, -12345, -5, -1, 0, 1, 5, 12345, 7000000, MaxTick}
	for _, tick := range ticks {
		ratio, err := TickToSqrtRatio(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		got, err := SqrtRatioToTick(ratio)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if got != tick {
			t.Fatalf("round trip mismatch: tick %d -> %d", tick, got)
		}
	}
}

func TestSqrtRatioToTickFloor(t *testing.T) {
	// A ratio strictly between tick 100 and tick 101 must floor to 100.
	a, err := TickToSqrtRatio(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := TickToSqrtRatio(101)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mid := FloorToGrid(new(big.Int).Div(new(big.Int).Add(a, b), big.NewInt(2)))
	got, err := SqrtRatioToTick(mid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 100 {
		t.Fatalf("floor mismatch: got %d want 100", got)
	}
}

func TestSqrtRatioToTickRejectsOutOfRange(t *testing.T) {
	below := new(big.Int).Sub(MinSqrtRatio, big.NewInt(1))
	if _, err := SqrtRatioToTick(below); err == nil {
		t.Fatalf("expected error below MinSqrtRatio")
	}
	above := new(big.Int).Add(MaxSqrtRatio, big.NewInt(1))
	if _, err := SqrtRatioToTick(above); err == nil {
		t.Fatalf("expected error above MaxSqrtRatio")
	}
}
