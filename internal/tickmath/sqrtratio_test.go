package tickmath

import (
	"math/big"
	"testing"
)

func TestGridSnapDirections(t *testing.T) {
	// A value just above 1.0 in Q128, off-grid.
	v := new(big.Int).Add(Q128, big.NewInt(12345))
	down := FloorToGrid(v)
	up := CeilToGrid(v)
	if down.Cmp(v) >= 0 {
		t.Fatalf("floor did not round down")
	}
	if up.Cmp(v) <= 0 {
		t.Fatalf("ceil did not round up")
	}
	if !OnGrid(down) || !OnGrid(up) {
		t.Fatalf("snapped values must be on grid")
	}
	if FloorToGrid(down).Cmp(down) != 0 || CeilToGrid(up).Cmp(up) != 0 {
		t.Fatalf("snapping a grid value must be the identity")
	}
}

func TestGridBandBoundary(t *testing.T) {
	// Rounding up from just below 2^128 lands exactly on the band edge,
	// which must be representable in the next band.
	below := new(big.Int).Sub(Q128, big.NewInt(1))
	up := CeilToGrid(below)
	if up.Cmp(Q128) != 0 {
		t.Fatalf("ceil across band edge: got %s want %s", up, Q128)
	}
	if !OnGrid(up) {
		t.Fatalf("band edge must be on grid")
	}
}

func TestCompactRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, -1000000, -1, 0, 1, 1000000, MaxTick}
	for _, tick := range ticks {
		ratio, err := TickToSqrtRatio(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		compact, err := EncodeCompact(ratio)
		if err != nil {
			t.Fatalf("tick %d: encode: %v", tick, err)
		}
		if compact.BitLen() > 96 {
			t.Fatalf("tick %d: compact form exceeds 96 bits", tick)
		}
		back, err := DecodeCompact(compact)
		if err != nil {
			t.Fatalf("tick %d: decode: %v", tick, err)
		}
		if back.Cmp(ratio) != 0 {
			t.Fatalf("tick %d: compact round trip mismatch: %s != %s", tick, back, ratio)
		}
	}
}

func TestEncodeCompactRejectsOffGrid(t *testing.T) {
	v := new(big.Int).Add(Q128, big.NewInt(1))
	if _, err := EncodeCompact(v); err == nil {
		t.Fatalf("expected error for off-grid value")
	}
}
