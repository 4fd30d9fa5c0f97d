package pool

import (
	"fmt"
	"math/big"

	"ammcore/internal/tickmath"
)

// TickInfo is the per-tick record. It exists only while some position uses
// the tick as a boundary (LiquidityGross > 0).
type TickInfo struct {
	// LiquidityNet is the signed liquidity delta applied when the tick is
	// crossed moving up (negated moving down).
	LiquidityNet *big.Int
	// LiquidityGross is the total liquidity referencing this tick,
	// used for existence and spacing bookkeeping.
	LiquidityGross *big.Int
	// FeesOutside0/1 are the fees-per-liquidity accumulated on the far
	// side of this tick relative to the current price, one per token.
	FeesOutside0 *big.Int
	FeesOutside1 *big.Int
}

func newTickInfo() *TickInfo {
	return &TickInfo{
		LiquidityNet:   new(big.Int),
		LiquidityGross: new(big.Int),
		FeesOutside0:   new(big.Int),
		FeesOutside1:   new(big.Int),
	}
}

func (t *TickInfo) clone() *TickInfo {
	return &TickInfo{
		LiquidityNet:   new(big.Int).Set(t.LiquidityNet),
		LiquidityGross: new(big.Int).Set(t.LiquidityGross),
		FeesOutside0:   new(big.Int).Set(t.FeesOutside0),
		FeesOutside1:   new(big.Int).Set(t.FeesOutside1),
	}
}

// cross flips the outside accumulators to the other side of the tick:
// outside' = global - outside. Crossing back with the same globals is an
// exact involution.
func (t *TickInfo) cross(global0, global1 *big.Int) {
	t.FeesOutside0 = new(big.Int).Sub(global0, t.FeesOutside0)
	t.FeesOutside1 = new(big.Int).Sub(global1, t.FeesOutside1)
}

// spacing returns the effective boundary alignment step.
func (p *Pool) spacing() int32 {
	if p.Key.Config.FullRange() {
		return 1
	}
	return int32(p.Key.Config.TickSpacing)
}

// compress maps a tick to its bitmap index. Go's arithmetic shift gives
// floor division for the word split; the low byte selects the bit.
func compress(tick, spacing int32) int32 {
	c := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		c--
	}
	return c
}

func bitmapPosition(c int32) (word int32, bit uint) {
	return c >> 8, uint(c & 255)
}

// flipTick toggles a tick's initialized bit.
func (p *Pool) flipTick(tick int32) error {
	spacing := p.spacing()
	if tick%spacing != 0 {
		return fmt.Errorf("%w: tick %d spacing %d", ErrTickSpacing, tick, spacing)
	}
	word, bit := bitmapPosition(compress(tick, spacing))
	bits, ok := p.bitmap[word]
	if !ok {
		bits = new(big.Int)
		p.bitmap[word] = bits
	}
	mask := new(big.Int).Lsh(big.NewInt(1), bit)
	bits.Xor(bits, mask)
	if bits.Sign() == 0 {
		delete(p.bitmap, word)
	}
	return nil
}

// nextInitializedTick finds the nearest initialized tick strictly below
// (down) or above (up) the current position, or reports the range bound
// when none exists. fromTick is the tick the search starts from; when
// moving up the search starts above fromTick, when moving down it starts
// at or below fromTick.
func (p *Pool) nextInitializedTick(fromTick int32, up bool) (int32, bool) {
	spacing := p.spacing()
	c := compress(fromTick, spacing)
	if up {
		c++
	}
	word, bit := bitmapPosition(c)

	if bits, ok := p.bitmap[word]; ok {
		if found, fbit := scanWord(bits, bit, up); found {
			return uncompress(word, fbit, spacing), true
		}
	}

	// No bit in the current word: jump to the nearest populated word in
	// the direction of travel. The bitmap only holds words with at least
	// one live tick, so this scan is proportional to tick density, not
	// price distance.
	bestFound := false
	var bestWord int32
	for w := range p.bitmap {
		if up && w > word && (!bestFound || w < bestWord) {
			bestWord, bestFound = w, true
		}
		if !up && w < word && (!bestFound || w > bestWord) {
			bestWord, bestFound = w, true
		}
	}
	if bestFound {
		start := uint(0)
		if !up {
			start = 255
		}
		if found, fbit := scanWord(p.bitmap[bestWord], start, up); found {
			return uncompress(bestWord, fbit, spacing), true
		}
	}

	if up {
		return tickmath.MaxTick, false
	}
	return tickmath.MinTick, false
}

// scanWord finds the first set bit at or beyond start in the given
// direction.
func scanWord(bits *big.Int, start uint, up bool) (bool, uint) {
	if up {
		for b := start; b < 256; b++ {
			if bits.Bit(int(b)) == 1 {
				return true, b
			}
		}
		return false, 0
	}
	for b := int(start); b >= 0; b-- {
		if bits.Bit(b) == 1 {
			return true, uint(b)
		}
	}
	return false, 0
}

func uncompress(word int32, bit uint, spacing int32) int32 {
	return (word*256 + int32(bit)) * spacing
}
