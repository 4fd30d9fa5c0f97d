package tickmath

import (
	"errors"
	"fmt"
	"math/big"
)

// Ticks index the price curve: price = 1.000001^tick. The bounds keep the
// square root of the price, in 64.128 fixed point, inside [2^64, 2^192).
const (
	MinTick int32 = -88722835
	MaxTick int32 = 88722835
)

var (
	ErrTickOutOfRange      = errors.New("tick out of range")
	ErrSqrtRatioOutOfRange = errors.New("sqrt ratio out of range")
)

// tickFactors[i] is (1/sqrt(1.000001))^(2^i) in Q128, one entry per bit of
// the absolute tick value (|tick| < 2^27).
var tickFactors = mustFactors([]string{
	"fffff79c8499329c7cbb2510d893283a",
	"ffffef390978c398134b4ff3764fe40f",
	"ffffde72140b00a354bd3dc828e976c9",
	"ffffbce42c7be6c998ad6318193c0b18",
	"ffff79c86a8f6150a32d9778eceef97b",
	"fffef3911b7cff24ba1b3dbb5f8f5974",
	"fffde72350725cc4ea8feece3b5f13c7",
	"fffbce4b06c196e9247ac87695d53c5f",
	"fff79ca7a4d1bf1ee8556cea23cdbaa5",
	"ffef3995a5b6a6267530f207142a5763",
	"ffde7444b28145508125d10077ba83b8",
	"ffbceceeb791747f10df216f2e53ec56",
	"ff79eb706b9a64c6431d76e63531e929",
	"fef41d1a5f2ae3a20676bec6f7f94599",
	"fde95287d26d81bea159c37073122c73",
	"fbd701c7cbc4c8a6bb81efd232d1e4e7",
	"f7bf5211c72f5185f372aeb1d48f937d",
	"efc2bf59df33ecc28125cf78ec4f167f",
	"e08d35706200796273f0b3a981d90cfd",
	"c4f76b68947482dc198a48a54348c4ed",
	"978bcb9894317807e5fa4498eee7c0fa",
	"59b63684b86e9f486ec54727371ba6c9",
	"1f703399d88f6aa83a28b22d4a1f56e3",
	"3dc5dac7376e20fc8679758d1bcdcfb",
	"ee7e32d61fdb0a5e622b820f681d0",
	"de2ee4bc381afa7089aa84bb65",
	"c0d55d4d7152c25fb139",
})

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(one, 256), one)

// MinSqrtRatio and MaxSqrtRatio are the sqrt ratios at the tick bounds,
// already on the compact grid.
var (
	MinSqrtRatio = mustTickToSqrtRatio(MinTick)
	MaxSqrtRatio = mustTickToSqrtRatio(MaxTick)
)

func mustFactors(hexes []string) []*big.Int {
	out := make([]*big.Int, len(hexes))
	for i, h := range hexes {
		v, ok := new(big.Int).SetString(h, 16)
		if !ok {
			panic(fmt.Sprintf("bad tick factor %q", h))
		}
		out[i] = v
	}
	return out
}

func mustTickToSqrtRatio(tick int32) *big.Int {
	r, err := TickToSqrtRatio(tick)
	if err != nil {
		panic(err)
	}
	return r
}

// TickToSqrtRatio returns sqrt(1.000001^tick) in 64.128 fixed point,
// snapped down onto the compact grid. The result is deterministic and
// strictly monotonic in tick.
func TickToSqrtRatio(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}

	abs := uint32(tick)
	if tick < 0 {
		abs = uint32(-tick)
	}

	ratio := new(big.Int).Set(Q128)
	for i := 0; i < len(tickFactors); i++ {
		if abs>>uint(i)&1 == 1 {
			ratio.Mul(ratio, tickFactors[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}
	return FloorToGrid(ratio), nil
}

// SqrtRatioToTick returns the largest tick whose sqrt ratio does not exceed
// the given value (floor semantics).
func SqrtRatioToTick(sqrtRatio *big.Int) (int32, error) {
	if sqrtRatio.Cmp(MinSqrtRatio) < 0 || sqrtRatio.Cmp(MaxSqrtRatio) > 0 {
		return 0, ErrSqrtRatioOutOfRange
	}

	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := int32((int64(lo) + int64(hi) + 1) / 2)
		r, err := TickToSqrtRatio(mid)
		if err != nil {
			return 0, err
		}
		if r.Cmp(sqrtRatio) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}
