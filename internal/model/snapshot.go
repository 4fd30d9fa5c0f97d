package model

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/pool"
	"ammcore/internal/tickmath"
)

// PoolSnapshot is the full persisted state of one pool. Big integers are
// decimal strings; the sqrt ratio is stored in its 96-bit compact hex
// form.
type PoolSnapshot struct {
	PoolID            string             `json:"pool_id"`
	Key               PoolKeyRecord      `json:"key"`
	SqrtRatio         string             `json:"sqrt_ratio"`
	Tick              int32              `json:"tick"`
	Liquidity         string             `json:"liquidity"`
	FeesPerLiquidity0 string             `json:"fees_per_liquidity0"`
	FeesPerLiquidity1 string             `json:"fees_per_liquidity1"`
	Reserve0          string             `json:"reserve0"`
	Reserve1          string             `json:"reserve1"`
	Ticks             []TickSnapshot     `json:"ticks"`
	Positions         []PositionSnapshot `json:"positions"`
}

// TickSnapshot is one live tick record.
type TickSnapshot struct {
	Tick           int32  `json:"tick"`
	LiquidityNet   string `json:"liquidity_net"`
	LiquidityGross string `json:"liquidity_gross"`
	FeesOutside0   string `json:"fees_outside0"`
	FeesOutside1   string `json:"fees_outside1"`
}

// PositionSnapshot is one position record.
type PositionSnapshot struct {
	Owner           string `json:"owner"`
	LowerTick       int32  `json:"lower_tick"`
	UpperTick       int32  `json:"upper_tick"`
	Liquidity       string `json:"liquidity"`
	FeesInsideLast0 string `json:"fees_inside_last0"`
	FeesInsideLast1 string `json:"fees_inside_last1"`
}

// SnapshotPool captures a pool's state. Ticks and positions are sorted so
// snapshots of equal state compare equal byte for byte.
func SnapshotPool(p *pool.Pool) (*PoolSnapshot, error) {
	compact, err := tickmath.EncodeCompact(p.SqrtRatio)
	if err != nil {
		return nil, fmt.Errorf("encode sqrt ratio: %w", err)
	}

	snap := &PoolSnapshot{
		PoolID:            p.Key.ID().Hex(),
		Key:               NewPoolKeyRecord(p.Key),
		SqrtRatio:         fmt.Sprintf("0x%024x", compact),
		Tick:              p.Tick,
		Liquidity:         p.Liquidity.String(),
		FeesPerLiquidity0: p.FeesPerLiquidity0.String(),
		FeesPerLiquidity1: p.FeesPerLiquidity1.String(),
		Reserve0:          p.Reserve0.String(),
		Reserve1:          p.Reserve1.String(),
	}

	p.EachTick(func(tick int32, info *pool.TickInfo) {
		snap.Ticks = append(snap.Ticks, TickSnapshot{
			Tick:           tick,
			LiquidityNet:   info.LiquidityNet.String(),
			LiquidityGross: info.LiquidityGross.String(),
			FeesOutside0:   info.FeesOutside0.String(),
			FeesOutside1:   info.FeesOutside1.String(),
		})
	})
	sort.Slice(snap.Ticks, func(i, j int) bool { return snap.Ticks[i].Tick < snap.Ticks[j].Tick })

	p.EachPosition(func(owner common.Address, bounds pool.Bounds, pos *pool.Position) {
		snap.Positions = append(snap.Positions, PositionSnapshot{
			Owner:           owner.Hex(),
			LowerTick:       bounds.Lower,
			UpperTick:       bounds.Upper,
			Liquidity:       pos.Liquidity.String(),
			FeesInsideLast0: pos.FeesInsideLast0.String(),
			FeesInsideLast1: pos.FeesInsideLast1.String(),
		})
	})
	sort.Slice(snap.Positions, func(i, j int) bool {
		a, b := snap.Positions[i], snap.Positions[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.LowerTick != b.LowerTick {
			return a.LowerTick < b.LowerTick
		}
		return a.UpperTick < b.UpperTick
	})
	return snap, nil
}

// Pool reconstructs the engine pool from the snapshot.
func (s *PoolSnapshot) Pool() (*pool.Pool, error) {
	key, err := s.Key.Key()
	if err != nil {
		return nil, err
	}
	compact, ok := new(big.Int).SetString(s.SqrtRatio, 0)
	if !ok {
		return nil, fmt.Errorf("invalid sqrt ratio %q", s.SqrtRatio)
	}
	sqrtRatio, err := tickmath.DecodeCompact(compact)
	if err != nil {
		return nil, err
	}

	liquidity, err := parseBig(s.Liquidity)
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}
	fees0, err := parseBig(s.FeesPerLiquidity0)
	if err != nil {
		return nil, fmt.Errorf("fees_per_liquidity0: %w", err)
	}
	fees1, err := parseBig(s.FeesPerLiquidity1)
	if err != nil {
		return nil, fmt.Errorf("fees_per_liquidity1: %w", err)
	}
	reserve0, err := parseBig(s.Reserve0)
	if err != nil {
		return nil, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := parseBig(s.Reserve1)
	if err != nil {
		return nil, fmt.Errorf("reserve1: %w", err)
	}

	p, err := pool.Restore(key, sqrtRatio, s.Tick, liquidity, fees0, fees1, reserve0, reserve1)
	if err != nil {
		return nil, err
	}

	for _, ts := range s.Ticks {
		net, err := parseBig(ts.LiquidityNet)
		if err != nil {
			return nil, fmt.Errorf("tick %d net: %w", ts.Tick, err)
		}
		gross, err := parseBig(ts.LiquidityGross)
		if err != nil {
			return nil, fmt.Errorf("tick %d gross: %w", ts.Tick, err)
		}
		out0, err := parseBig(ts.FeesOutside0)
		if err != nil {
			return nil, fmt.Errorf("tick %d fees_outside0: %w", ts.Tick, err)
		}
		out1, err := parseBig(ts.FeesOutside1)
		if err != nil {
			return nil, fmt.Errorf("tick %d fees_outside1: %w", ts.Tick, err)
		}
		if err := p.RestoreTick(ts.Tick, net, gross, out0, out1); err != nil {
			return nil, err
		}
	}

	for _, ps := range s.Positions {
		owner, err := parseAddress(ps.Owner)
		if err != nil {
			return nil, fmt.Errorf("position owner: %w", err)
		}
		liq, err := parseBig(ps.Liquidity)
		if err != nil {
			return nil, fmt.Errorf("position liquidity: %w", err)
		}
		last0, err := parseBig(ps.FeesInsideLast0)
		if err != nil {
			return nil, fmt.Errorf("position fees_inside_last0: %w", err)
		}
		last1, err := parseBig(ps.FeesInsideLast1)
		if err != nil {
			return nil, fmt.Errorf("position fees_inside_last1: %w", err)
		}
		bounds := pool.Bounds{Lower: ps.LowerTick, Upper: ps.UpperTick}
		if err := p.RestorePosition(owner, bounds, liq, last0, last1); err != nil {
			return nil, err
		}
	}
	return p, nil
}
