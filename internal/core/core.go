// Package core is the singleton entry point tying the lock ledger, the
// pool engine, and the extension dispatcher together. All pool state lives
// behind one Core; every mutation happens inside a lock scope and either
// settles its debts or rolls back completely.
package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"ammcore/internal/ext"
	"ammcore/internal/ledger"
	"ammcore/internal/pool"
)

var (
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")
	ErrPoolNotFound           = errors.New("pool not found")
	ErrNotExtension           = errors.New("caller is not the pool's extension")
)

// Core owns every pool. Top-level calls are serialized; the pool registry
// itself is safe for concurrent reads from inspection paths.
type Core struct {
	mu       sync.Mutex
	pools    *xsync.MapOf[common.Hash, *pool.Pool]
	hooks    *ext.Dispatcher
	balances ledger.BalanceReader
	log      *zap.Logger
}

// New builds a Core over the given balance view. A nil dispatcher means no
// extensions; a nil logger disables logging.
func New(balances ledger.BalanceReader, hooks *ext.Dispatcher, log *zap.Logger) *Core {
	if hooks == nil {
		hooks = ext.NewDispatcher()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Core{
		pools:    xsync.NewMapOf[common.Hash, *pool.Pool](),
		hooks:    hooks,
		balances: balances,
		log:      log,
	}
}

// Extensions exposes the hook registry for extension registration.
func (c *Core) Extensions() *ext.Dispatcher { return c.hooks }

// Lock opens the top-level scope for locker and runs fn inside it. When fn
// or debt settlement fails, every pool is restored to its pre-call state:
// a top-level call is all-or-nothing.
func (c *Core) Lock(locker common.Address, fn func(*ledger.Scope) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.snapshotPools()
	session := ledger.NewSession(c.balances, c.log)
	if err := session.Enter(locker, fn); err != nil {
		c.restorePools(snapshot)
		c.log.Debug("top-level call rolled back",
			zap.String("locker", locker.Hex()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (c *Core) snapshotPools() map[common.Hash]*pool.Pool {
	snap := make(map[common.Hash]*pool.Pool)
	c.pools.Range(func(id common.Hash, p *pool.Pool) bool {
		snap[id] = p.Clone()
		return true
	})
	return snap
}

func (c *Core) restorePools(snap map[common.Hash]*pool.Pool) {
	c.pools.Clear()
	for id, p := range snap {
		c.pools.Store(id, p)
	}
}

func (c *Core) poolFor(key pool.Key) (*pool.Pool, error) {
	p, ok := c.pools.Load(key.ID())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, key.ID())
	}
	return p, nil
}

// InitializePool creates the pool for key at the given tick and returns its
// initial sqrt ratio. A pool can be initialized exactly once.
func (c *Core) InitializePool(sc *ledger.Scope, key pool.Key, tick int32) (*big.Int, error) {
	if key.Config.Extension != (common.Address{}) && !c.hooks.Registered(key.Config.Extension) {
		return nil, fmt.Errorf("%w: %s", ext.ErrExtensionNotRegistered, key.Config.Extension)
	}
	id := key.ID()
	if _, ok := c.pools.Load(id); ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, id)
	}

	if err := c.hooks.BeforeInitializePool(sc.Locker(), key, tick); err != nil {
		return nil, err
	}
	p, err := pool.New(key, tick)
	if err != nil {
		return nil, err
	}
	c.pools.Store(id, p)
	if err := c.hooks.AfterInitializePool(sc.Locker(), key, tick, p.SqrtRatio); err != nil {
		return nil, err
	}

	c.log.Info("pool initialized",
		zap.String("pool", id.Hex()),
		zap.Int32("tick", tick),
	)
	return new(big.Int).Set(p.SqrtRatio), nil
}

// Swap executes a swap on the pool for key and records the resulting token
// deltas as debt on the calling scope.
func (c *Core) Swap(sc *ledger.Scope, key pool.Key, params pool.SwapParams) (pool.SwapResult, error) {
	p, err := c.poolFor(key)
	if err != nil {
		return pool.SwapResult{}, err
	}
	if err := c.hooks.BeforeSwap(sc.Locker(), key, params); err != nil {
		return pool.SwapResult{}, err
	}
	res, err := p.Swap(params)
	if err != nil {
		return pool.SwapResult{}, err
	}
	if err := sc.AdjustDebt(key.Token0, res.Delta0); err != nil {
		return pool.SwapResult{}, err
	}
	if err := sc.AdjustDebt(key.Token1, res.Delta1); err != nil {
		return pool.SwapResult{}, err
	}
	if err := c.hooks.AfterSwap(sc.Locker(), key, params, res); err != nil {
		return pool.SwapResult{}, err
	}

	c.log.Debug("swap executed",
		zap.String("pool", key.ID().Hex()),
		zap.String("delta0", res.Delta0.String()),
		zap.String("delta1", res.Delta1.String()),
		zap.Int32("tick", res.TickAfter),
	)
	return res, nil
}

// UpdatePosition applies a liquidity delta to the locker's position and
// records the token deltas as debt.
func (c *Core) UpdatePosition(sc *ledger.Scope, key pool.Key, bounds pool.Bounds, liquidityDelta *big.Int) (delta0, delta1 *big.Int, err error) {
	p, err := c.poolFor(key)
	if err != nil {
		return nil, nil, err
	}
	if err := c.hooks.BeforeUpdatePosition(sc.Locker(), key, bounds, liquidityDelta); err != nil {
		return nil, nil, err
	}
	delta0, delta1, err = p.UpdateLiquidity(sc.Locker(), bounds, liquidityDelta)
	if err != nil {
		return nil, nil, err
	}
	if err := sc.AdjustDebt(key.Token0, delta0); err != nil {
		return nil, nil, err
	}
	if err := sc.AdjustDebt(key.Token1, delta1); err != nil {
		return nil, nil, err
	}
	if err := c.hooks.AfterUpdatePosition(sc.Locker(), key, bounds, liquidityDelta, delta0, delta1); err != nil {
		return nil, nil, err
	}
	return delta0, delta1, nil
}

// CollectFees pays out the locker's accrued position fees as negative debt.
func (c *Core) CollectFees(sc *ledger.Scope, key pool.Key, bounds pool.Bounds) (fee0, fee1 *big.Int, err error) {
	p, err := c.poolFor(key)
	if err != nil {
		return nil, nil, err
	}
	if err := c.hooks.BeforeCollectFees(sc.Locker(), key, bounds); err != nil {
		return nil, nil, err
	}
	fee0, fee1, err = p.CollectFees(sc.Locker(), bounds)
	if err != nil {
		return nil, nil, err
	}
	if err := sc.AdjustDebt(key.Token0, new(big.Int).Neg(fee0)); err != nil {
		return nil, nil, err
	}
	if err := sc.AdjustDebt(key.Token1, new(big.Int).Neg(fee1)); err != nil {
		return nil, nil, err
	}
	if err := c.hooks.AfterCollectFees(sc.Locker(), key, bounds, fee0, fee1); err != nil {
		return nil, nil, err
	}
	return fee0, fee1, nil
}

// AccumulateAsFees donates tokens to the pool's in-range liquidity. Only
// the pool's own extension may call it; the donated amounts become debt on
// the extension's scope.
func (c *Core) AccumulateAsFees(sc *ledger.Scope, key pool.Key, amount0, amount1 *big.Int) error {
	if sc.Locker() != key.Config.Extension {
		return fmt.Errorf("%w: locker %s", ErrNotExtension, sc.Locker())
	}
	p, err := c.poolFor(key)
	if err != nil {
		return err
	}
	if err := p.AccumulateFees(amount0, amount1); err != nil {
		return err
	}
	if err := sc.AdjustDebt(key.Token0, amount0); err != nil {
		return err
	}
	return sc.AdjustDebt(key.Token1, amount1)
}

// Quote runs a swap against a copy of the pool: no hooks, no debt, no state
// change. Advisory only.
func (c *Core) Quote(key pool.Key, params pool.SwapParams) (pool.SwapResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.poolFor(key)
	if err != nil {
		return pool.SwapResult{}, err
	}
	return p.Clone().Swap(params)
}

// AdoptPool installs an externally reconstructed pool, replacing any pool
// with the same id. Used when resuming from persisted snapshots.
func (c *Core) AdoptPool(p *pool.Pool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools.Store(p.Key.ID(), p)
}

// PoolState returns a read-only clone of the pool for key.
func (c *Core) PoolState(key pool.Key) (*pool.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.poolFor(key)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// EachPool calls fn with a clone of every pool.
func (c *Core) EachPool(fn func(*pool.Pool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools.Range(func(_ common.Hash, p *pool.Pool) bool {
		fn(p.Clone())
		return true
	})
}
