// Package ext dispatches pool lifecycle hooks to registered extensions.
// A pool opts into an extension through its key; the dispatcher routes
// before/after hooks for each operation to it and lets it veto by
// returning an error.
package ext

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v3"

	"ammcore/internal/pool"
)

var ErrExtensionNotRegistered = errors.New("pool extension not registered")

// CallPoints declares which hooks an extension wants invoked. Hooks not
// requested are never called, so an extension pays only for what it uses.
type CallPoints struct {
	BeforeInitializePool bool
	AfterInitializePool  bool
	BeforeSwap           bool
	AfterSwap            bool
	BeforeUpdatePosition bool
	AfterUpdatePosition  bool
	BeforeCollectFees    bool
	AfterCollectFees     bool
}

// Extension receives lifecycle hooks for pools configured with its address.
// Every hook sees the current locker and may return an error to abort the
// operation; the whole top-level call then rolls back.
type Extension interface {
	CallPoints() CallPoints

	BeforeInitializePool(locker common.Address, key pool.Key, tick int32) error
	AfterInitializePool(locker common.Address, key pool.Key, tick int32, sqrtRatio *big.Int) error

	BeforeSwap(locker common.Address, key pool.Key, params pool.SwapParams) error
	AfterSwap(locker common.Address, key pool.Key, params pool.SwapParams, result pool.SwapResult) error

	BeforeUpdatePosition(locker common.Address, key pool.Key, bounds pool.Bounds, liquidityDelta *big.Int) error
	AfterUpdatePosition(locker common.Address, key pool.Key, bounds pool.Bounds, liquidityDelta, delta0, delta1 *big.Int) error

	BeforeCollectFees(locker common.Address, key pool.Key, bounds pool.Bounds) error
	AfterCollectFees(locker common.Address, key pool.Key, bounds pool.Bounds, fee0, fee1 *big.Int) error
}

// NoopExtension implements Extension with no call points and no-op hooks.
// Embed it and override what you need.
type NoopExtension struct{}

func (NoopExtension) CallPoints() CallPoints { return CallPoints{} }

func (NoopExtension) BeforeInitializePool(common.Address, pool.Key, int32) error { return nil }
func (NoopExtension) AfterInitializePool(common.Address, pool.Key, int32, *big.Int) error {
	return nil
}
func (NoopExtension) BeforeSwap(common.Address, pool.Key, pool.SwapParams) error { return nil }
func (NoopExtension) AfterSwap(common.Address, pool.Key, pool.SwapParams, pool.SwapResult) error {
	return nil
}
func (NoopExtension) BeforeUpdatePosition(common.Address, pool.Key, pool.Bounds, *big.Int) error {
	return nil
}
func (NoopExtension) AfterUpdatePosition(common.Address, pool.Key, pool.Bounds, *big.Int, *big.Int, *big.Int) error {
	return nil
}
func (NoopExtension) BeforeCollectFees(common.Address, pool.Key, pool.Bounds) error { return nil }
func (NoopExtension) AfterCollectFees(common.Address, pool.Key, pool.Bounds, *big.Int, *big.Int) error {
	return nil
}

// Dispatcher is the concurrent extension registry and hook router.
type Dispatcher struct {
	registry *xsync.MapOf[common.Address, Extension]
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{registry: xsync.NewMapOf[common.Address, Extension]()}
}

// Register binds an extension implementation to its address.
func (d *Dispatcher) Register(addr common.Address, e Extension) {
	d.registry.Store(addr, e)
}

// Registered reports whether an implementation is bound to addr.
func (d *Dispatcher) Registered(addr common.Address) bool {
	_, ok := d.registry.Load(addr)
	return ok
}

// active resolves the extension responsible for the pool, if any hook
// should run at all. Hooks are skipped entirely while the extension itself
// holds the lock: an extension never re-enters its own hooks through
// operations it performs.
func (d *Dispatcher) active(key pool.Key, locker common.Address) (Extension, bool, error) {
	addr := key.Config.Extension
	if addr == (common.Address{}) {
		return nil, false, nil
	}
	if locker == addr {
		return nil, false, nil
	}
	e, ok := d.registry.Load(addr)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrExtensionNotRegistered, addr)
	}
	return e, true, nil
}

func (d *Dispatcher) BeforeInitializePool(locker common.Address, key pool.Key, tick int32) error {
	e, ok, err := d.active(key, locker)
	if err != nil || !ok || !e.CallPoints().BeforeInitializePool {
		return err
	}
	if err := e.BeforeInitializePool(locker, key, tick); err != nil {
		return fmt.Errorf("extension %s before initialize: %w", key.Config.Extension, err)
	}
	return nil
}

func (d *Dispatcher) AfterInitializePool(locker common.Address, key pool.Key, tick int32, sqrtRatio *big.Int) error {
	e, ok, err := d.active(key, locker)
	if err != nil || !ok || !e.CallPoints().AfterInitializePool {
		return err
	}
	if err := e.AfterInitializePool(locker, key, tick, sqrtRatio); err != nil {
		return fmt.Errorf("extension %s after initialize: %w", key.Config.Extension, err)
	}
	return nil
}

func (d *Dispatcher) BeforeSwap(locker common.Address, key pool.Key, params pool.SwapParams) error {
	e, ok, err := d.active(key, locker)
	if err != nil || !ok || !e.CallPoints().BeforeSwap {
		return err
	}
	if err := e.BeforeSwap(locker, key, params); err != nil {
		return fmt.Errorf("extension %s before swap: %w", key.Config.Extension, err)
	}
	return nil
}

func (d *Dispatcher) AfterSwap(locker common.Address, key pool.Key, params pool.SwapParams, result pool.SwapResult) error {
	e, ok, err := d.active(key, locker)
	if err != nil || !ok || !e.CallPoints().AfterSwap {
		return err
	}
	if err := e.AfterSwap(locker, key, params, result); err != nil {
		return fmt.Errorf("extension %s after swap: %w", key.Config.Extension, err)
	}
	return nil
}

func (d *Dispatcher) BeforeUpdatePosition(locker common.Address, key pool.Key, bounds pool.Bounds, liquidityDelta *big.Int) error {
	e, ok, err := d.active(key, locker)
	if err != nil || !ok || !e.CallPoints().BeforeUpdatePosition {
		return err
	}
	if err := e.BeforeUpdatePosition(locker, key, bounds, liquidityDelta); err != nil {
		return fmt.Errorf("extension %s before update position: %w", key.Config.Extension, err)
	}
	return nil
}

func (d *Dispatcher) AfterUpdatePosition(locker common.Address, key pool.Key, bounds pool.Bounds, liquidityDelta, delta0, delta1 *big.Int) error {
	e, ok, err := d.active(key, locker)
	if err != nil || !ok || !e.CallPoints().AfterUpdatePosition {
		return err
	}
	if err := e.AfterUpdatePosition(locker, key, bounds, liquidityDelta, delta0, delta1); err != nil {
		return fmt.Errorf("extension %s after update position: %w", key.Config.Extension, err)
	}
	return nil
}

func (d *Dispatcher) BeforeCollectFees(locker common.Address, key pool.Key, bounds pool.Bounds) error {
	e, ok, err := d.active(key, locker)
	if err != nil || !ok || !e.CallPoints().BeforeCollectFees {
		return err
	}
	if err := e.BeforeCollectFees(locker, key, bounds); err != nil {
		return fmt.Errorf("extension %s before collect fees: %w", key.Config.Extension, err)
	}
	return nil
}

func (d *Dispatcher) AfterCollectFees(locker common.Address, key pool.Key, bounds pool.Bounds, fee0, fee1 *big.Int) error {
	e, ok, err := d.active(key, locker)
	if err != nil || !ok || !e.CallPoints().AfterCollectFees {
		return err
	}
	if err := e.AfterCollectFees(locker, key, bounds, fee0, fee1); err != nil {
		return fmt.Errorf("extension %s after collect fees: %w", key.Config.Extension, err)
	}
	return nil
}
