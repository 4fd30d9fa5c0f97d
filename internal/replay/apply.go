package replay

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/ledger"
	"ammcore/internal/model"
	"ammcore/internal/pool"
)

// apply replays one journaled operation inside its own lock scope. The
// journal records operations whose transfers already settled off ledger,
// so each scope's residual debt is cleared the way the host would have.
func (r *Runner) apply(op model.OpRecord) error {
	locker, err := op.LockerAddress()
	if err != nil {
		return fmt.Errorf("locker: %w", err)
	}
	key, err := op.Pool.Key()
	if err != nil {
		return fmt.Errorf("pool key: %w", err)
	}

	return r.core.Lock(locker, func(sc *ledger.Scope) error {
		switch op.Kind {
		case model.OpInitialize:
			var params model.InitializeParams
			if err := json.Unmarshal(op.Params, &params); err != nil {
				return fmt.Errorf("init params: %w", err)
			}
			_, err := r.core.InitializePool(sc, key, params.Tick)
			return err

		case model.OpSwap:
			var params model.SwapOpParams
			if err := json.Unmarshal(op.Params, &params); err != nil {
				return fmt.Errorf("swap params: %w", err)
			}
			engine, err := params.Engine()
			if err != nil {
				return err
			}
			if _, err := r.core.Swap(sc, key, engine); err != nil {
				return err
			}
			return settle(sc, key.Token0, key.Token1)

		case model.OpUpdate:
			var params model.UpdateOpParams
			if err := json.Unmarshal(op.Params, &params); err != nil {
				return fmt.Errorf("update params: %w", err)
			}
			delta, ok := new(big.Int).SetString(params.LiquidityDelta, 10)
			if !ok {
				return fmt.Errorf("invalid liquidity delta %q", params.LiquidityDelta)
			}
			bounds := pool.Bounds{Lower: params.LowerTick, Upper: params.UpperTick}
			if _, _, err := r.core.UpdatePosition(sc, key, bounds, delta); err != nil {
				return err
			}
			return settle(sc, key.Token0, key.Token1)

		case model.OpCollect:
			var params model.CollectOpParams
			if err := json.Unmarshal(op.Params, &params); err != nil {
				return fmt.Errorf("collect params: %w", err)
			}
			bounds := pool.Bounds{Lower: params.LowerTick, Upper: params.UpperTick}
			if _, _, err := r.core.CollectFees(sc, key, bounds); err != nil {
				return err
			}
			return settle(sc, key.Token0, key.Token1)

		default:
			return fmt.Errorf("unknown op kind %q", op.Kind)
		}
	})
}

// settle clears residual debt for the given tokens.
func settle(sc *ledger.Scope, tokens ...common.Address) error {
	for _, token := range tokens {
		debt := sc.Debt(token)
		if debt.Sign() == 0 {
			continue
		}
		if err := sc.AdjustDebt(token, new(big.Int).Neg(debt)); err != nil {
			return err
		}
	}
	return nil
}
