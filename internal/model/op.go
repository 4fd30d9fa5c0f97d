// Package model defines the serializable records shared by the journal,
// the snapshot stores, and the CLI.
package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/pool"
)

// OpKind names a journaled operation.
type OpKind string

const (
	OpInitialize OpKind = "init"
	OpSwap       OpKind = "swap"
	OpUpdate     OpKind = "update"
	OpCollect    OpKind = "collect"
)

// PoolKeyRecord is the JSON form of a pool key.
type PoolKeyRecord struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing uint32 `json:"tick_spacing"`
	Extension   string `json:"extension,omitempty"`
}

// NewPoolKeyRecord converts an engine pool key to its JSON form.
func NewPoolKeyRecord(key pool.Key) PoolKeyRecord {
	r := PoolKeyRecord{
		Token0:      key.Token0.Hex(),
		Token1:      key.Token1.Hex(),
		Fee:         key.Config.Fee,
		TickSpacing: key.Config.TickSpacing,
	}
	if key.Config.Extension != (common.Address{}) {
		r.Extension = key.Config.Extension.Hex()
	}
	return r
}

// Key converts the record back to an engine pool key.
func (r PoolKeyRecord) Key() (pool.Key, error) {
	token0, err := parseAddress(r.Token0)
	if err != nil {
		return pool.Key{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := parseAddress(r.Token1)
	if err != nil {
		return pool.Key{}, fmt.Errorf("token1: %w", err)
	}
	key := pool.Key{
		Token0: token0,
		Token1: token1,
		Config: pool.Config{Fee: r.Fee, TickSpacing: r.TickSpacing},
	}
	if r.Extension != "" {
		ext, err := parseAddress(r.Extension)
		if err != nil {
			return pool.Key{}, fmt.Errorf("extension: %w", err)
		}
		key.Config.Extension = ext
	}
	if err := key.Validate(); err != nil {
		return pool.Key{}, err
	}
	return key, nil
}

// OpRecord is one journaled operation. Seq orders the journal; Params
// holds the kind-specific payload.
type OpRecord struct {
	Seq    uint64          `json:"seq"`
	Kind   OpKind          `json:"kind"`
	Locker string          `json:"locker"`
	Pool   PoolKeyRecord   `json:"pool"`
	Params json.RawMessage `json:"params"`
}

// LockerAddress parses the record's locker.
func (r OpRecord) LockerAddress() (common.Address, error) {
	return parseAddress(r.Locker)
}

// InitializeParams is the payload of an OpInitialize record.
type InitializeParams struct {
	Tick int32 `json:"tick"`
}

// SwapOpParams is the payload of an OpSwap record. Amount is the signed
// decimal amount; a negative value requests exact output.
type SwapOpParams struct {
	Amount         string `json:"amount"`
	IsToken1       bool   `json:"is_token1"`
	SqrtRatioLimit string `json:"sqrt_ratio_limit,omitempty"`
}

// Engine converts the payload to engine swap parameters.
func (p SwapOpParams) Engine() (pool.SwapParams, error) {
	amount, err := parseBig(p.Amount)
	if err != nil {
		return pool.SwapParams{}, fmt.Errorf("amount: %w", err)
	}
	out := pool.SwapParams{Amount: amount, IsToken1: p.IsToken1}
	if p.SqrtRatioLimit != "" {
		limit, err := parseBig(p.SqrtRatioLimit)
		if err != nil {
			return pool.SwapParams{}, fmt.Errorf("sqrt ratio limit: %w", err)
		}
		out.SqrtRatioLimit = limit
	}
	return out, nil
}

// UpdateOpParams is the payload of an OpUpdate record.
type UpdateOpParams struct {
	LowerTick      int32  `json:"lower_tick"`
	UpperTick      int32  `json:"upper_tick"`
	LiquidityDelta string `json:"liquidity_delta"`
}

// CollectOpParams is the payload of an OpCollect record.
type CollectOpParams struct {
	LowerTick int32 `json:"lower_tick"`
	UpperTick int32 `json:"upper_tick"`
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
