package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ammcore/internal/config"
	"ammcore/internal/core"
	"ammcore/internal/pool"
	"ammcore/internal/replay"
	"ammcore/internal/storage"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	key, err := poolKeyFromFlags(cmd)
	if err != nil {
		return err
	}

	amountStr, _ := cmd.Flags().GetString("amount")
	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return fmt.Errorf("invalid amount %q", amountStr)
	}
	isToken1, _ := cmd.Flags().GetBool("is-token1")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Rebuild the pool state in memory from the journal, then quote
	// against it without touching anything.
	journal := storage.NewJsonlJournal(cfg.Journal)
	c := core.New(nil, nil, logger)
	runner := replay.NewRunner(replay.RunConfig{
		StateName: cfg.StateName,
		BatchSize: cfg.BatchSize,
	}, journal, c, nil, logger)
	if err := runner.Run(ctx); err != nil {
		return err
	}

	res, err := c.Quote(key, pool.SwapParams{Amount: amount, IsToken1: isToken1})
	if err != nil {
		return err
	}

	fmt.Printf("delta0:      %s\n", res.Delta0)
	fmt.Printf("delta1:      %s\n", res.Delta1)
	fmt.Printf("fee paid:    %s\n", res.FeesPaid)
	fmt.Printf("tick after:  %d\n", res.TickAfter)
	fmt.Printf("price after: %s\n", priceFromSqrtRatio(res.SqrtRatioAfter))
	return nil
}

func poolKeyFromFlags(cmd *cobra.Command) (pool.Key, error) {
	token0Str, _ := cmd.Flags().GetString("token0")
	token1Str, _ := cmd.Flags().GetString("token1")
	if !common.IsHexAddress(token0Str) || !common.IsHexAddress(token1Str) {
		return pool.Key{}, fmt.Errorf("token0 and token1 must be hex addresses")
	}
	fee, _ := cmd.Flags().GetUint32("fee")
	spacing, _ := cmd.Flags().GetUint32("tick-spacing")
	extensionStr, _ := cmd.Flags().GetString("extension")

	key := pool.Key{
		Token0: common.HexToAddress(token0Str),
		Token1: common.HexToAddress(token1Str),
		Config: pool.Config{Fee: fee, TickSpacing: spacing},
	}
	if extensionStr != "" {
		if !common.IsHexAddress(extensionStr) {
			return pool.Key{}, fmt.Errorf("invalid extension address %q", extensionStr)
		}
		key.Config.Extension = common.HexToAddress(extensionStr)
	}
	if err := key.Validate(); err != nil {
		return pool.Key{}, err
	}
	return key, nil
}

// priceFromSqrtRatio renders the token1/token0 price implied by a Q64.128
// sqrt ratio.
func priceFromSqrtRatio(sqrtRatio *big.Int) decimal.Decimal {
	q128 := new(big.Int).Lsh(big.NewInt(1), 128)
	root := decimal.NewFromBigInt(sqrtRatio, 0).DivRound(decimal.NewFromBigInt(q128, 0), 40)
	return root.Mul(root).Truncate(18)
}
