package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ammctl",
		Short:        "AMM ledger toolkit",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an operation journal into pool snapshots",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("journal", "./data/ops.jsonl", "operation journal JSONL path")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshot persistence")
	replayCmd.Flags().String("state-name", "replay", "replay state name")
	replayCmd.Flags().Int("batch-size", 100, "operations per snapshot batch")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap against replayed pool state",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("journal", "./data/ops.jsonl", "operation journal JSONL path")
	quoteCmd.Flags().String("token0", "", "pool token0 address")
	quoteCmd.Flags().String("token1", "", "pool token1 address")
	quoteCmd.Flags().Uint32("fee", 0, "pool fee in parts per million")
	quoteCmd.Flags().Uint32("tick-spacing", 0, "pool tick spacing (0 = full range)")
	quoteCmd.Flags().String("extension", "", "pool extension address")
	quoteCmd.Flags().String("amount", "", "signed swap amount (negative = exact output)")
	quoteCmd.Flags().Bool("is-token1", false, "amount is denominated in token1")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
