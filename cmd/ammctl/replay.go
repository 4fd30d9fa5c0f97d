package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammcore/internal/config"
	"ammcore/internal/core"
	"ammcore/internal/replay"
	"ammcore/internal/storage"
	"ammcore/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal := storage.NewJsonlJournal(cfg.Journal)
	c := core.New(nil, nil, logger)

	var sink replay.SnapshotSink
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return err
		}
		defer store.Close()
		sink = store
	}

	runner := replay.NewRunner(replay.RunConfig{
		StateName: cfg.StateName,
		BatchSize: cfg.BatchSize,
	}, journal, c, sink, logger)

	logger.Info("replay start",
		zap.String("journal", cfg.Journal),
		zap.String("state_name", cfg.StateName),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	return runner.Run(ctx)
}
