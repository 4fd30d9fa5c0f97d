// Package replay streams an operation journal into a Core and persists
// the resulting pool snapshots.
package replay

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ammcore/internal/core"
	"ammcore/internal/model"
	"ammcore/internal/pool"
	"ammcore/internal/storage"
)

// SnapshotSink receives pool snapshots and tracks replay progress.
type SnapshotSink interface {
	UpsertPoolSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, seq uint64) error
}

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	StateName string
	BatchSize int
}

// Runner applies journaled operations to a Core in sequence order,
// snapshotting after every batch.
type Runner struct {
	cfg     RunConfig
	journal storage.Journal
	core    *core.Core
	sink    SnapshotSink
	logger  *zap.Logger
	seen    map[uint64]struct{}
}

// NewRunner builds a Runner with its dependencies. sink may be nil for a
// purely in-memory replay.
func NewRunner(cfg RunConfig, journal storage.Journal, c *core.Core, sink SnapshotSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		journal: journal,
		core:    c,
		sink:    sink,
		logger:  logger,
		seen:    make(map[uint64]struct{}),
	}
}

// Run executes the replay loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.journal == nil {
		return fmt.Errorf("journal is nil")
	}
	if r.core == nil {
		return fmt.Errorf("core is nil")
	}
	if r.cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	ops, err := r.journal.ReadAll()
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Seq < ops[j].Seq })

	var resumeFrom uint64
	if r.sink != nil {
		seq, ok, err := r.sink.LoadState(ctx, r.cfg.StateName)
		if err != nil {
			return fmt.Errorf("load replay state: %w", err)
		}
		if ok {
			resumeFrom = seq
			r.logger.Info("resume from saved state", zap.Uint64("last_applied", seq))
		}
	}

	pending := ops[:0]
	for _, op := range ops {
		if op.Seq <= resumeFrom {
			continue
		}
		if _, ok := r.seen[op.Seq]; ok {
			r.logger.Warn("duplicate journal sequence skipped", zap.Uint64("seq", op.Seq))
			continue
		}
		r.seen[op.Seq] = struct{}{}
		pending = append(pending, op)
	}

	if len(pending) == 0 {
		r.logger.Info("nothing to replay", zap.Uint64("last_applied", resumeFrom))
		return nil
	}

	for start := 0; start < len(pending); start += r.cfg.BatchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := start + r.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		for _, op := range batch {
			if err := r.apply(op); err != nil {
				return fmt.Errorf("apply op %d (%s): %w", op.Seq, op.Kind, err)
			}
		}

		lastSeq := batch[len(batch)-1].Seq
		if err := r.persist(ctx, lastSeq); err != nil {
			return err
		}

		r.logger.Info("batch complete",
			zap.Int("ops", len(batch)),
			zap.Uint64("from", batch[0].Seq),
			zap.Uint64("to", lastSeq),
		)
	}

	return nil
}

func (r *Runner) persist(ctx context.Context, lastSeq uint64) error {
	if r.sink == nil {
		return nil
	}
	snaps, err := r.snapshots()
	if err != nil {
		return err
	}
	if err := r.sink.UpsertPoolSnapshots(ctx, snaps); err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}
	if err := r.sink.SaveState(ctx, r.cfg.StateName, lastSeq); err != nil {
		return fmt.Errorf("save replay state: %w", err)
	}
	return nil
}

func (r *Runner) snapshots() ([]model.PoolSnapshot, error) {
	var snaps []model.PoolSnapshot
	var snapErr error
	r.core.EachPool(func(p *pool.Pool) {
		if snapErr != nil {
			return
		}
		snap, err := model.SnapshotPool(p)
		if err != nil {
			snapErr = err
			return
		}
		snaps = append(snaps, *snap)
	})
	return snaps, snapErr
}
