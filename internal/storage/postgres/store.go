// Package postgres persists pool snapshots and replay progress.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammcore/internal/model"
)

// Store provides Postgres persistence for pool snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPoolSnapshots replaces the persisted state of each pool: the pool
// row is upserted and its tick and position rows rewritten, all in one
// batch.
func (s *Store) UpsertPoolSnapshots(ctx context.Context, snaps []model.PoolSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	queued := 0
	for _, snap := range snaps {
		batch.Queue(`
			INSERT INTO pools (
				pool_id, token0, token1, fee, tick_spacing, extension,
				sqrt_ratio, tick, liquidity, fees_per_liquidity0, fees_per_liquidity1,
				reserve0, reserve1, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				sqrt_ratio = EXCLUDED.sqrt_ratio,
				tick = EXCLUDED.tick,
				liquidity = EXCLUDED.liquidity,
				fees_per_liquidity0 = EXCLUDED.fees_per_liquidity0,
				fees_per_liquidity1 = EXCLUDED.fees_per_liquidity1,
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				updated_at = now()
		`,
			snap.PoolID,
			snap.Key.Token0,
			snap.Key.Token1,
			snap.Key.Fee,
			snap.Key.TickSpacing,
			snap.Key.Extension,
			snap.SqrtRatio,
			snap.Tick,
			snap.Liquidity,
			snap.FeesPerLiquidity0,
			snap.FeesPerLiquidity1,
			snap.Reserve0,
			snap.Reserve1,
		)
		queued++

		batch.Queue(`DELETE FROM pool_ticks WHERE pool_id = $1`, snap.PoolID)
		queued++
		for _, tick := range snap.Ticks {
			batch.Queue(`
				INSERT INTO pool_ticks (
					pool_id, tick, liquidity_net, liquidity_gross,
					fees_outside0, fees_outside1
				) VALUES ($1,$2,$3,$4,$5,$6)
			`,
				snap.PoolID,
				tick.Tick,
				tick.LiquidityNet,
				tick.LiquidityGross,
				tick.FeesOutside0,
				tick.FeesOutside1,
			)
			queued++
		}

		batch.Queue(`DELETE FROM pool_positions WHERE pool_id = $1`, snap.PoolID)
		queued++
		for _, pos := range snap.Positions {
			batch.Queue(`
				INSERT INTO pool_positions (
					pool_id, owner, lower_tick, upper_tick,
					liquidity, fees_inside_last0, fees_inside_last1
				) VALUES ($1,$2,$3,$4,$5,$6,$7)
			`,
				snap.PoolID,
				pos.Owner,
				pos.LowerTick,
				pos.UpperTick,
				pos.Liquidity,
				pos.FeesInsideLast0,
				pos.FeesInsideLast1,
			)
			queued++
		}
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPoolSnapshots reads every persisted pool with its ticks and
// positions.
func (s *Store) LoadPoolSnapshots(ctx context.Context) ([]model.PoolSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, token0, token1, fee, tick_spacing, extension,
		       sqrt_ratio, tick, liquidity, fees_per_liquidity0, fees_per_liquidity1,
		       reserve0, reserve1
		FROM pools ORDER BY pool_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.PoolSnapshot
	for rows.Next() {
		var snap model.PoolSnapshot
		if err := rows.Scan(
			&snap.PoolID,
			&snap.Key.Token0,
			&snap.Key.Token1,
			&snap.Key.Fee,
			&snap.Key.TickSpacing,
			&snap.Key.Extension,
			&snap.SqrtRatio,
			&snap.Tick,
			&snap.Liquidity,
			&snap.FeesPerLiquidity0,
			&snap.FeesPerLiquidity1,
			&snap.Reserve0,
			&snap.Reserve1,
		); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range snaps {
		if err := s.loadTicks(ctx, &snaps[i]); err != nil {
			return nil, err
		}
		if err := s.loadPositions(ctx, &snaps[i]); err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

func (s *Store) loadTicks(ctx context.Context, snap *model.PoolSnapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT tick, liquidity_net, liquidity_gross, fees_outside0, fees_outside1
		FROM pool_ticks WHERE pool_id = $1 ORDER BY tick
	`, snap.PoolID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var tick model.TickSnapshot
		if err := rows.Scan(&tick.Tick, &tick.LiquidityNet, &tick.LiquidityGross, &tick.FeesOutside0, &tick.FeesOutside1); err != nil {
			return err
		}
		snap.Ticks = append(snap.Ticks, tick)
	}
	return rows.Err()
}

func (s *Store) loadPositions(ctx context.Context, snap *model.PoolSnapshot) error {
	rows, err := s.pool.Query(ctx, `
		SELECT owner, lower_tick, upper_tick, liquidity, fees_inside_last0, fees_inside_last1
		FROM pool_positions WHERE pool_id = $1 ORDER BY owner, lower_tick, upper_tick
	`, snap.PoolID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var pos model.PositionSnapshot
		if err := rows.Scan(&pos.Owner, &pos.LowerTick, &pos.UpperTick, &pos.Liquidity, &pos.FeesInsideLast0, &pos.FeesInsideLast1); err != nil {
			return err
		}
		snap.Positions = append(snap.Positions, pos)
	}
	return rows.Err()
}

// LoadState returns the last applied journal sequence for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq uint64
	row := s.pool.QueryRow(ctx, `SELECT last_applied_seq FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return seq, true, nil
}

// SaveState upserts the last applied journal sequence for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_applied_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_applied_seq = EXCLUDED.last_applied_seq, updated_at = now()
	`, name, seq)
	return err
}
