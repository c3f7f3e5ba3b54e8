package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/leaderboard"
	"baseQuestAPI/internal/player"
	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/week"
)

const schema = `
CREATE TABLE IF NOT EXISTS world (
	id                SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	current_week      BIGINT NOT NULL,
	weekly_prize_pool NUMERIC(78,0) NOT NULL,
	entry_fee         NUMERIC(78,0) NOT NULL,
	launch_time       TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS players (
	seq                   BIGSERIAL UNIQUE,
	address               TEXT PRIMARY KEY,
	current_streak        BIGINT NOT NULL DEFAULT 0,
	total_base_points     BIGINT NOT NULL DEFAULT 0,
	weekly_base_points    BIGINT NOT NULL DEFAULT 0,
	active_this_week      BOOLEAN NOT NULL DEFAULT FALSE,
	has_joined            BOOLEAN NOT NULL DEFAULT FALSE,
	player_week           BIGINT NOT NULL DEFAULT 0,
	last_check_in_time    TIMESTAMPTZ,
	tasks_completed_today SMALLINT NOT NULL DEFAULT 0 CHECK (tasks_completed_today BETWEEN 0 AND 3),
	last_task_reset_time  TIMESTAMPTZ,
	streak_day_start      TIMESTAMPTZ,
	nonce                 BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tasks (
	week               BIGINT NOT NULL,
	id                 INT NOT NULL,
	description        TEXT NOT NULL,
	task_type          TEXT NOT NULL,
	base_points_reward BIGINT NOT NULL CHECK (base_points_reward > 0),
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	metadata           JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (week, id)
);

CREATE TABLE IF NOT EXISTS week_snapshots (
	week           BIGINT PRIMARY KEY,
	pool           NUMERIC(78,0) NOT NULL,
	ranked         JSONB NOT NULL,
	closed_at      TIMESTAMPTZ NOT NULL,
	status         TEXT NOT NULL,
	settlement_id  UUID,
	settled_at     TIMESTAMPTZ,
	failure_reason TEXT NOT NULL DEFAULT '',
	payouts        JSONB
);

CREATE TABLE IF NOT EXISTS game_events (
	seq           BIGSERIAL PRIMARY KEY,
	id            UUID NOT NULL,
	type          TEXT NOT NULL,
	player        TEXT,
	week          BIGINT NOT NULL,
	task_id       INT,
	points_earned BIGINT NOT NULL DEFAULT 0,
	new_streak    BIGINT NOT NULL DEFAULT 0,
	pool          NUMERIC(78,0),
	players       INT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS used_payments (
	tx_hash TEXT PRIMARY KEY,
	player  TEXT NOT NULL,
	week    BIGINT NOT NULL,
	used_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresStore persists the ledger in Postgres. Every Atomic call locks
// the world row first, so writes are serialised across API replicas.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema and seeds the world row when missing. An
// existing world row is left untouched.
func (s *PostgresStore) Migrate(ctx context.Context, initial *week.State) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO world (id, current_week, weekly_prize_pool, entry_fee, launch_time)
		VALUES (1, $1, $2::numeric, $3::numeric, $4)
		ON CONFLICT (id) DO NOTHING`,
		int64(initial.CurrentWeek), bigText(initial.WeeklyPrizePool), bigText(initial.EntryFee), initial.LaunchTime,
	)
	if err != nil {
		return fmt.Errorf("failed to seed world: %w", err)
	}
	return nil
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var one int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM world WHERE id = 1 FOR UPDATE`).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoWorld
		}
		return fmt.Errorf("failed to lock world: %w", err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	return fn(&pgTx{tx: tx, readOnly: true})
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

type pgTx struct {
	tx       pgx.Tx
	readOnly bool
}

func (t *pgTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *pgTx) World(ctx context.Context) (*week.State, error) {
	var (
		st           week.State
		current      int64
		pool, feeStr string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT current_week, weekly_prize_pool::text, entry_fee::text, launch_time, updated_at
		FROM world WHERE id = 1`,
	).Scan(&current, &pool, &feeStr, &st.LaunchTime, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoWorld
		}
		return nil, fmt.Errorf("failed to read world: %w", err)
	}

	st.CurrentWeek = uint64(current)
	if st.WeeklyPrizePool, err = parseBig(pool); err != nil {
		return nil, err
	}
	if st.EntryFee, err = parseBig(feeStr); err != nil {
		return nil, err
	}
	return &st, nil
}

func (t *pgTx) PutWorld(ctx context.Context, st *week.State) error {
	if err := t.writable(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE world
		SET current_week = $1, weekly_prize_pool = $2::numeric, entry_fee = $3::numeric, updated_at = NOW()
		WHERE id = 1`,
		int64(st.CurrentWeek), bigText(st.WeeklyPrizePool), bigText(st.EntryFee),
	)
	if err != nil {
		return fmt.Errorf("failed to update world: %w", err)
	}
	return nil
}

const playerColumns = `seq, address, current_streak, total_base_points, weekly_base_points,
	active_this_week, has_joined, player_week, last_check_in_time, tasks_completed_today,
	last_task_reset_time, streak_day_start, nonce`

func scanPlayer(row pgx.Row) (player.Record, error) {
	var (
		rec                                    player.Record
		addr                                   string
		streak, total, weekly, pweek, nonce    int64
		today                                  int16
		lastCheckIn, lastReset, streakDayStart *time.Time
	)
	err := row.Scan(&rec.Seq, &addr, &streak, &total, &weekly,
		&rec.ActiveThisWeek, &rec.HasJoined, &pweek, &lastCheckIn, &today,
		&lastReset, &streakDayStart, &nonce)
	if err != nil {
		return player.Record{}, err
	}

	rec.Address = common.HexToAddress(addr)
	rec.CurrentStreak = uint64(streak)
	rec.TotalBasePoints = uint64(total)
	rec.WeeklyBasePoints = uint64(weekly)
	rec.PlayerWeek = uint64(pweek)
	rec.TasksCompletedToday = uint8(today)
	rec.Nonce = uint64(nonce)
	rec.LastCheckInTime = fromNullTime(lastCheckIn)
	rec.LastTaskResetTime = fromNullTime(lastReset)
	rec.StreakDayStart = fromNullTime(streakDayStart)
	return rec, nil
}

func (t *pgTx) Player(ctx context.Context, addr common.Address) (player.Record, bool, error) {
	rec, err := scanPlayer(t.tx.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE address = $1`, addr.Hex()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return player.Record{}, false, nil
		}
		return player.Record{}, false, fmt.Errorf("failed to read player: %w", err)
	}
	return rec, true, nil
}

func (t *pgTx) PutPlayer(ctx context.Context, rec player.Record) (player.Record, error) {
	if err := t.writable(); err != nil {
		return player.Record{}, err
	}
	saved, err := scanPlayer(t.tx.QueryRow(ctx, `
		INSERT INTO players (address, current_streak, total_base_points, weekly_base_points,
			active_this_week, has_joined, player_week, last_check_in_time, tasks_completed_today,
			last_task_reset_time, streak_day_start, nonce)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (address) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			total_base_points = EXCLUDED.total_base_points,
			weekly_base_points = EXCLUDED.weekly_base_points,
			active_this_week = EXCLUDED.active_this_week,
			has_joined = EXCLUDED.has_joined,
			player_week = EXCLUDED.player_week,
			last_check_in_time = EXCLUDED.last_check_in_time,
			tasks_completed_today = EXCLUDED.tasks_completed_today,
			last_task_reset_time = EXCLUDED.last_task_reset_time,
			streak_day_start = EXCLUDED.streak_day_start,
			nonce = EXCLUDED.nonce
		RETURNING `+playerColumns,
		rec.Address.Hex(), int64(rec.CurrentStreak), int64(rec.TotalBasePoints), int64(rec.WeeklyBasePoints),
		rec.ActiveThisWeek, rec.HasJoined, int64(rec.PlayerWeek), nullTime(rec.LastCheckInTime),
		int16(rec.TasksCompletedToday), nullTime(rec.LastTaskResetTime), nullTime(rec.StreakDayStart),
		int64(rec.Nonce),
	))
	if err != nil {
		return player.Record{}, fmt.Errorf("failed to upsert player: %w", err)
	}
	return saved, nil
}

func (t *pgTx) Players(ctx context.Context) ([]player.Record, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+playerColumns+` FROM players ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var out []player.Record
	for rows.Next() {
		rec, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *pgTx) Tasks(ctx context.Context, w uint64) ([]task.Task, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, description, task_type, base_points_reward, is_active, metadata, created_at
		FROM tasks WHERE week = $1 ORDER BY id`, int64(w))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		var (
			tk       task.Task
			taskType string
			reward   int64
			meta     []byte
		)
		if err := rows.Scan(&tk.ID, &tk.Description, &taskType, &reward, &tk.IsActive, &meta, &tk.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tk.Week = w
		tk.Type = task.Type(taskType)
		tk.BasePointsReward = uint64(reward)
		if len(meta) > 0 {
			tk.Metadata = json.RawMessage(meta)
		}
		out = append(out, tk)
	}
	return out, rows.Err()
}

func (t *pgTx) AppendTask(ctx context.Context, tk task.Task) (task.Task, error) {
	if err := t.writable(); err != nil {
		return task.Task{}, err
	}
	var meta []byte
	if len(tk.Metadata) > 0 {
		meta = tk.Metadata
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO tasks (week, id, description, task_type, base_points_reward, is_active, metadata, created_at)
		VALUES ($1, (SELECT COALESCE(MAX(id) + 1, 0) FROM tasks WHERE week = $1), $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		int64(tk.Week), tk.Description, string(tk.Type), int64(tk.BasePointsReward), tk.IsActive, meta, tk.CreatedAt,
	).Scan(&tk.ID)
	if err != nil {
		return task.Task{}, fmt.Errorf("failed to insert task: %w", err)
	}
	return tk, nil
}

func (t *pgTx) SetTaskActive(ctx context.Context, w uint64, id int, active bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE tasks SET is_active = $3 WHERE week = $1 AND id = $2`, int64(w), id, active)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %d of week %d does not exist", id, w)
	}
	return nil
}

const snapshotColumns = `week, pool::text, ranked, closed_at, status, settlement_id, settled_at, failure_reason, payouts`

func scanSnapshot(row pgx.Row) (*week.Snapshot, error) {
	var (
		snap           week.Snapshot
		wk             int64
		pool, status   string
		ranked, payout []byte
	)
	err := row.Scan(&wk, &pool, &ranked, &snap.ClosedAt, &status, &snap.SettlementID, &snap.SettledAt, &snap.FailureReason, &payout)
	if err != nil {
		return nil, err
	}

	snap.Week = uint64(wk)
	snap.Status = week.SettlementStatus(status)
	if snap.Pool, err = parseBig(pool); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(ranked, &snap.Ranked); err != nil {
		return nil, fmt.Errorf("failed to decode ranked players: %w", err)
	}
	if len(payout) > 0 {
		if err := json.Unmarshal(payout, &snap.Payouts); err != nil {
			return nil, fmt.Errorf("failed to decode payouts: %w", err)
		}
	}
	return &snap, nil
}

func (t *pgTx) Snapshot(ctx context.Context, w uint64) (*week.Snapshot, bool, error) {
	snap, err := scanSnapshot(t.tx.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM week_snapshots WHERE week = $1`, int64(w)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap, true, nil
}

func (t *pgTx) SnapshotsWithStatus(ctx context.Context, status week.SettlementStatus) ([]*week.Snapshot, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+snapshotColumns+` FROM week_snapshots WHERE status = $1 ORDER BY week`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*week.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (t *pgTx) PutSnapshot(ctx context.Context, s *week.Snapshot) error {
	if err := t.writable(); err != nil {
		return err
	}
	ranked := s.Ranked
	if ranked == nil {
		ranked = []*leaderboard.LeaderboardEntry{}
	}
	rankedJSON, err := json.Marshal(ranked)
	if err != nil {
		return fmt.Errorf("failed to encode ranked players: %w", err)
	}
	payoutJSON, err := json.Marshal(s.Payouts)
	if err != nil {
		return fmt.Errorf("failed to encode payouts: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO week_snapshots (week, pool, ranked, closed_at, status, settlement_id, settled_at, failure_reason, payouts)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (week) DO UPDATE SET
			status = EXCLUDED.status,
			settlement_id = EXCLUDED.settlement_id,
			settled_at = EXCLUDED.settled_at,
			failure_reason = EXCLUDED.failure_reason,
			payouts = EXCLUDED.payouts`,
		int64(s.Week), bigText(s.Pool), rankedJSON, s.ClosedAt, string(s.Status),
		s.SettlementID, s.SettledAt, s.FailureReason, payoutJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e *events.Event) error {
	if err := t.writable(); err != nil {
		return err
	}
	var (
		playerHex *string
		pool      *string
	)
	if e.Player != nil {
		h := e.Player.Hex()
		playerHex = &h
	}
	if e.Pool != nil {
		p := e.Pool.String()
		pool = &p
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO game_events (id, type, player, week, task_id, points_earned, new_streak, pool, players, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10)
		RETURNING seq`,
		e.ID, string(e.Type), playerHex, int64(e.Week), e.TaskID, int64(e.PointsEarned),
		int64(e.NewStreak), pool, e.Players, e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (t *pgTx) Events(ctx context.Context, since int64, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := t.tx.Query(ctx, `
		SELECT seq, id, type, player, week, task_id, points_earned, new_streak, pool::text, players, created_at
		FROM game_events WHERE seq > $1 ORDER BY seq LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e                  events.Event
			id                 uuid.UUID
			typ                string
			playerHex, pool    *string
			wk, points, streak int64
		)
		if err := rows.Scan(&e.Seq, &id, &typ, &playerHex, &wk, &e.TaskID, &points, &streak, &pool, &e.Players, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.ID = id
		e.Type = events.Type(typ)
		e.Week = uint64(wk)
		e.PointsEarned = uint64(points)
		e.NewStreak = uint64(streak)
		if playerHex != nil {
			addr := common.HexToAddress(*playerHex)
			e.Player = &addr
		}
		if pool != nil {
			if e.Pool, err = parseBig(*pool); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) UsePayment(ctx context.Context, txHash string, payer common.Address, w uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO used_payments (tx_hash, player, week) VALUES ($1, $2, $3)
		ON CONFLICT (tx_hash) DO NOTHING`,
		strings.ToLower(txHash), payer.Hex(), int64(w),
	)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentUsed
	}
	return nil
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func fromNullTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
