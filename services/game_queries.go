package services

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/leaderboard"
	"baseQuestAPI/internal/ledger"
	"baseQuestAPI/internal/player"
	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/wallet"
	"baseQuestAPI/internal/week"
)

// Reads never advance the week. A week the clock has left but no write
// has closed yet is still reported as current.

func (s *GameService) world(ctx context.Context, tx ledger.Tx) (*week.State, error) {
	st, err := tx.World(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load world: %w", err)
	}
	return st, nil
}

func (s *GameService) GetGameInfo(ctx context.Context) (*week.GameInfo, error) {
	var info *week.GameInfo
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		st, err := s.world(ctx, tx)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		info = &week.GameInfo{
			CurrentWeek:        st.CurrentWeek,
			EntryFeeWei:        st.EntryFee.String(),
			EntryFeeEth:        wallet.FormatEther(st.EntryFee),
			WeeklyPrizePoolWei: st.WeeklyPrizePool.String(),
			WeeklyPrizePoolEth: wallet.FormatEther(st.WeeklyPrizePool),
			TimeUntilWeekEnd:   int64(s.schedule.TimeUntilWeekEnd(st.CurrentWeek, now) / time.Second),
			WeekEndsAt:         s.schedule.WeekEnd(st.CurrentWeek),
		}
		return nil
	})
	return info, err
}

func (s *GameService) CurrentWeek(ctx context.Context) (uint64, error) {
	info, err := s.GetGameInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.CurrentWeek, nil
}

func (s *GameService) EntryFee(ctx context.Context) (*big.Int, error) {
	var fee *big.Int
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		st, err := s.world(ctx, tx)
		if err == nil {
			fee = st.EntryFee
		}
		return err
	})
	return fee, err
}

func (s *GameService) WeeklyPrizePool(ctx context.Context) (*big.Int, error) {
	var pool *big.Int
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		st, err := s.world(ctx, tx)
		if err == nil {
			pool = st.WeeklyPrizePool
		}
		return err
	})
	return pool, err
}

func (s *GameService) GetTimeUntilWeekEnd(ctx context.Context) (time.Duration, error) {
	wk, err := s.CurrentWeek(ctx)
	if err != nil {
		return 0, err
	}
	return s.schedule.TimeUntilWeekEnd(wk, s.clock.Now()), nil
}

// GetPlayerData returns the record as seen from the current week.
func (s *GameService) GetPlayerData(ctx context.Context, addr common.Address) (player.Record, error) {
	var rec player.Record
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		st, err := s.world(ctx, tx)
		if err != nil {
			return err
		}
		stored, err := ledger.GetPlayer(ctx, tx, addr)
		if err != nil {
			return err
		}
		rec = stored.Reconciled(st.CurrentWeek)
		return nil
	})
	return rec, err
}

func (s *GameService) GetPlayerStatus(ctx context.Context, addr common.Address) (player.Status, error) {
	var status player.Status
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		st, err := s.world(ctx, tx)
		if err != nil {
			return err
		}
		rec, err := ledger.GetPlayer(ctx, tx, addr)
		if err != nil {
			return err
		}
		status = player.StatusOf(rec, st.CurrentWeek)
		return nil
	})
	return status, err
}

// GetTimeUntilDayReset is zero for a player without a day window.
func (s *GameService) GetTimeUntilDayReset(ctx context.Context, addr common.Address) (time.Duration, error) {
	rec, err := s.GetPlayerData(ctx, addr)
	if err != nil {
		return 0, err
	}
	return s.schedule.TimeUntilDayReset(rec.LastTaskResetTime, s.clock.Now()), nil
}

func (s *GameService) GetTasks(ctx context.Context, wk uint64) ([]task.Task, error) {
	var tasks []task.Task
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		tasks, err = tx.Tasks(ctx, wk)
		return err
	})
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, err
}

func (s *GameService) GetCurrentWeekTasks(ctx context.Context) (uint64, []task.Task, error) {
	var (
		wk    uint64
		tasks []task.Task
	)
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		st, err := s.world(ctx, tx)
		if err != nil {
			return err
		}
		wk = st.CurrentWeek
		tasks, err = tx.Tasks(ctx, wk)
		return err
	})
	if tasks == nil {
		tasks = []task.Task{}
	}
	return wk, tasks, err
}

func (s *GameService) GetTask(ctx context.Context, wk uint64, id int) (task.Task, error) {
	tasks, err := s.GetTasks(ctx, wk)
	if err != nil {
		return task.Task{}, err
	}
	if id < 0 || id >= len(tasks) {
		return task.Task{}, ErrNotFound
	}
	return tasks[id], nil
}

// DailyTasks picks up to count active tasks of the current week for addr.
// The pick is stable for the player's day window and never restricts what
// CompleteTask accepts.
func (s *GameService) DailyTasks(ctx context.Context, addr common.Address, count int) ([]task.Task, error) {
	var (
		rec   player.Record
		tasks []task.Task
	)
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		st, err := s.world(ctx, tx)
		if err != nil {
			return err
		}
		if rec, err = ledger.GetPlayer(ctx, tx, addr); err != nil {
			return err
		}
		tasks, err = tx.Tasks(ctx, st.CurrentWeek)
		return err
	})
	if err != nil {
		return nil, err
	}

	active := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsActive {
			active = append(active, t)
		}
	}

	now := s.clock.Now()
	window := rec.LastTaskResetTime
	if s.schedule.DayBoundaryFor(window, now) {
		window = now.Truncate(s.schedule.DayLength)
	}
	seed := crypto.Keccak256(addr.Bytes(), binary.BigEndian.AppendUint64(nil, uint64(window.Unix())))
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(seed[:8]), binary.BigEndian.Uint64(seed[8:16])))
	rng.Shuffle(len(active), func(i, j int) { active[i], active[j] = active[j], active[i] })

	if count > 0 && count < len(active) {
		active = active[:count]
	}
	return active, nil
}

// GetLeaderboard ranks the current week. viewer, when set, is located in
// the ranking.
func (s *GameService) GetLeaderboard(ctx context.Context, viewer *common.Address) (*leaderboard.Leaderboard, error) {
	var board *leaderboard.Leaderboard
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		st, err := s.world(ctx, tx)
		if err != nil {
			return err
		}
		players, err := tx.Players(ctx)
		if err != nil {
			return err
		}
		ranked := leaderboard.Rank(players, st.CurrentWeek)
		board = &leaderboard.Leaderboard{
			Week:         st.CurrentWeek,
			Entries:      ranked,
			TotalPlayers: len(ranked),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if viewer != nil {
		board.UserPosition = board.Position(*viewer)
	}
	return board, nil
}

func (s *GameService) GetWeekSnapshot(ctx context.Context, wk uint64) (*week.Snapshot, error) {
	var snap *week.Snapshot
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		found, ok, err := tx.Snapshot(ctx, wk)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		snap = found
		return nil
	})
	return snap, err
}

func (s *GameService) Events(ctx context.Context, since int64, limit int) ([]events.Event, error) {
	var out []events.Event
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		out, err = tx.Events(ctx, since, limit)
		return err
	})
	if out == nil {
		out = []events.Event{}
	}
	return out, err
}
