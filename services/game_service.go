package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"baseQuestAPI/internal/chain"
	"baseQuestAPI/internal/epoch"
	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/leaderboard"
	"baseQuestAPI/internal/ledger"
	"baseQuestAPI/internal/logger"
	"baseQuestAPI/internal/player"
	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/wallet"
	"baseQuestAPI/internal/week"
)

type EventPublisher interface {
	Publish(evts ...events.Event)
}

// GameService owns the weekly game rules. Every write runs inside one
// ledger transaction that first rolls the world forward to the week the
// clock is in.
type GameService struct {
	store    ledger.Store
	schedule epoch.Schedule
	clock    epoch.Clock
	roles    Roles

	verifier  chain.PaymentVerifier
	settler   Settler
	publisher EventPublisher

	autoSettle bool
	spawn      func(func())
}

func NewGameService(store ledger.Store, schedule epoch.Schedule, clock epoch.Clock, roles Roles) *GameService {
	return &GameService{
		store:      store,
		schedule:   schedule,
		clock:      clock,
		roles:      roles,
		autoSettle: true,
		spawn:      func(f func()) { go f() },
	}
}

func (s *GameService) SetPaymentVerifier(v chain.PaymentVerifier) { s.verifier = v }
func (s *GameService) SetSettler(st Settler)                      { s.settler = st }
func (s *GameService) SetPublisher(p EventPublisher)              { s.publisher = p }

// SetAutoSettle controls whether a closed week is settled in the
// background right after the rollover commits. Short-lived processes turn
// it off and call SettlePending themselves.
func (s *GameService) SetAutoSettle(on bool) { s.autoSettle = on }

func (s *GameService) Roles() Roles { return s.roles }

func (s *GameService) Schedule() epoch.Schedule { return s.schedule }

// writeCtx is the state of one write transaction.
type writeCtx struct {
	tx     ledger.Tx
	world  *week.State
	now    time.Time
	events []events.Event
	closed []*week.Snapshot
}

func (w *writeCtx) emit(ctx context.Context, e events.Event) error {
	if err := w.tx.AppendEvent(ctx, &e); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	w.events = append(w.events, e)
	return nil
}

func (s *GameService) write(ctx context.Context, fn func(ctx context.Context, w *writeCtx) error) error {
	var done *writeCtx
	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		world, err := tx.World(ctx)
		if err != nil {
			return err
		}
		w := &writeCtx{tx: tx, world: world, now: s.clock.Now().UTC()}

		if err := s.ensureCurrentWeek(ctx, w); err != nil {
			return err
		}
		if err := fn(ctx, w); err != nil {
			return err
		}
		if err := tx.PutWorld(ctx, w.world); err != nil {
			return err
		}
		done = w
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(done)
	return nil
}

func (s *GameService) afterCommit(w *writeCtx) {
	if s.publisher != nil && len(w.events) > 0 {
		s.publisher.Publish(w.events...)
	}
	for _, snap := range w.closed {
		if !s.autoSettle || snap.Status != week.SettlementPending || s.settler == nil {
			continue
		}
		wk := snap.Week
		s.spawn(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := s.SettleWeek(ctx, wk); err != nil {
				logger.L().Error("automatic settlement failed", zap.Uint64("week", wk), zap.Error(err))
			}
		})
	}
}

// ensureCurrentWeek closes the stored week when the clock has moved past
// it: the ranked leaderboard and pool are frozen into a snapshot and the
// live pool starts again from zero. Player records are not touched.
func (s *GameService) ensureCurrentWeek(ctx context.Context, w *writeCtx) error {
	target := s.schedule.WeekIndexOf(w.now)
	if target <= w.world.CurrentWeek {
		return nil
	}

	closing := w.world.CurrentWeek
	players, err := w.tx.Players(ctx)
	if err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}
	ranked := leaderboard.Rank(players, closing)

	snap := &week.Snapshot{
		Week:     closing,
		Pool:     new(big.Int).Set(w.world.WeeklyPrizePool),
		Ranked:   ranked,
		ClosedAt: w.now,
		Status:   week.SettlementPending,
	}
	if len(ranked) == 0 {
		snap.Status = week.SettlementNoPlayer
	}
	if err := w.tx.PutSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to snapshot week %d: %w", closing, err)
	}
	if err := w.emit(ctx, events.WeekClosed(closing, snap.Pool, len(ranked), w.now)); err != nil {
		return err
	}

	w.world.WeeklyPrizePool = new(big.Int)
	w.world.CurrentWeek = target
	w.closed = append(w.closed, snap)

	logger.WithContext(ctx).Info("week closed",
		zap.Uint64("week", closing),
		zap.Uint64("next_week", target),
		zap.String("pool_wei", snap.Pool.String()),
		zap.Int("ranked", len(ranked)),
	)
	return nil
}

// AdvanceWeek runs only the week rollover. Used by background workers and
// the operator CLI so a quiet week still closes on time.
func (s *GameService) AdvanceWeek(ctx context.Context) (uint64, error) {
	var current uint64
	err := s.write(ctx, func(_ context.Context, w *writeCtx) error {
		current = w.world.CurrentWeek
		return nil
	})
	return current, err
}

// JoinWeek enrols the caller into the current week for paid wei.
func (s *GameService) JoinWeek(ctx context.Context, caller Caller, paid *big.Int) (player.Record, error) {
	if err := requireCap(caller, CapPlayer); err != nil {
		return player.Record{}, err
	}

	var rec player.Record
	err := s.write(ctx, func(ctx context.Context, w *writeCtx) error {
		var err error
		rec, err = s.join(ctx, w, caller.Address, paid)
		return err
	})
	return rec, err
}

// JoinWithPayment verifies proof before joining. A transaction hash is
// consumed only when the join succeeds.
func (s *GameService) JoinWithPayment(ctx context.Context, caller Caller, proof chain.Payment) (player.Record, error) {
	if err := requireCap(caller, CapPlayer); err != nil {
		return player.Record{}, err
	}
	if s.verifier == nil {
		return player.Record{}, fmt.Errorf("%w: payments are not configured", ErrPaymentRejected)
	}

	paid, err := s.verifier.Verify(ctx, proof, caller.Address)
	if err != nil {
		if errors.Is(err, chain.ErrPaymentRejected) {
			return player.Record{}, fmt.Errorf("%w: %v", ErrPaymentRejected, err)
		}
		return player.Record{}, fmt.Errorf("failed to verify payment: %w", err)
	}

	var rec player.Record
	err = s.write(ctx, func(ctx context.Context, w *writeCtx) error {
		if key := proof.Key(); key != "" {
			if err := w.tx.UsePayment(ctx, key, caller.Address, w.world.CurrentWeek); err != nil {
				if errors.Is(err, ledger.ErrPaymentUsed) {
					return fmt.Errorf("%w: transaction %s was already used", ErrPaymentRejected, key)
				}
				return err
			}
		}
		var err error
		rec, err = s.join(ctx, w, caller.Address, paid)
		return err
	})
	return rec, err
}

func (s *GameService) join(ctx context.Context, w *writeCtx, addr common.Address, paid *big.Int) (player.Record, error) {
	if paid == nil || paid.Cmp(w.world.EntryFee) < 0 {
		return player.Record{}, fmt.Errorf("%w: entry fee is %s ETH", ErrInsufficientFee, wallet.FormatEther(w.world.EntryFee))
	}

	current := w.world.CurrentWeek
	rec, err := ledger.Upsert(ctx, w.tx, addr, func(rec *player.Record) error {
		if rec.JoinedWeek(current) && rec.ActiveThisWeek {
			return ErrAlreadyJoined
		}
		rec.ActiveThisWeek = true
		rec.PlayerWeek = current
		rec.HasJoined = true
		rec.WeeklyBasePoints = 0
		rec.TasksCompletedToday = 0
		rec.LastTaskResetTime = w.now
		return nil
	})
	if err != nil {
		return player.Record{}, err
	}

	w.world.WeeklyPrizePool = new(big.Int).Add(w.world.WeeklyPrizePool, paid)
	if err := w.emit(ctx, events.PlayerJoined(addr, current, w.now)); err != nil {
		return player.Record{}, err
	}

	logger.WithContext(ctx).Info("player joined",
		zap.String("player", addr.Hex()),
		zap.Uint64("week", current),
		zap.String("paid_wei", paid.String()),
	)
	return rec, nil
}

// Completion is the result of a credited task.
type Completion struct {
	Player        player.Record `json:"player"`
	Task          task.Task     `json:"task"`
	PointsEarned  uint64        `json:"points_earned"`
	StreakUpdated bool          `json:"streak_updated"`
}

// CompleteTask credits taskID of the current week to playerAddr. att is
// only consulted when a player completes an attested task themselves.
func (s *GameService) CompleteTask(ctx context.Context, caller Caller, playerAddr common.Address, taskID int, att *wallet.Attestation) (*Completion, error) {
	var out *Completion
	err := s.write(ctx, func(ctx context.Context, w *writeCtx) error {
		var err error
		out, err = s.complete(ctx, w, caller, playerAddr, taskID, att)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AttestTask is the attester completing an off-chain task for a player.
func (s *GameService) AttestTask(ctx context.Context, caller Caller, playerAddr common.Address, taskID int) (*Completion, error) {
	if err := requireCap(caller, CapAttester); err != nil {
		return nil, err
	}
	return s.CompleteTask(ctx, caller, playerAddr, taskID, nil)
}

func (s *GameService) complete(ctx context.Context, w *writeCtx, caller Caller, addr common.Address, taskID int, att *wallet.Attestation) (*Completion, error) {
	current := w.world.CurrentWeek

	rec, err := ledger.GetPlayer(ctx, w.tx, addr)
	if err != nil {
		return nil, err
	}
	if !rec.JoinedWeek(current) || !rec.ActiveThisWeek {
		return nil, ErrNotActive
	}

	tasks, err := w.tx.Tasks(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if taskID < 0 || taskID >= len(tasks) {
		return nil, ErrTaskNotFound
	}
	tk := tasks[taskID]
	if !tk.IsActive {
		return nil, ErrTaskInactive
	}

	consumeNonce, err := s.authorize(caller, rec, tk, att)
	if err != nil {
		return nil, err
	}

	if s.schedule.DayBoundaryFor(rec.LastTaskResetTime, w.now) {
		rec.TasksCompletedToday = 0
		rec.LastTaskResetTime = w.now
	}
	if rec.TasksCompletedToday >= player.MaxTasksPerDay {
		return nil, ErrDailyLimitReached
	}

	prevStreak := rec.CurrentStreak
	if rec.TasksCompletedToday == 0 {
		rec.CurrentStreak, rec.StreakDayStart = s.nextStreak(rec)
	}

	rec.TotalBasePoints += tk.BasePointsReward
	rec.WeeklyBasePoints += tk.BasePointsReward
	rec.TasksCompletedToday++
	rec.LastCheckInTime = w.now
	if consumeNonce {
		rec.Nonce++
	}

	saved, err := w.tx.PutPlayer(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to save player: %w", err)
	}

	if err := w.emit(ctx, events.TaskCompleted(addr, current, taskID, tk.BasePointsReward, w.now)); err != nil {
		return nil, err
	}
	streakChanged := saved.CurrentStreak != prevStreak
	if streakChanged {
		if err := w.emit(ctx, events.StreakUpdated(addr, current, saved.CurrentStreak, w.now)); err != nil {
			return nil, err
		}
	}

	logger.WithContext(ctx).Info("task completed",
		zap.String("player", addr.Hex()),
		zap.Uint64("week", current),
		zap.Int("task_id", taskID),
		zap.Uint64("points", tk.BasePointsReward),
		zap.Uint64("streak", saved.CurrentStreak),
	)

	return &Completion{
		Player:        saved.Reconciled(current),
		Task:          tk,
		PointsEarned:  tk.BasePointsReward,
		StreakUpdated: streakChanged,
	}, nil
}

// authorize decides whether caller may complete tk for rec. It reports
// whether the player's attestation nonce must be consumed.
func (s *GameService) authorize(caller Caller, rec player.Record, tk task.Task, att *wallet.Attestation) (bool, error) {
	if !tk.Type.RequiresAttester() {
		if caller.Address != rec.Address {
			return false, fmt.Errorf("%w: %s tasks must be completed by the player", ErrUnauthorized, tk.Type)
		}
		return false, nil
	}

	if caller.Has(CapAttester) {
		return false, nil
	}
	if att == nil || caller.Address != rec.Address {
		return false, fmt.Errorf("%w: %s tasks require an attester", ErrUnauthorized, tk.Type)
	}

	if att.Player != rec.Address || att.Week != tk.Week || att.TaskID != tk.ID || att.Nonce != rec.Nonce {
		return false, fmt.Errorf("%w: attestation does not match player, week, task or nonce", ErrUnauthorized)
	}
	signer, err := att.Signer()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !s.roles.IsAttester(signer) {
		return false, fmt.Errorf("%w: attestation not signed by the attester", ErrUnauthorized)
	}
	return true, nil
}

// nextStreak runs on the first completion of a day window. StreakDayStart
// is the start of the last credited window: a window opened less than a day
// after it (a rejoin) credits nothing, the window right after it adds one,
// and anything later resets the streak to 1.
func (s *GameService) nextStreak(rec player.Record) (uint64, time.Time) {
	window := rec.LastTaskResetTime
	if rec.CurrentStreak == 0 || rec.StreakDayStart.IsZero() {
		return 1, window
	}
	gap := window.Sub(rec.StreakDayStart)
	switch {
	case gap < s.schedule.DayLength:
		return rec.CurrentStreak, rec.StreakDayStart
	case gap < 2*s.schedule.DayLength:
		return rec.CurrentStreak + 1, window
	default:
		return 1, window
	}
}

// AddTask appends a task to the current week.
func (s *GameService) AddTask(ctx context.Context, caller Caller, req task.NewTaskRequest) (task.Task, error) {
	if err := requireCap(caller, CapCurator); err != nil {
		return task.Task{}, err
	}

	taskType, err := task.ParseType(req.TaskType)
	if err != nil {
		return task.Task{}, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return task.Task{}, fmt.Errorf("%w: description is required", ErrInvalidTask)
	}
	if req.BasePointsReward == 0 {
		return task.Task{}, fmt.Errorf("%w: base_points_reward must be positive", ErrInvalidTask)
	}
	if req.BasePointsReward > task.MaxBasePointsReward {
		return task.Task{}, fmt.Errorf("%w: base_points_reward exceeds %d", ErrInvalidTask, task.MaxBasePointsReward)
	}

	var created task.Task
	err = s.write(ctx, func(ctx context.Context, w *writeCtx) error {
		var err error
		created, err = w.tx.AppendTask(ctx, task.Task{
			Week:             w.world.CurrentWeek,
			Description:      desc,
			Type:             taskType,
			BasePointsReward: req.BasePointsReward,
			IsActive:         true,
			Metadata:         req.Metadata,
			CreatedAt:        w.now,
		})
		return err
	})
	if err != nil {
		return task.Task{}, err
	}

	logger.WithContext(ctx).Info("task added",
		zap.Uint64("week", created.Week),
		zap.Int("task_id", created.ID),
		zap.String("curator", caller.Address.Hex()),
	)
	return created, nil
}

// SetTaskActive toggles a task of the current week.
func (s *GameService) SetTaskActive(ctx context.Context, caller Caller, taskID int, active bool) (task.Task, error) {
	if err := requireCap(caller, CapCurator); err != nil {
		return task.Task{}, err
	}

	var updated task.Task
	err := s.write(ctx, func(ctx context.Context, w *writeCtx) error {
		tasks, err := w.tx.Tasks(ctx, w.world.CurrentWeek)
		if err != nil {
			return err
		}
		if taskID < 0 || taskID >= len(tasks) {
			return ErrTaskNotFound
		}
		if err := w.tx.SetTaskActive(ctx, w.world.CurrentWeek, taskID, active); err != nil {
			return err
		}
		updated = tasks[taskID]
		updated.IsActive = active
		return nil
	})
	return updated, err
}
