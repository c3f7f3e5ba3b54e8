package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/leaderboard"
	"baseQuestAPI/internal/ledger"
	"baseQuestAPI/internal/logger"
	"baseQuestAPI/internal/week"
)

// Settler pays out a closed week. Payouts already sent must be returned
// even when err is non-nil.
type Settler interface {
	Settle(ctx context.Context, wk uint64, ranked []*leaderboard.LeaderboardEntry, pool *big.Int) ([]week.Payout, error)
}

// SettleWeek hands a closed week to the settler. A week is claimed before
// the settler runs, so it is paid at most once even if the outcome cannot
// be recorded.
func (s *GameService) SettleWeek(ctx context.Context, wk uint64) (*week.Snapshot, error) {
	if s.settler == nil {
		return nil, fmt.Errorf("no settler configured")
	}

	id := uuid.New()
	var claimed *week.Snapshot
	err := s.store.Atomic(ctx, func(tx ledger.Tx) error {
		snap, found, err := tx.Snapshot(ctx, wk)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if snap.Status != week.SettlementPending {
			return fmt.Errorf("%w: week %d is %s", ErrSettlementAlreadyDone, wk, snap.Status)
		}
		snap.Status = week.SettlementClaimed
		snap.SettlementID = &id
		claimed = snap
		return tx.PutSnapshot(ctx, snap)
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx).With(zap.Uint64("week", wk), zap.String("settlement_id", id.String()))
	log.Info("settling week", zap.String("pool_wei", claimed.Pool.String()), zap.Int("ranked", len(claimed.Ranked)))

	payouts, settleErr := s.settler.Settle(ctx, wk, claimed.Ranked, claimed.Pool)

	var (
		result  *week.Snapshot
		emitted []events.Event
	)
	// The claim is already committed, so the outcome is recorded even when
	// the caller's context has gone away.
	recordCtx := context.WithoutCancel(ctx)
	err = s.store.Atomic(recordCtx, func(tx ledger.Tx) error {
		snap, found, err := tx.Snapshot(recordCtx, wk)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}

		now := s.clock.Now().UTC()
		snap.Payouts = payouts
		if settleErr != nil {
			snap.Status = week.SettlementFailed
			snap.FailureReason = settleErr.Error()
		} else {
			snap.Status = week.SettlementSettled
			snap.SettledAt = &now

			e := events.WeekSettled(wk, snap.Pool, len(payouts), now)
			if err := tx.AppendEvent(recordCtx, &e); err != nil {
				return err
			}
			emitted = append(emitted, e)
		}
		result = snap
		return tx.PutSnapshot(recordCtx, snap)
	})
	if err != nil {
		log.Error("failed to record settlement outcome", zap.Error(err), zap.NamedError("settle_error", settleErr))
		return nil, fmt.Errorf("failed to record settlement of week %d: %w", wk, err)
	}

	if s.publisher != nil && len(emitted) > 0 {
		s.publisher.Publish(emitted...)
	}

	if settleErr != nil {
		log.Error("settlement failed", zap.Error(settleErr), zap.Int("sent", len(payouts)))
		return result, fmt.Errorf("settlement of week %d failed: %w", wk, settleErr)
	}
	log.Info("week settled", zap.Int("payouts", len(payouts)))
	return result, nil
}

// SettlePending settles every closed week still waiting for the treasury.
func (s *GameService) SettlePending(ctx context.Context) (int, error) {
	var pending []*week.Snapshot
	err := s.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		pending, err = tx.SnapshotsWithStatus(ctx, week.SettlementPending)
		return err
	})
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, snap := range pending {
		if _, err := s.SettleWeek(ctx, snap.Week); err != nil {
			logger.WithContext(ctx).Warn("pending settlement failed", zap.Uint64("week", snap.Week), zap.Error(err))
			continue
		}
		settled++
	}
	return settled, nil
}
