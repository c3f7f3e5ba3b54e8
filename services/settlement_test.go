package services

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baseQuestAPI/internal/chain"
	"baseQuestAPI/internal/epoch"
	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/week"
)

func playWeekZero(t *testing.T, f *fixture, players ...common.Address) {
	t.Helper()
	tk := f.addTask(t, task.TypeOnchain, 100)
	for i, p := range players {
		f.join(t, p)
		for n := 0; n <= i && n < 3; n++ {
			_, err := f.complete(p, tk.ID)
			require.NoError(t, err)
		}
	}
}

func TestSettlement_AutomaticAfterRollover(t *testing.T) {
	f := newFixture(t)
	sender := chain.NewRecordingPayoutSender()
	f.svc.SetSettler(NewTreasuryService(sender))

	playWeekZero(t, f, p1, p2, p3)
	f.clock.Set(launch.Add(epoch.WeekLength))
	_, err := f.svc.AdvanceWeek(f.ctx)
	require.NoError(t, err)

	snap, err := f.svc.GetWeekSnapshot(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, week.SettlementSettled, snap.Status)
	require.NotNil(t, snap.SettlementID)
	require.NotNil(t, snap.SettledAt)

	// p3 completed the most tasks; one winner out of three players
	require.Len(t, snap.Payouts, 1)
	assert.Equal(t, p3, snap.Payouts[0].Address)
	pool := new(big.Int).Mul(fee, big.NewInt(3))
	want := new(big.Int).Quo(new(big.Int).Mul(pool, big.NewInt(90)), big.NewInt(100))
	assert.Equal(t, want, snap.Payouts[0].Amount)
	assert.NotEmpty(t, snap.Payouts[0].TxHash)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, p3, sent[0].To)

	_, err = f.svc.SettleWeek(f.ctx, 0)
	assert.ErrorIs(t, err, ErrSettlementAlreadyDone)
	assert.Len(t, sender.Sent(), 1)

	assert.Contains(t, f.pub.types(), events.TypeWeekSettled)
}

func TestSettlement_FailureIsRecordedOnce(t *testing.T) {
	f := newFixture(t)
	playWeekZero(t, f, p1)

	f.clock.Set(launch.Add(epoch.WeekLength + time.Minute))
	_, err := f.svc.AdvanceWeek(f.ctx)
	require.NoError(t, err)

	sender := chain.NewRecordingPayoutSender()
	sender.FailWith(errors.New("rpc unavailable"))
	f.svc.SetSettler(NewTreasuryService(sender))

	snap, err := f.svc.SettleWeek(f.ctx, 0)
	require.Error(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, week.SettlementFailed, snap.Status)
	assert.Equal(t, "rpc unavailable", snap.FailureReason)

	_, err = f.svc.SettleWeek(f.ctx, 0)
	assert.ErrorIs(t, err, ErrSettlementAlreadyDone)

	rec, err := f.svc.GetPlayerData(f.ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), rec.TotalBasePoints)
}

func TestSettlement_UnknownWeek(t *testing.T) {
	f := newFixture(t)
	f.svc.SetSettler(NewTreasuryService(chain.NewRecordingPayoutSender()))

	_, err := f.svc.SettleWeek(f.ctx, 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettlePending(t *testing.T) {
	f := newFixture(t)
	playWeekZero(t, f, p1, p2)

	f.clock.Set(launch.Add(epoch.WeekLength + time.Minute))
	_, err := f.svc.AdvanceWeek(f.ctx)
	require.NoError(t, err)

	sender := chain.NewRecordingPayoutSender()
	f.svc.SetSettler(NewTreasuryService(sender))

	n, err := f.svc.SettlePending(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.SettlePending(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, sender.Sent(), 1)
}

func TestSettlement_AutoSettleDisabled(t *testing.T) {
	f := newFixture(t)
	sender := chain.NewRecordingPayoutSender()
	f.svc.SetSettler(NewTreasuryService(sender))
	f.svc.SetAutoSettle(false)

	playWeekZero(t, f, p1, p2)
	f.clock.Set(launch.Add(epoch.WeekLength))
	_, err := f.svc.AdvanceWeek(f.ctx)
	require.NoError(t, err)

	snap, err := f.svc.GetWeekSnapshot(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, week.SettlementPending, snap.Status)
	assert.Empty(t, sender.Sent())

	n, err := f.svc.SettlePending(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sender.Sent(), 1)
}
