package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baseQuestAPI/internal/chain"
	"baseQuestAPI/internal/config"
	"baseQuestAPI/internal/epoch"
	"baseQuestAPI/internal/wallet"
)

func devConfig(t *testing.T) *config.Config {
	t.Helper()
	fee, err := wallet.ParseEther("0.00001")
	require.NoError(t, err)
	return &config.Config{
		Env:         "development",
		LaunchTime:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EntryFeeWei: fee,
		ChainID:     8453,
	}
}

func TestOpenStore_MemoryStartsAtCurrentWeek(t *testing.T) {
	cfg := devConfig(t)
	now := cfg.LaunchTime.Add(15 * 24 * time.Hour)

	store, err := OpenStore(context.Background(), cfg, now)
	require.NoError(t, err)
	defer store.Close()

	g, err := NewGame(context.Background(), cfg, store, epoch.NewManualClock(now))
	require.NoError(t, err)
	defer g.Close()

	wk, err := g.Service.CurrentWeek(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), wk)
}

func TestNewGame_DevUsesRecordingPayouts(t *testing.T) {
	cfg := devConfig(t)
	store, err := OpenStore(context.Background(), cfg, cfg.LaunchTime)
	require.NoError(t, err)

	g, err := NewGame(context.Background(), cfg, store, epoch.NewManualClock(cfg.LaunchTime))
	require.NoError(t, err)
	_, ok := g.Payouts.(*chain.RecordingPayoutSender)
	assert.True(t, ok)
}

func TestNewGame_ProductionNeedsTreasury(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	store, err := OpenStore(context.Background(), cfg, cfg.LaunchTime)
	require.NoError(t, err)

	_, err = NewGame(context.Background(), cfg, store, epoch.NewManualClock(cfg.LaunchTime))
	assert.Error(t, err)
}
