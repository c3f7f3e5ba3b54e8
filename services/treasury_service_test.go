package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baseQuestAPI/internal/chain"
	"baseQuestAPI/internal/leaderboard"
)

func rankedEntries(n int) []*leaderboard.LeaderboardEntry {
	out := make([]*leaderboard.LeaderboardEntry, n)
	for i := range out {
		out[i] = &leaderboard.LeaderboardEntry{
			Address: common.HexToAddress(fmt.Sprintf("0x%040x", i+1)),
			Rank:    i + 1,
		}
	}
	return out
}

func TestPlanPayouts(t *testing.T) {
	tests := []struct {
		name    string
		ranked  int
		pool    int64
		winners int
		share   int64
	}{
		{"no players", 0, 1000, 0, 0},
		{"empty pool", 5, 0, 0, 0},
		{"single winner below ten players", 9, 1000, 1, 900},
		{"ten percent of twenty", 20, 1000, 2, 450},
		{"remainder stays in treasury", 30, 1000, 3, 300},
		{"share rounds down", 10, 7, 1, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanPayouts(rankedEntries(tt.ranked), big.NewInt(tt.pool))
			require.Len(t, plan, tt.winners)
			for i, p := range plan {
				assert.Equal(t, i+1, p.Rank)
				assert.Equal(t, tt.share, p.Amount.Int64())
			}
		})
	}
}

type failAfter struct {
	inner *chain.RecordingPayoutSender
	left  int
}

func (f *failAfter) Send(ctx context.Context, to common.Address, amount *big.Int) (string, error) {
	if f.left == 0 {
		return "", errors.New("out of gas")
	}
	f.left--
	return f.inner.Send(ctx, to, amount)
}

func TestTreasurySettle_ReturnsSentPayoutsOnError(t *testing.T) {
	sender := &failAfter{inner: chain.NewRecordingPayoutSender(), left: 1}
	treasury := NewTreasuryService(sender)

	sent, err := treasury.Settle(context.Background(), 2, rankedEntries(20), big.NewInt(1000))
	require.Error(t, err)
	require.Len(t, sent, 1)
	assert.NotEmpty(t, sent[0].TxHash)
}
