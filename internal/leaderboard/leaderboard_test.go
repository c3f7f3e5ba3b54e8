package leaderboard

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baseQuestAPI/internal/player"
)

func joined(hex string, streak, weekly uint64, week uint64) player.Record {
	r := player.New(common.HexToAddress(hex))
	r.HasJoined = true
	r.ActiveThisWeek = true
	r.PlayerWeek = week
	r.CurrentStreak = streak
	r.WeeklyBasePoints = weekly
	return r
}

func TestRankByCompositeScore(t *testing.T) {
	p1 := joined("0x01", 5, 100, 0)
	p2 := joined("0x02", 3, 150, 0)
	p3 := joined("0x03", 5, 90, 0)

	ranked := Rank([]player.Record{p1, p2, p3}, 0)
	require.Len(t, ranked, 3)

	assert.Equal(t, p2.Address, ranked[0].Address)
	assert.Equal(t, uint64(153), ranked[0].Score)
	assert.Equal(t, p1.Address, ranked[1].Address)
	assert.Equal(t, uint64(105), ranked[1].Score)
	assert.Equal(t, p3.Address, ranked[2].Address)
	assert.Equal(t, uint64(95), ranked[2].Score)
	assert.Equal(t, 3, ranked[2].Rank)
}

func TestRankTiesKeepInsertionOrder(t *testing.T) {
	a := joined("0x0a", 0, 50, 1)
	b := joined("0x0b", 10, 40, 1)
	c := joined("0x0c", 1, 49, 1)

	ranked := Rank([]player.Record{a, b, c}, 1)
	require.Len(t, ranked, 3)
	assert.Equal(t, []common.Address{a.Address, b.Address, c.Address},
		[]common.Address{ranked[0].Address, ranked[1].Address, ranked[2].Address})
}

func TestRankSkipsIdleAndStalePlayers(t *testing.T) {
	idle := joined("0x01", 0, 0, 2)
	stale := joined("0x02", 4, 300, 1)
	live := joined("0x03", 1, 10, 2)

	ranked := Rank([]player.Record{idle, stale, live}, 2)
	require.Len(t, ranked, 1)
	assert.Equal(t, live.Address, ranked[0].Address)
}

func TestArrays(t *testing.T) {
	lb := &Leaderboard{Entries: Rank([]player.Record{joined("0x01", 2, 20, 0), joined("0x02", 1, 40, 0)}, 0)}
	arr := lb.Arrays()

	assert.Equal(t, []uint64{1, 2}, arr.Streaks)
	assert.Equal(t, []uint64{40, 20}, arr.Points)
	assert.Equal(t, common.HexToAddress("0x02"), arr.Addresses[0])
	assert.NotNil(t, lb.Position(common.HexToAddress("0x01")))
	assert.Nil(t, lb.Position(common.HexToAddress("0x09")))
}
