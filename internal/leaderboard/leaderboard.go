package leaderboard

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"baseQuestAPI/internal/player"
	"baseQuestAPI/utils"
)

type LeaderboardEntry struct {
	Address          common.Address `json:"address" db:"address"`
	CurrentStreak    uint64         `json:"current_streak" db:"current_streak"`
	WeeklyBasePoints uint64         `json:"weekly_base_points" db:"weekly_base_points"`
	Score            uint64         `json:"score"`
	Rank             int            `json:"rank"`
}

type Leaderboard struct {
	Week         uint64              `json:"week"`
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position,omitempty"`
	TotalPlayers int                 `json:"total_players"`
}

// Arrays is the parallel-array form: addresses, streaks and points in the
// same ranked order.
type Arrays struct {
	Addresses []common.Address `json:"addresses"`
	Streaks   []uint64         `json:"streaks"`
	Points    []uint64         `json:"points"`
}

// Rank builds the ranking for week from records given in insertion order.
// Only players who joined week and have points or a streak are ranked;
// equal scores keep insertion order.
func Rank(records []player.Record, week uint64) []*LeaderboardEntry {
	entries := make([]*LeaderboardEntry, 0, len(records))
	for _, r := range records {
		if !r.JoinedWeek(week) {
			continue
		}
		if r.WeeklyBasePoints == 0 && r.CurrentStreak == 0 {
			continue
		}
		entries = append(entries, &LeaderboardEntry{
			Address:          r.Address,
			CurrentStreak:    r.CurrentStreak,
			WeeklyBasePoints: r.WeeklyBasePoints,
			Score:            utils.CompositeScore(r.CurrentStreak, r.WeeklyBasePoints),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries
}

func (l *Leaderboard) Arrays() Arrays {
	out := Arrays{
		Addresses: make([]common.Address, 0, len(l.Entries)),
		Streaks:   make([]uint64, 0, len(l.Entries)),
		Points:    make([]uint64, 0, len(l.Entries)),
	}
	for _, e := range l.Entries {
		out.Addresses = append(out.Addresses, e.Address)
		out.Streaks = append(out.Streaks, e.CurrentStreak)
		out.Points = append(out.Points, e.WeeklyBasePoints)
	}
	return out
}

// Position finds addr in the ranking.
func (l *Leaderboard) Position(addr common.Address) *LeaderboardEntry {
	for _, e := range l.Entries {
		if e.Address == addr {
			return e
		}
	}
	return nil
}
