package week

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"baseQuestAPI/internal/leaderboard"
)

// State is the game-wide singleton. Every engine call loads it, mutates a
// copy and writes it back inside the same ledger transaction.
type State struct {
	CurrentWeek     uint64    `json:"current_week" db:"current_week"`
	WeeklyPrizePool *big.Int  `json:"weekly_prize_pool" db:"weekly_prize_pool"`
	EntryFee        *big.Int  `json:"entry_fee" db:"entry_fee"`
	LaunchTime      time.Time `json:"launch_time" db:"launch_time"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

func NewState(launch time.Time, entryFee *big.Int) *State {
	return &State{
		WeeklyPrizePool: new(big.Int),
		EntryFee:        new(big.Int).Set(entryFee),
		LaunchTime:      launch.UTC(),
	}
}

func (s *State) Clone() *State {
	c := *s
	c.WeeklyPrizePool = cloneInt(s.WeeklyPrizePool)
	c.EntryFee = cloneInt(s.EntryFee)
	return &c
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

type SettlementStatus string

const (
	SettlementPending  SettlementStatus = "PENDING" // closed, not yet handed to the treasury
	SettlementClaimed  SettlementStatus = "CLAIMED" // handed to the treasury, outcome unknown
	SettlementSettled  SettlementStatus = "SETTLED"
	SettlementFailed   SettlementStatus = "FAILED"
	SettlementNoPlayer SettlementStatus = "EMPTY" // nobody ranked, pool stays in treasury
)

// Snapshot freezes a closed week for payout.
type Snapshot struct {
	Week          uint64                          `json:"week" db:"week"`
	Pool          *big.Int                        `json:"pool" db:"pool"`
	Ranked        []*leaderboard.LeaderboardEntry `json:"ranked" db:"ranked"`
	ClosedAt      time.Time                       `json:"closed_at" db:"closed_at"`
	Status        SettlementStatus                `json:"status" db:"status"`
	SettlementID  *uuid.UUID                      `json:"settlement_id,omitempty" db:"settlement_id"`
	SettledAt     *time.Time                      `json:"settled_at,omitempty" db:"settled_at"`
	FailureReason string                          `json:"failure_reason,omitempty" db:"failure_reason"`
	Payouts       []Payout                        `json:"payouts,omitempty" db:"payouts"`
}

type Payout struct {
	Address common.Address `json:"address"`
	Rank    int            `json:"rank"`
	Amount  *big.Int       `json:"amount"`
	TxHash  string         `json:"tx_hash,omitempty"`
}

func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Pool = cloneInt(s.Pool)
	c.Ranked = make([]*leaderboard.LeaderboardEntry, len(s.Ranked))
	for i, e := range s.Ranked {
		cp := *e
		c.Ranked[i] = &cp
	}
	c.Payouts = make([]Payout, len(s.Payouts))
	for i, p := range s.Payouts {
		p.Amount = cloneInt(p.Amount)
		c.Payouts[i] = p
	}
	if s.SettlementID != nil {
		id := *s.SettlementID
		c.SettlementID = &id
	}
	if s.SettledAt != nil {
		at := *s.SettledAt
		c.SettledAt = &at
	}
	return &c
}

// GameInfo is the read-only summary of the world state.
type GameInfo struct {
	CurrentWeek        uint64    `json:"current_week"`
	EntryFeeWei        string    `json:"entry_fee_wei"`
	EntryFeeEth        string    `json:"entry_fee_eth"`
	WeeklyPrizePoolWei string    `json:"weekly_prize_pool_wei"`
	WeeklyPrizePoolEth string    `json:"weekly_prize_pool_eth"`
	TimeUntilWeekEnd   int64     `json:"time_until_week_end"`
	WeekEndsAt         time.Time `json:"week_ends_at"`
}
