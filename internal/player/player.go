package player

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const MaxTasksPerDay = 3

// Record is the per-address ledger entry. The zero value is the record of
// a player that has never interacted with the game.
type Record struct {
	Address             common.Address `json:"address" db:"address"`
	CurrentStreak       uint64         `json:"current_streak" db:"current_streak"`
	TotalBasePoints     uint64         `json:"total_base_points" db:"total_base_points"`
	WeeklyBasePoints    uint64         `json:"weekly_base_points" db:"weekly_base_points"`
	ActiveThisWeek      bool           `json:"active_this_week" db:"active_this_week"`
	HasJoined           bool           `json:"has_joined" db:"has_joined"`
	PlayerWeek          uint64         `json:"player_week" db:"player_week"`
	LastCheckInTime     time.Time      `json:"last_check_in_time" db:"last_check_in_time"`
	TasksCompletedToday uint8          `json:"tasks_completed_today" db:"tasks_completed_today"`
	LastTaskResetTime   time.Time      `json:"last_task_reset_time" db:"last_task_reset_time"`
	StreakDayStart      time.Time      `json:"streak_day_start" db:"streak_day_start"`
	Nonce               uint64         `json:"nonce" db:"nonce"`
	Seq                 int64          `json:"-" db:"seq"`
}

func New(addr common.Address) Record {
	return Record{Address: addr}
}

// JoinedWeek reports whether the player paid the entry fee for week.
func (r Record) JoinedWeek(week uint64) bool {
	return r.HasJoined && r.PlayerWeek == week
}

// Reconciled returns the record as seen from currentWeek: an active flag
// left over from an older week reads as inactive.
func (r Record) Reconciled(currentWeek uint64) Record {
	if r.ActiveThisWeek && !r.JoinedWeek(currentWeek) {
		r.ActiveThisWeek = false
	}
	return r
}

// Status mirrors the consistency diagnostics operators run against a player.
type Status struct {
	Address              common.Address `json:"address"`
	HasJoinedCurrentWeek bool           `json:"has_joined_current_week"`
	IsActiveThisWeek     bool           `json:"is_active_this_week"`
	StoredActiveFlag     bool           `json:"stored_active_flag"`
	PlayerCurrentWeek    uint64         `json:"player_current_week"`
	ContractCurrentWeek  uint64         `json:"contract_current_week"`
	CanCompleteTasks     bool           `json:"can_complete_tasks"`
	Diagnosis            string         `json:"diagnosis"`
}

func StatusOf(r Record, currentWeek uint64) Status {
	st := Status{
		Address:              r.Address,
		HasJoinedCurrentWeek: r.JoinedWeek(currentWeek),
		IsActiveThisWeek:     r.Reconciled(currentWeek).ActiveThisWeek,
		StoredActiveFlag:     r.ActiveThisWeek,
		PlayerCurrentWeek:    r.PlayerWeek,
		ContractCurrentWeek:  currentWeek,
	}

	switch {
	case st.HasJoinedCurrentWeek && r.ActiveThisWeek:
		st.CanCompleteTasks = true
		st.Diagnosis = "joined and active"
	case st.HasJoinedCurrentWeek && !r.ActiveThisWeek:
		st.Diagnosis = "joined but stored flag is inactive"
	case !st.HasJoinedCurrentWeek && r.ActiveThisWeek:
		st.Diagnosis = "active flag is stale from a previous week, player must join again"
	default:
		st.Diagnosis = "not joined for the current week"
	}
	return st
}
