package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type Type string

const (
	TypePlayerJoined  Type = "PlayerJoined"
	TypeTaskCompleted Type = "TaskCompleted"
	TypeStreakUpdated Type = "StreakUpdated"
	TypeWeekClosed    Type = "WeekClosed"
	TypeWeekSettled   Type = "WeekSettled"
)

// Event is one entry of the append-only game log. Seq is assigned by the
// ledger when the event is committed.
type Event struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Seq          int64           `json:"seq" db:"seq"`
	Type         Type            `json:"type" db:"type"`
	Player       *common.Address `json:"player,omitempty" db:"player"`
	Week         uint64          `json:"week" db:"week"`
	TaskID       *int            `json:"task_id,omitempty" db:"task_id"`
	PointsEarned uint64          `json:"points_earned,omitempty" db:"points_earned"`
	NewStreak    uint64          `json:"new_streak,omitempty" db:"new_streak"`
	Pool         *big.Int        `json:"pool,omitempty" db:"pool"`
	Players      int             `json:"players,omitempty" db:"players"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

func newEvent(t Type, week uint64, at time.Time) Event {
	return Event{ID: uuid.New(), Type: t, Week: week, CreatedAt: at}
}

func PlayerJoined(p common.Address, week uint64, at time.Time) Event {
	e := newEvent(TypePlayerJoined, week, at)
	e.Player = &p
	return e
}

func TaskCompleted(p common.Address, week uint64, taskID int, points uint64, at time.Time) Event {
	e := newEvent(TypeTaskCompleted, week, at)
	e.Player = &p
	e.TaskID = &taskID
	e.PointsEarned = points
	return e
}

func StreakUpdated(p common.Address, week uint64, streak uint64, at time.Time) Event {
	e := newEvent(TypeStreakUpdated, week, at)
	e.Player = &p
	e.NewStreak = streak
	return e
}

func WeekClosed(week uint64, pool *big.Int, players int, at time.Time) Event {
	e := newEvent(TypeWeekClosed, week, at)
	e.Pool = new(big.Int).Set(pool)
	e.Players = players
	return e
}

func WeekSettled(week uint64, pool *big.Int, winners int, at time.Time) Event {
	e := newEvent(TypeWeekSettled, week, at)
	e.Pool = new(big.Int).Set(pool)
	e.Players = winners
	return e
}
