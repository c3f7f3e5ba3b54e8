package task

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeOnchain  Type = "onchain"
	TypeOffchain Type = "offchain"
	TypeHybrid   Type = "hybrid"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeOnchain, TypeOffchain, TypeHybrid:
		return true
	default:
		return false
	}
}

// RequiresAttester reports whether completion must be confirmed by the
// attester instead of the player's own call.
func (t Type) RequiresAttester() bool {
	return t == TypeOffchain || t == TypeHybrid
}

func ParseType(input string) (Type, error) {
	t := Type(strings.TrimSpace(strings.ToLower(input)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid task type: %q", input)
	}
	return t, nil
}

// Task is one entry of a week's ordered task list. ID is its index.
type Task struct {
	ID               int             `json:"id" db:"task_index"`
	Week             uint64          `json:"week" db:"week"`
	Description      string          `json:"description" db:"description"`
	Type             Type            `json:"task_type" db:"task_type"`
	BasePointsReward uint64          `json:"base_points_reward" db:"base_points_reward"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	Metadata         json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// MaxBasePointsReward bounds a single task's reward so point totals stay
// within the signed BIGINT columns of the ledger.
const MaxBasePointsReward uint64 = 1_000_000_000

// NewTaskRequest is what a curator submits.
type NewTaskRequest struct {
	Description      string          `json:"description"`
	TaskType         string          `json:"task_type"`
	BasePointsReward uint64          `json:"base_points_reward"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

type SetActiveRequest struct {
	IsActive bool `json:"is_active"`
}
