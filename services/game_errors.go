package services

import "errors"

var (
	ErrInsufficientFee       = errors.New("insufficient entry fee")
	ErrAlreadyJoined         = errors.New("already joined this week")
	ErrNotActive             = errors.New("player has not joined the current week")
	ErrTaskNotFound          = errors.New("task not found in current week")
	ErrNotFound              = errors.New("not found")
	ErrTaskInactive          = errors.New("task is not active")
	ErrDailyLimitReached     = errors.New("daily task limit reached")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrSettlementAlreadyDone = errors.New("week settlement already claimed")
	ErrInvalidTask           = errors.New("invalid task")
	ErrPaymentRejected       = errors.New("payment rejected")
)
