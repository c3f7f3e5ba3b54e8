package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/player"
	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/week"
)

var (
	ErrReadOnly    = errors.New("ledger: write inside a read-only view")
	ErrPaymentUsed = errors.New("ledger: payment already used")
	ErrNoWorld     = errors.New("ledger: world state not initialised")
)

// Tx is the view of the ledger inside one transaction. Values returned are
// copies: callers write changes back with the Put methods.
type Tx interface {
	World(ctx context.Context) (*week.State, error)
	PutWorld(ctx context.Context, st *week.State) error

	// Player reports found=false for an address that never interacted.
	Player(ctx context.Context, addr common.Address) (player.Record, bool, error)
	PutPlayer(ctx context.Context, rec player.Record) (player.Record, error)
	// Players returns every record in first-interaction order.
	Players(ctx context.Context) ([]player.Record, error)

	Tasks(ctx context.Context, week uint64) ([]task.Task, error)
	// AppendTask assigns the next index within t.Week.
	AppendTask(ctx context.Context, t task.Task) (task.Task, error)
	SetTaskActive(ctx context.Context, week uint64, id int, active bool) error

	Snapshot(ctx context.Context, week uint64) (*week.Snapshot, bool, error)
	PutSnapshot(ctx context.Context, s *week.Snapshot) error
	// SnapshotsWithStatus returns matching snapshots ordered by week.
	SnapshotsWithStatus(ctx context.Context, status week.SettlementStatus) ([]*week.Snapshot, error)

	// AppendEvent assigns e.Seq.
	AppendEvent(ctx context.Context, e *events.Event) error
	Events(ctx context.Context, since int64, limit int) ([]events.Event, error)

	// UsePayment marks a payment proof as consumed, failing with
	// ErrPaymentUsed when it was seen before.
	UsePayment(ctx context.Context, txHash string, payer common.Address, week uint64) error
}

// Store serialises every Atomic call against every other one. View runs
// fn against a consistent read-only snapshot.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close()
}

// GetPlayer returns the stored record or the zero record for addr.
func GetPlayer(ctx context.Context, tx Tx, addr common.Address) (player.Record, error) {
	rec, found, err := tx.Player(ctx, addr)
	if err != nil {
		return player.Record{}, fmt.Errorf("failed to load player: %w", err)
	}
	if !found {
		return player.New(addr), nil
	}
	return rec, nil
}

// Upsert loads addr, applies mutate and writes the result. A mutator error
// leaves the record untouched.
func Upsert(ctx context.Context, tx Tx, addr common.Address, mutate func(rec *player.Record) error) (player.Record, error) {
	rec, err := GetPlayer(ctx, tx, addr)
	if err != nil {
		return player.Record{}, err
	}
	if err := mutate(&rec); err != nil {
		return player.Record{}, err
	}
	rec.Address = addr
	saved, err := tx.PutPlayer(ctx, rec)
	if err != nil {
		return player.Record{}, fmt.Errorf("failed to save player: %w", err)
	}
	return saved, nil
}
