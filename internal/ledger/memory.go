package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/player"
	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/week"
)

type memState struct {
	world     *week.State
	players   map[common.Address]player.Record
	order     []common.Address
	tasks     map[uint64][]task.Task
	snapshots map[uint64]*week.Snapshot
	events    []events.Event
	payments  map[string]struct{}
	nextSeq   int64
}

// MemoryStore keeps the ledger in process. Writes stage into an overlay
// that is merged only when fn returns nil.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemoryStore(initial *week.State) *MemoryStore {
	return &MemoryStore{state: &memState{
		world:     initial.Clone(),
		players:   make(map[common.Address]player.Record),
		tasks:     make(map[uint64][]task.Task),
		snapshots: make(map[uint64]*week.Snapshot),
		payments:  make(map[string]struct{}),
	}}
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := newMemTx(s.state, false)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(newMemTx(s.state, true))
}

func (s *MemoryStore) Close() {}

type memTx struct {
	base     *memState
	readOnly bool

	world     *week.State
	players   map[common.Address]player.Record
	order     []common.Address
	tasks     map[uint64][]task.Task
	snapshots map[uint64]*week.Snapshot
	events    []events.Event
	payments  map[string]struct{}
	nextSeq   int64
}

func newMemTx(base *memState, readOnly bool) *memTx {
	return &memTx{
		base:      base,
		readOnly:  readOnly,
		players:   make(map[common.Address]player.Record),
		tasks:     make(map[uint64][]task.Task),
		snapshots: make(map[uint64]*week.Snapshot),
		payments:  make(map[string]struct{}),
		nextSeq:   base.nextSeq,
	}
}

func (t *memTx) commit() {
	b := t.base
	if t.world != nil {
		b.world = t.world
	}
	b.order = append(b.order, t.order...)
	for addr, rec := range t.players {
		b.players[addr] = rec
	}
	for w, list := range t.tasks {
		b.tasks[w] = list
	}
	for w, snap := range t.snapshots {
		b.snapshots[w] = snap
	}
	for h := range t.payments {
		b.payments[h] = struct{}{}
	}
	b.events = append(b.events, t.events...)
	b.nextSeq = t.nextSeq
}

func (t *memTx) writable() error {
	if t.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (t *memTx) World(_ context.Context) (*week.State, error) {
	if t.world != nil {
		return t.world.Clone(), nil
	}
	if t.base.world == nil {
		return nil, ErrNoWorld
	}
	return t.base.world.Clone(), nil
}

func (t *memTx) PutWorld(_ context.Context, st *week.State) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.world = st.Clone()
	return nil
}

func (t *memTx) Player(_ context.Context, addr common.Address) (player.Record, bool, error) {
	if rec, ok := t.players[addr]; ok {
		return rec, true, nil
	}
	rec, ok := t.base.players[addr]
	return rec, ok, nil
}

func (t *memTx) PutPlayer(ctx context.Context, rec player.Record) (player.Record, error) {
	if err := t.writable(); err != nil {
		return player.Record{}, err
	}
	prev, found, _ := t.Player(ctx, rec.Address)
	if found {
		rec.Seq = prev.Seq
	} else {
		t.nextSeq++
		rec.Seq = t.nextSeq
		t.order = append(t.order, rec.Address)
	}
	t.players[rec.Address] = rec
	return rec, nil
}

func (t *memTx) Players(ctx context.Context) ([]player.Record, error) {
	out := make([]player.Record, 0, len(t.base.order)+len(t.order))
	for _, list := range [][]common.Address{t.base.order, t.order} {
		for _, addr := range list {
			rec, _, _ := t.Player(ctx, addr)
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *memTx) taskList(w uint64) []task.Task {
	if list, ok := t.tasks[w]; ok {
		return list
	}
	return t.base.tasks[w]
}

func (t *memTx) Tasks(_ context.Context, w uint64) ([]task.Task, error) {
	list := t.taskList(w)
	out := make([]task.Task, len(list))
	copy(out, list)
	return out, nil
}

func (t *memTx) AppendTask(_ context.Context, tk task.Task) (task.Task, error) {
	if err := t.writable(); err != nil {
		return task.Task{}, err
	}
	cur := t.taskList(tk.Week)
	next := make([]task.Task, len(cur), len(cur)+1)
	copy(next, cur)
	tk.ID = len(cur)
	t.tasks[tk.Week] = append(next, tk)
	return tk, nil
}

func (t *memTx) SetTaskActive(_ context.Context, w uint64, id int, active bool) error {
	if err := t.writable(); err != nil {
		return err
	}
	cur := t.taskList(w)
	if id < 0 || id >= len(cur) {
		return fmt.Errorf("task %d of week %d does not exist", id, w)
	}
	next := make([]task.Task, len(cur))
	copy(next, cur)
	next[id].IsActive = active
	t.tasks[w] = next
	return nil
}

func (t *memTx) Snapshot(_ context.Context, w uint64) (*week.Snapshot, bool, error) {
	snap, ok := t.snapshots[w]
	if !ok {
		snap, ok = t.base.snapshots[w]
	}
	if !ok {
		return nil, false, nil
	}
	return snap.Clone(), true, nil
}

func (t *memTx) PutSnapshot(_ context.Context, s *week.Snapshot) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.snapshots[s.Week] = s.Clone()
	return nil
}

func (t *memTx) SnapshotsWithStatus(ctx context.Context, status week.SettlementStatus) ([]*week.Snapshot, error) {
	seen := make(map[uint64]bool)
	for w := range t.base.snapshots {
		seen[w] = true
	}
	for w := range t.snapshots {
		seen[w] = true
	}
	weeks := make([]uint64, 0, len(seen))
	for w := range seen {
		weeks = append(weeks, w)
	}
	slices.Sort(weeks)

	var out []*week.Snapshot
	for _, w := range weeks {
		snap, _, _ := t.Snapshot(ctx, w)
		if snap.Status == status {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (t *memTx) AppendEvent(_ context.Context, e *events.Event) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.nextSeq++
	e.Seq = t.nextSeq
	t.events = append(t.events, *e)
	return nil
}

func (t *memTx) Events(_ context.Context, since int64, limit int) ([]events.Event, error) {
	var out []events.Event
	for _, list := range [][]events.Event{t.base.events, t.events} {
		for _, e := range list {
			if e.Seq <= since {
				continue
			}
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) UsePayment(_ context.Context, txHash string, _ common.Address, _ uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := strings.ToLower(txHash)
	if _, ok := t.base.payments[key]; ok {
		return ErrPaymentUsed
	}
	if _, ok := t.payments[key]; ok {
		return ErrPaymentUsed
	}
	t.payments[key] = struct{}{}
	return nil
}
