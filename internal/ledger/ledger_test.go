package ledger

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baseQuestAPI/internal/events"
	"baseQuestAPI/internal/player"
	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/week"
)

var (
	alice = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func initialWorld() *week.State {
	return week.NewState(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), big.NewInt(10_000_000_000_000))
}

// runStoreContract exercises behaviour every Store implementation shares.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("zero record for unknown player", func(t *testing.T) {
		err := store.View(ctx, func(tx Tx) error {
			rec, err := GetPlayer(ctx, tx, alice)
			require.NoError(t, err)
			assert.Equal(t, player.New(alice), rec)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("mutator error aborts the write", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.Atomic(ctx, func(tx Tx) error {
			_, err := Upsert(ctx, tx, alice, func(rec *player.Record) error {
				rec.TotalBasePoints = 999
				return nil
			})
			require.NoError(t, err)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_ = store.View(ctx, func(tx Tx) error {
			_, found, err := tx.Player(ctx, alice)
			require.NoError(t, err)
			assert.False(t, found)
			return nil
		})
	})

	t.Run("upsert keeps insertion order", func(t *testing.T) {
		err := store.Atomic(ctx, func(tx Tx) error {
			for _, addr := range []common.Address{bob, alice} {
				if _, err := Upsert(ctx, tx, addr, func(rec *player.Record) error {
					rec.CurrentStreak++
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)

		err = store.Atomic(ctx, func(tx Tx) error {
			_, err := Upsert(ctx, tx, bob, func(rec *player.Record) error {
				rec.CurrentStreak++
				return nil
			})
			return err
		})
		require.NoError(t, err)

		_ = store.View(ctx, func(tx Tx) error {
			list, err := tx.Players(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, bob, list[0].Address)
			assert.Equal(t, uint64(2), list[0].CurrentStreak)
			assert.Equal(t, alice, list[1].Address)
			assert.Less(t, list[0].Seq, list[1].Seq)
			return nil
		})
	})

	t.Run("world round trip", func(t *testing.T) {
		err := store.Atomic(ctx, func(tx Tx) error {
			st, err := tx.World(ctx)
			require.NoError(t, err)
			st.CurrentWeek = 4
			st.WeeklyPrizePool.Add(st.WeeklyPrizePool, big.NewInt(30))
			return tx.PutWorld(ctx, st)
		})
		require.NoError(t, err)

		_ = store.View(ctx, func(tx Tx) error {
			st, err := tx.World(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(4), st.CurrentWeek)
			assert.Equal(t, "30", st.WeeklyPrizePool.String())
			return nil
		})
	})

	t.Run("tasks get sequential ids per week", func(t *testing.T) {
		err := store.Atomic(ctx, func(tx Tx) error {
			for _, d := range []string{"bridge", "swap"} {
				if _, err := tx.AppendTask(ctx, task.Task{Week: 9, Description: d, Type: task.TypeOnchain, BasePointsReward: 100, IsActive: true, CreatedAt: time.Now()}); err != nil {
					return err
				}
			}
			return tx.SetTaskActive(ctx, 9, 1, false)
		})
		require.NoError(t, err)

		_ = store.View(ctx, func(tx Tx) error {
			list, err := tx.Tasks(ctx, 9)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, 0, list[0].ID)
			assert.Equal(t, "swap", list[1].Description)
			assert.False(t, list[1].IsActive)
			return nil
		})
	})

	t.Run("payment hashes are single use", func(t *testing.T) {
		err := store.Atomic(ctx, func(tx Tx) error {
			return tx.UsePayment(ctx, "0xABC", alice, 1)
		})
		require.NoError(t, err)

		err = store.Atomic(ctx, func(tx Tx) error {
			return tx.UsePayment(ctx, "0xabc", bob, 1)
		})
		assert.ErrorIs(t, err, ErrPaymentUsed)
	})

	t.Run("events get increasing sequence numbers", func(t *testing.T) {
		var first int64
		err := store.Atomic(ctx, func(tx Tx) error {
			e1 := events.PlayerJoined(alice, 1, time.Now())
			e2 := events.TaskCompleted(alice, 1, 0, 100, time.Now())
			if err := tx.AppendEvent(ctx, &e1); err != nil {
				return err
			}
			first = e1.Seq
			if err := tx.AppendEvent(ctx, &e2); err != nil {
				return err
			}
			assert.Greater(t, e2.Seq, e1.Seq)
			return nil
		})
		require.NoError(t, err)

		_ = store.View(ctx, func(tx Tx) error {
			list, err := tx.Events(ctx, first, 10)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, events.TypeTaskCompleted, list[0].Type)
			require.NotNil(t, list[0].TaskID)
			assert.Equal(t, 0, *list[0].TaskID)
			return nil
		})
	})

	t.Run("snapshot round trip", func(t *testing.T) {
		snap := &week.Snapshot{Week: 2, Pool: big.NewInt(50), ClosedAt: time.Now().UTC(), Status: week.SettlementPending}
		require.NoError(t, store.Atomic(ctx, func(tx Tx) error { return tx.PutSnapshot(ctx, snap) }))

		_ = store.View(ctx, func(tx Tx) error {
			got, found, err := tx.Snapshot(ctx, 2)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, week.SettlementPending, got.Status)
			assert.Equal(t, "50", got.Pool.String())

			_, found, err = tx.Snapshot(ctx, 3)
			require.NoError(t, err)
			assert.False(t, found)

			pending, err := tx.SnapshotsWithStatus(ctx, week.SettlementPending)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, uint64(2), pending[0].Week)
			return nil
		})
	})

	t.Run("views reject writes", func(t *testing.T) {
		err := store.View(ctx, func(tx Tx) error {
			_, err := tx.PutPlayer(ctx, player.New(alice))
			return err
		})
		assert.ErrorIs(t, err, ErrReadOnly)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore(initialWorld()))
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store := NewMemoryStore(initialWorld())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Atomic(ctx, func(tx Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS world, players, tasks, week_snapshots, game_events, used_payments`)
	require.NoError(t, err)

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx, initialWorld()))
	runStoreContract(t, store)
}
