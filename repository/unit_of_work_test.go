package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crashd/events"
	"crashd/models"
	"crashd/repository/testutil"
)

func TestUnitOfWork_RollbackVoidsDebitAndLedgerEntry(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	ledger := NewLedgerRepository(testDB.DB)

	user, err := users.Create(ctx, "alice", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	newBalance := decimal.RequireFromString("75.00")
	require.NoError(t, uow.UserRepository().UpdateBalance(ctx, user.ID, newBalance))

	entry := testutil.CreateTestLedgerEntry(user.ID, models.EntryKindBetStake, "100.00", "-25.00")
	require.NoError(t, uow.LedgerRepository().Record(ctx, entry))

	require.NoError(t, uow.Rollback())

	// Both writes vanished together
	reloaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(decimal.RequireFromString("100.00")))

	entries, err := ledger.GetByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnitOfWork_EventsFlushOnlyAfterCommit(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()

	var mu sync.Mutex
	var seen []events.Event
	bus.Subscribe(events.EventTypeBetPlaced, func(ctx context.Context, e events.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	// rolled-back transaction: the event never reaches the bus
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	uow.EventBus().Publish(events.BetPlacedEvent{UserID: 1, RoundID: 1})
	require.NoError(t, uow.Rollback())

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, seen)
	mu.Unlock()

	// committed transaction: the event is delivered
	uow = factory.Create()
	require.NoError(t, uow.Begin(ctx))
	uow.EventBus().Publish(events.BetPlacedEvent{UserID: 2, RoundID: 1})
	require.NoError(t, uow.Commit())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 10*time.Millisecond)
}

// Concurrent writers all read the same starting balance under read
// committed unless the row is locked first. The locked read serializes
// them, so no credit is lost and every ledger entry starts where the
// previous one ended.
func TestUnitOfWork_ConcurrentCreditsKeepLedgerChained(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	ledger := NewLedgerRepository(testDB.DB)

	user, err := users.Create(ctx, "dave", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	const writers = 8
	credit := decimal.RequireFromString("10.00")

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- func() error {
				uow := factory.Create()
				if err := uow.Begin(ctx); err != nil {
					return err
				}
				defer uow.Rollback()

				locked, err := uow.UserRepository().GetByIDForUpdate(ctx, user.ID)
				if err != nil {
					return err
				}
				newBalance := locked.Balance.Add(credit)
				if err := uow.UserRepository().UpdateBalance(ctx, user.ID, newBalance); err != nil {
					return err
				}
				entry := &models.LedgerEntry{
					UserID:        user.ID,
					Kind:          models.EntryKindDeposit,
					Amount:        credit,
					BalanceBefore: locked.Balance,
					BalanceAfter:  newBalance,
				}
				if err := uow.LedgerRepository().Record(ctx, entry); err != nil {
					return err
				}
				return uow.Commit()
			}()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	reloaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(decimal.RequireFromString("180.00")),
		"got %s", reloaded.Balance)

	entries, err := ledger.GetByUser(ctx, user.ID, writers)
	require.NoError(t, err)
	require.Len(t, entries, writers)

	// entries come newest first; walk them oldest first
	prev := decimal.RequireFromString("100.00")
	for i := len(entries) - 1; i >= 0; i-- {
		assert.True(t, entries[i].BalanceBefore.Equal(prev),
			"entry %d starts at %s, previous ended at %s", i, entries[i].BalanceBefore, prev)
		assert.True(t, entries[i].BalanceAfter.Equal(entries[i].BalanceBefore.Add(credit)))
		prev = entries[i].BalanceAfter
	}
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)

	user, err := users.Create(ctx, "bob", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	err = testDB.DB.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET balance = 0 WHERE id = $1`, user.ID); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	reloaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(decimal.RequireFromString("100.00")))
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)

	user, err := users.Create(ctx, "carol", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	err = testDB.DB.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE users SET balance = 250.00 WHERE id = $1`, user.ID)
		return err
	})
	require.NoError(t, err)

	reloaded, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(decimal.RequireFromString("250.00")))
}
