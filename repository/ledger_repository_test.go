package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crashd/models"
	"crashd/repository/testutil"
)

func TestLedgerRepository_Record(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	ledger := NewLedgerRepository(testDB.DB)

	user, err := users.Create(ctx, "alice", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	entry := testutil.CreateTestLedgerEntry(user.ID, models.EntryKindBetStake, "100.00", "-25.00")
	require.NoError(t, ledger.Record(ctx, entry))
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	entries, err := ledger.GetByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryKindBetStake, entries[0].Kind)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("-25.00")))
	assert.True(t, entries[0].BalanceAfter.Equal(decimal.RequireFromString("75.00")))
	assert.Equal(t, true, entries[0].Metadata["test"])
}

func TestLedgerRepository_RejectsUnbalancedEntry(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	ledger := NewLedgerRepository(testDB.DB)

	user, err := users.Create(ctx, "bob", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	entry := testutil.CreateTestLedgerEntry(user.ID, models.EntryKindDeposit, "100.00", "50.00")
	entry.BalanceAfter = decimal.RequireFromString("999.00")

	err = ledger.Record(ctx, entry)
	assert.Error(t, err, "entry whose balances do not reconcile must be refused")
}

func TestLedgerRepository_EntriesAreImmutable(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	ledger := NewLedgerRepository(testDB.DB)

	user, err := users.Create(ctx, "carol", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	entry := testutil.CreateTestLedgerEntry(user.ID, models.EntryKindBonus, "100.00", "10.00")
	require.NoError(t, ledger.Record(ctx, entry))

	_, err = testDB.DB.Exec(ctx, `UPDATE ledger_entries SET amount = 0 WHERE id = $1`, entry.ID)
	assert.Error(t, err, "ledger rows must not be updatable")

	_, err = testDB.DB.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, entry.ID)
	assert.Error(t, err, "ledger rows must not be deletable")
}

func TestLedgerRepository_GetByRound(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	rounds := NewRoundRepository(testDB.DB)
	ledger := NewLedgerRepository(testDB.DB)

	user, err := users.Create(ctx, "dave", decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	round, err := rounds.Create(ctx)
	require.NoError(t, err)

	stake := testutil.CreateTestLedgerEntry(user.ID, models.EntryKindBetStake, "100.00", "-20.00")
	stake.RoundID = &round.ID
	require.NoError(t, ledger.Record(ctx, stake))

	win := testutil.CreateTestLedgerEntry(user.ID, models.EntryKindWinPayout, "80.00", "36.00")
	win.RoundID = &round.ID
	require.NoError(t, ledger.Record(ctx, win))

	// a deposit outside the round stays invisible to the round query
	deposit := testutil.CreateTestLedgerEntry(user.ID, models.EntryKindDeposit, "116.00", "5.00")
	require.NoError(t, ledger.Record(ctx, deposit))

	entries, err := ledger.GetByRound(ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.EntryKindBetStake, entries[0].Kind)
	assert.Equal(t, models.EntryKindWinPayout, entries[1].Kind)
}
