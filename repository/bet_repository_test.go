package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crashd/models"
	"crashd/repository/testutil"
)

func TestBetRepository_OneBetPerUserPerRound(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	rounds := NewRoundRepository(testDB.DB)
	bets := NewBetRepository(testDB.DB)

	user, err := users.Create(ctx, "alice", decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	round, err := rounds.Create(ctx)
	require.NoError(t, err)

	first := testutil.CreateTestBet(user.ID, round.ID, "10.00")
	require.NoError(t, bets.Create(ctx, first))
	assert.NotZero(t, first.ID)

	second := testutil.CreateTestBet(user.ID, round.ID, "20.00")
	err = bets.Create(ctx, second)
	assert.ErrorIs(t, err, models.ErrDuplicateBet)
}

func TestBetRepository_SettlementIsOneWay(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	rounds := NewRoundRepository(testDB.DB)
	bets := NewBetRepository(testDB.DB)

	user, err := users.Create(ctx, "bob", decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	round, err := rounds.Create(ctx)
	require.NoError(t, err)

	bet := testutil.CreateTestBet(user.ID, round.ID, "10.00")
	require.NoError(t, bets.Create(ctx, bet))

	now := time.Now()
	coef := decimal.RequireFromString("1.75")
	payout := decimal.RequireFromString("17.50")
	require.NoError(t, bets.MarkCashedOut(ctx, bet.ID, coef, payout, now))

	// a cashed-out bet can be settled neither again nor as a loss
	assert.Error(t, bets.MarkCashedOut(ctx, bet.ID, coef, payout, now))
	assert.Error(t, bets.MarkLost(ctx, bet.ID, now))

	stored, err := bets.GetByUserAndRound(ctx, user.ID, round.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.BetStatusCashedOut, stored.Status)
	require.NotNil(t, stored.CashoutCoef)
	assert.True(t, stored.CashoutCoef.Equal(coef))
	require.NotNil(t, stored.Payout)
	assert.True(t, stored.Payout.Equal(payout))
}

func TestBetRepository_GetOpenByRound(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	rounds := NewRoundRepository(testDB.DB)
	bets := NewBetRepository(testDB.DB)

	round, err := rounds.Create(ctx)
	require.NoError(t, err)

	alice, err := users.Create(ctx, "alice", decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	aliceBet := testutil.CreateTestBet(alice.ID, round.ID, "10.00")
	require.NoError(t, bets.Create(ctx, aliceBet))
	bobBet := testutil.CreateTestBet(bob.ID, round.ID, "15.00")
	require.NoError(t, bets.Create(ctx, bobBet))

	require.NoError(t, bets.MarkCashedOut(ctx, aliceBet.ID,
		decimal.RequireFromString("1.20"), decimal.RequireFromString("12.00"), time.Now()))

	open, err := bets.GetOpenByRound(ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, bob.ID, open[0].UserID)
}
