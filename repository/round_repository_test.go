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

func TestRoundRepository_Lifecycle(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	rounds := NewRoundRepository(testDB.DB)

	round, err := rounds.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusWaiting, round.Status)
	assert.Nil(t, round.CrashPoint)

	crashPoint := decimal.RequireFromString("2.41")
	require.NoError(t, rounds.SetPlaying(ctx, round.ID, crashPoint, time.Now()))

	// starting a round twice is refused
	assert.Error(t, rounds.SetPlaying(ctx, round.ID, crashPoint, time.Now()))

	stored, err := rounds.GetByID(ctx, round.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.RoundStatusPlaying, stored.Status)
	require.NotNil(t, stored.CrashPoint)
	assert.True(t, stored.CrashPoint.Equal(crashPoint))
}

func TestRoundRepository_FinalizeAggregates(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	users := NewUserRepository(testDB.DB)
	rounds := NewRoundRepository(testDB.DB)
	bets := NewBetRepository(testDB.DB)

	round, err := rounds.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, rounds.SetPlaying(ctx, round.ID, decimal.RequireFromString("3.00"), time.Now()))

	alice, err := users.Create(ctx, "alice", decimal.RequireFromString("100.00"))
	require.NoError(t, err)
	bob, err := users.Create(ctx, "bob", decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	aliceBet := testutil.CreateTestBet(alice.ID, round.ID, "10.00")
	require.NoError(t, bets.Create(ctx, aliceBet))
	bobBet := testutil.CreateTestBet(bob.ID, round.ID, "30.00")
	require.NoError(t, bets.Create(ctx, bobBet))

	// alice cashes out at 1.50, bob rides it down
	require.NoError(t, bets.MarkCashedOut(ctx, aliceBet.ID,
		decimal.RequireFromString("1.50"), decimal.RequireFromString("15.00"), time.Now()))
	require.NoError(t, bets.MarkLost(ctx, bobBet.ID, time.Now()))

	final, err := rounds.FinalizeAggregates(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusCrashed, final.Status)
	assert.True(t, final.TotalBet.Equal(decimal.RequireFromString("40.00")))
	assert.True(t, final.TotalPayout.Equal(decimal.RequireFromString("15.00")))
	assert.True(t, final.HouseProfit.Equal(decimal.RequireFromString("25.00")))
	assert.Equal(t, 2, final.PlayerCount)
}

func TestRoundRepository_CompleteEarlierAndHistory(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	rounds := NewRoundRepository(testDB.DB)

	var crashed []*models.Round
	for _, cp := range []string{"1.10", "4.20", "2.00"} {
		round, err := rounds.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, rounds.SetPlaying(ctx, round.ID, decimal.RequireFromString(cp), time.Now()))
		final, err := rounds.FinalizeAggregates(ctx, round.ID)
		require.NoError(t, err)
		crashed = append(crashed, final)
	}

	next, err := rounds.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, rounds.CompleteEarlier(ctx, next.ID))

	for _, round := range crashed {
		stored, err := rounds.GetByID(ctx, round.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsCompleted, "round %d not completed", round.ID)
	}

	points, err := rounds.GetRecentCrashPoints(ctx, 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, points[0].Equal(decimal.RequireFromString("2.00")))
	assert.True(t, points[1].Equal(decimal.RequireFromString("4.20")))
}
