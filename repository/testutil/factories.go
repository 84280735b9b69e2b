package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"crashd/models"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(id int64, username string) *models.User {
	now := time.Now()
	return &models.User{
		ID:              id,
		Username:        username,
		Balance:         decimal.RequireFromString("1000.00"),
		EligibleBalance: decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CreateTestUserWithBalance creates a test user with a specific balance
func CreateTestUserWithBalance(id int64, username string, balance string) *models.User {
	user := CreateTestUser(id, username)
	user.Balance = decimal.RequireFromString(balance)
	return user
}

// CreateTestBet creates an open test bet
func CreateTestBet(userID, roundID int64, amount string) *models.Bet {
	return &models.Bet{
		UserID:    userID,
		RoundID:   roundID,
		Amount:    decimal.RequireFromString(amount),
		Status:    models.BetStatusOpen,
		CreatedAt: time.Now(),
	}
}

// CreateTestLedgerEntry creates a balanced test ledger entry
func CreateTestLedgerEntry(userID int64, kind models.EntryKind, before, amount string) *models.LedgerEntry {
	b := decimal.RequireFromString(before)
	a := decimal.RequireFromString(amount)
	return &models.LedgerEntry{
		UserID:        userID,
		Kind:          kind,
		Amount:        a,
		BalanceBefore: b,
		BalanceAfter:  b.Add(a),
		Metadata:      map[string]any{"test": true},
		CreatedAt:     time.Now(),
	}
}

// CreateTestReward creates an active catalog reward
func CreateTestReward(id, name string, price, eligibleFraction string) *models.Reward {
	return &models.Reward{
		ID:               id,
		Name:             name,
		Price:            decimal.RequireFromString(price),
		EligibleFraction: decimal.RequireFromString(eligibleFraction),
		IsActive:         true,
		CreatedAt:        time.Now(),
	}
}
