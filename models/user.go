package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a player account with a spendable balance and a
// derived eligible balance accumulated from net winnings.
type User struct {
	ID              int64           `db:"id"`
	Username        string          `db:"username"`
	Balance         decimal.Decimal `db:"balance"`
	EligibleBalance decimal.Decimal `db:"eligible_balance"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}
