package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundStatus represents the lifecycle phase of a round
type RoundStatus string

const (
	RoundStatusWaiting RoundStatus = "waiting"
	RoundStatusPlaying RoundStatus = "playing"
	RoundStatusCrashed RoundStatus = "crashed"
)

// Round represents one waiting->playing->crashed cycle in the database.
// CrashPoint is set when the round starts playing and must never be
// exposed to clients before the crash is committed.
type Round struct {
	ID          int64            `db:"id"`
	Status      RoundStatus      `db:"status"`
	CrashPoint  *decimal.Decimal `db:"crash_point"`
	TotalBet    decimal.Decimal  `db:"total_bet"`
	TotalPayout decimal.Decimal  `db:"total_payout"`
	HouseProfit decimal.Decimal  `db:"house_profit"`
	PlayerCount int              `db:"player_count"`
	IsCompleted bool             `db:"is_completed"`
	StartedAt   *time.Time       `db:"started_at"`
	CreatedAt   time.Time        `db:"created_at"`
}

// RoundSnapshot is the public view of the current round pushed to observers.
// It never carries the crash point of a round still in flight.
type RoundSnapshot struct {
	RoundID       int64
	Status        RoundStatus
	Coefficient   decimal.Decimal
	Countdown     int
	Crashed       bool
	LastCrashCoef decimal.Decimal
}
