package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStats tracks per-user betting statistics, updated atomically with
// each settlement. Every resolved bet counts as exactly one game.
type UserStats struct {
	UserID         int64           `db:"user_id"`
	TotalGames     int64           `db:"total_games"`
	GamesWon       int64           `db:"games_won"`
	GamesLost      int64           `db:"games_lost"`
	TotalWagered   decimal.Decimal `db:"total_wagered"`
	TotalWon       decimal.Decimal `db:"total_won"`
	BestMultiplier decimal.Decimal `db:"best_multiplier"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// ScoreboardEntry represents a user's entry in the scoreboard
type ScoreboardEntry struct {
	Rank           int
	UserID         int64
	Username       string
	Balance        decimal.Decimal
	TotalWon       decimal.Decimal
	BestMultiplier decimal.Decimal
	WinRate        float64 // Percentage as 0-100
}

// PlayerStatus is the per-user view pushed on the player_status topic.
// Lost is set once the round has crashed with the bet still open, so a
// client can tell a settled loss from a bet still in flight.
type PlayerStatus struct {
	UserID      int64
	InRound     bool
	BetAmount   decimal.Decimal
	CashedOut   bool
	CashoutCoef decimal.Decimal
	WinAmount   decimal.Decimal
	Lost        bool
}
