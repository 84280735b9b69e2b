package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDuplicateBet is returned when a user already holds a bet for the
// round; the unique constraint is the final arbiter.
var ErrDuplicateBet = errors.New("user already has a bet in this round")

// BetStatus represents the settlement state of a bet
type BetStatus string

const (
	BetStatusOpen      BetStatus = "open"
	BetStatusCashedOut BetStatus = "cashed_out"
	BetStatusLost      BetStatus = "lost"
)

// Bet represents a user's stake in a specific round. At most one bet
// exists per user per round, and a bet settles exactly once.
type Bet struct {
	ID                int64            `db:"id"`
	UserID            int64            `db:"user_id"`
	RoundID           int64            `db:"round_id"`
	Amount            decimal.Decimal  `db:"amount"`
	Status            BetStatus        `db:"status"`
	CashoutCoef       *decimal.Decimal `db:"cashout_coef"`
	Payout            *decimal.Decimal `db:"payout"`
	StakeLedgerID     *int64           `db:"stake_ledger_id"`
	CreatedAt         time.Time        `db:"created_at"`
	SettledAt         *time.Time       `db:"settled_at"`
}

// RejectReason is the machine-readable reason for a rejected join or cashout.
// Rejections are returned as data, never as errors.
type RejectReason string

const (
	ReasonRoundNotWaiting     RejectReason = "round_not_waiting"
	ReasonJoinDeadlinePassed  RejectReason = "join_deadline_passed"
	ReasonDuplicateBet        RejectReason = "duplicate_bet"
	ReasonBetOutOfRange       RejectReason = "bet_out_of_range"
	ReasonInsufficientBalance RejectReason = "insufficient_balance"
	ReasonRoundNotPlaying     RejectReason = "round_not_playing"
	ReasonNoOpenBet           RejectReason = "no_open_bet"
	ReasonRoundAlreadyCrashed RejectReason = "round_already_crashed"
	ReasonEligibleTooLow      RejectReason = "eligible_balance_too_low"
	ReasonBalanceCapExceeded  RejectReason = "balance_cap_exceeded"
)

// JoinResult is the outcome of a join request (returned to the caller)
type JoinResult struct {
	Accepted   bool
	Reason     RejectReason
	BetID      int64
	NewBalance decimal.Decimal
}

// CashoutResult is the outcome of a cashout request (returned to the caller)
type CashoutResult struct {
	Accepted    bool
	Reason      RejectReason
	Coefficient decimal.Decimal
	Payout      decimal.Decimal
	NewBalance  decimal.Decimal
}
