package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind represents the type of balance change a ledger entry records
type EntryKind string

const (
	EntryKindBetStake       EntryKind = "bet_stake"
	EntryKindWinPayout      EntryKind = "win_payout"
	EntryKindDeposit        EntryKind = "deposit"
	EntryKindWithdrawal     EntryKind = "withdrawal"
	EntryKindRefund         EntryKind = "refund"
	EntryKindRewardPurchase EntryKind = "reward_purchase"
	EntryKindBonus          EntryKind = "bonus"
)

// Debit reports whether entries of this kind carry a negative amount.
func (k EntryKind) Debit() bool {
	switch k {
	case EntryKindBetStake, EntryKindWithdrawal, EntryKindRewardPurchase:
		return true
	}
	return false
}

// LedgerEntry is an immutable record of a single balance change.
// Entries are append-only: they are never updated or deleted, and each
// one is written in the same transaction as the balance mutation it
// represents, so BalanceAfter = BalanceBefore + Amount always holds.
type LedgerEntry struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	RoundID       *int64          `db:"round_id"`
	Kind          EntryKind       `db:"kind"`
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	Metadata      map[string]any  `db:"metadata"`
	CreatedAt     time.Time       `db:"created_at"`
}
