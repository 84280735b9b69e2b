package service

import (
	"context"
	"errors"
	"fmt"

	"crashd/events"
	"crashd/models"
)

// Sentinel errors returned by balance-affecting operations. Callers
// branch on these instead of parsing error text.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceCapExceeded  = errors.New("balance cap exceeded")
	ErrEligibleTooLow      = errors.New("eligible balance too low")
	ErrRewardNotFound      = errors.New("reward not found")
	ErrPurchaseNotFound    = errors.New("purchase not found")
)

// RecordLedgerEntry appends a ledger entry and emits the balance change
// event. This is the single entry point for all balance changes in the
// system: the entry and the balance mutation it describes commit in the
// same transaction or not at all.
func RecordLedgerEntry(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry) error {
	if !entry.BalanceAfter.Equal(entry.BalanceBefore.Add(entry.Amount)) {
		return fmt.Errorf("unbalanced ledger entry for user %d: %s + %s != %s",
			entry.UserID, entry.BalanceBefore, entry.Amount, entry.BalanceAfter)
	}

	if err := uow.LedgerRepository().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	// Emitted only after the surrounding transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:        entry.UserID,
		BalanceBefore: entry.BalanceBefore,
		BalanceAfter:  entry.BalanceAfter,
		ChangeAmount:  entry.Amount,
		EntryKind:     entry.Kind,
	})

	return nil
}
