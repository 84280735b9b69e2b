package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"crashd/models"
)

type accountService struct {
	uowFactory UnitOfWorkFactory
	balanceCap decimal.Decimal
}

// NewAccountService creates the service for balance operations that
// happen outside rounds: deposits, withdrawals, and bonus grants.
func NewAccountService(uowFactory UnitOfWorkFactory, balanceCap decimal.Decimal) AccountService {
	return &accountService{
		uowFactory: uowFactory,
		balanceCap: balanceCap,
	}
}

// Deposit credits external funds to a user's balance
func (s *accountService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*models.User, error) {
	return s.credit(ctx, userID, amount, models.EntryKindDeposit, nil)
}

// GrantBonus credits promotional funds. Bonuses never touch the
// eligible balance: only net winnings do.
func (s *accountService) GrantBonus(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (*models.User, error) {
	return s.credit(ctx, userID, amount, models.EntryKindBonus, map[string]any{
		"reason": reason,
	})
}

func (s *accountService) credit(ctx context.Context, userID int64, amount decimal.Decimal, kind models.EntryKind, metadata map[string]any) (*models.User, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	newBalance := user.Balance.Add(amount)
	if newBalance.GreaterThan(s.balanceCap) {
		return nil, ErrBalanceCapExceeded
	}

	if err := uow.UserRepository().UpdateBalance(ctx, userID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Metadata:      metadata,
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.WithFields(log.Fields{
		"userID": userID,
		"kind":   kind,
		"amount": amount,
	}).Info("Balance credited")

	user.Balance = newBalance
	return user, nil
}

// Withdraw debits funds from a user's balance
func (s *accountService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*models.User, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if user.Balance.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	newBalance := user.Balance.Sub(amount)

	if err := uow.UserRepository().UpdateBalance(ctx, userID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:        userID,
		Kind:          models.EntryKindWithdrawal,
		Amount:        amount.Neg(),
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	log.WithFields(log.Fields{
		"userID": userID,
		"amount": amount,
	}).Info("Balance withdrawn")

	user.Balance = newBalance
	return user, nil
}
