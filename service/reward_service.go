package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"crashd/models"
)

type rewardService struct {
	uowFactory UnitOfWorkFactory
	balanceCap decimal.Decimal
}

// NewRewardService creates the service for catalog purchases and refunds
func NewRewardService(uowFactory UnitOfWorkFactory, balanceCap decimal.Decimal) RewardService {
	return &rewardService{
		uowFactory: uowFactory,
		balanceCap: balanceCap,
	}
}

// ListRewards returns the active catalog
func (s *rewardService) ListRewards(ctx context.Context) ([]*models.Reward, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rewards, err := uow.RewardRepository().GetActive(ctx)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return rewards, nil
}

// Purchase buys a reward. The reward's eligible fraction gates the
// purchase: that share of the price must be covered by eligible balance
// before raw balance is even considered, so free or bonus funds cannot
// fully pay for gated rewards.
func (s *rewardService) Purchase(ctx context.Context, userID int64, rewardID string) (*models.RewardPurchase, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	reward, err := uow.RewardRepository().GetByID(ctx, rewardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	if reward == nil || !reward.IsActive {
		return nil, ErrRewardNotFound
	}

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	required := reward.Price.Mul(reward.EligibleFraction).Round(2)
	if user.EligibleBalance.LessThan(required) {
		return nil, ErrEligibleTooLow
	}
	if user.Balance.LessThan(reward.Price) {
		return nil, ErrInsufficientBalance
	}

	// The purchase consumes eligible balance up to the full price
	eligibleSpent := decimal.Min(user.EligibleBalance, reward.Price)
	newEligible := user.EligibleBalance.Sub(eligibleSpent)
	newBalance := user.Balance.Sub(reward.Price)

	if err := uow.UserRepository().UpdateBalance(ctx, userID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}
	if err := uow.UserRepository().UpdateEligibleBalance(ctx, userID, newEligible); err != nil {
		return nil, fmt.Errorf("failed to update eligible balance: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:        userID,
		Kind:          models.EntryKindRewardPurchase,
		Amount:        reward.Price.Neg(),
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Metadata: map[string]any{
			"reward_id":      rewardID,
			"eligible_spent": eligibleSpent.String(),
		},
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, err
	}

	purchase := &models.RewardPurchase{
		UserID:        userID,
		RewardID:      rewardID,
		Price:         reward.Price,
		EligibleSpent: eligibleSpent,
	}
	if err := uow.RewardRepository().CreatePurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":   userID,
		"rewardID": rewardID,
		"price":    reward.Price,
	}).Info("Reward purchased")

	return purchase, nil
}

// Refund reverses a purchase: the price returns to the balance and the
// eligible portion the purchase consumed is restored, nothing more.
func (s *rewardService) Refund(ctx context.Context, purchaseID int64) (*models.RewardPurchase, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	purchase, err := uow.RewardRepository().GetPurchaseByID(ctx, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}
	if purchase.Status != models.PurchaseStatusCompleted {
		return nil, fmt.Errorf("purchase %d is not refundable", purchaseID)
	}

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, purchase.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	newBalance := user.Balance.Add(purchase.Price)
	if newBalance.GreaterThan(s.balanceCap) {
		return nil, ErrBalanceCapExceeded
	}

	now := time.Now()
	if err := uow.RewardRepository().MarkRefunded(ctx, purchaseID, now); err != nil {
		return nil, err
	}

	if err := uow.UserRepository().UpdateBalance(ctx, purchase.UserID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to credit refund: %w", err)
	}

	newEligible := user.EligibleBalance.Add(purchase.EligibleSpent)
	if err := uow.UserRepository().UpdateEligibleBalance(ctx, purchase.UserID, newEligible); err != nil {
		return nil, fmt.Errorf("failed to restore eligible balance: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:        purchase.UserID,
		Kind:          models.EntryKindRefund,
		Amount:        purchase.Price,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Metadata: map[string]any{
			"purchase_id":       purchaseID,
			"eligible_restored": purchase.EligibleSpent.String(),
		},
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":     purchase.UserID,
		"purchaseID": purchaseID,
	}).Info("Purchase refunded")

	purchase.Status = models.PurchaseStatusRefunded
	purchase.RefundedAt = &now
	return purchase, nil
}
