package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"crashd/models"
)

func testReward() *models.Reward {
	return &models.Reward{
		ID:               "golden-hat",
		Name:             "Golden Hat",
		Price:            dec("100.00"),
		EligibleFraction: dec("0.5"),
		IsActive:         true,
	}
}

func TestRewardService_Purchase(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockRewardRepo := new(MockRewardRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, mockLedgerRepo, nil, mockRewardRepo, nil)

	service := NewRewardService(mockFactory, testBalanceCap)

	user := &models.User{
		ID:              7,
		Balance:         dec("250.00"),
		EligibleBalance: dec("80.00"),
	}

	mockFactory.On("Create").Return(mockUoW)
	setupBasicTransactionMocks(mockUoW, ctx)
	mockRewardRepo.On("GetByID", ctx, "golden-hat").Return(testReward(), nil)
	mockUserRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(user, nil)
	mockUserRepo.On("UpdateBalance", ctx, int64(7), dec("150.00")).Return(nil)
	// eligible spent is min(80.00, 100.00) = 80.00, leaving zero.
	// Matched by value: the computed zero and a parsed "0.00" differ in
	// representation.
	mockUserRepo.On("UpdateEligibleBalance", ctx, int64(7), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.Zero)
	})).Return(nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Kind == models.EntryKindRewardPurchase && e.Amount.Equal(dec("-100.00"))
	})).Return(nil)
	mockRewardRepo.On("CreatePurchase", ctx, mock.MatchedBy(func(p *models.RewardPurchase) bool {
		return p.UserID == 7 &&
			p.RewardID == "golden-hat" &&
			p.Price.Equal(dec("100.00")) &&
			p.EligibleSpent.Equal(dec("80.00"))
	})).Return(nil)

	purchase, err := service.Purchase(ctx, 7, "golden-hat")

	assert.NoError(t, err)
	assert.True(t, purchase.EligibleSpent.Equal(dec("80.00")))

	mockUserRepo.AssertExpectations(t)
	mockRewardRepo.AssertExpectations(t)
}

func TestRewardService_Purchase_EligibleTooLow(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockRewardRepo := new(MockRewardRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil, nil, mockRewardRepo, nil)

	service := NewRewardService(mockFactory, testBalanceCap)

	// Plenty of balance but eligible 40.00 < required 50.00
	user := &models.User{
		ID:              7,
		Balance:         dec("500.00"),
		EligibleBalance: dec("40.00"),
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockRewardRepo.On("GetByID", ctx, "golden-hat").Return(testReward(), nil)
	mockUserRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(user, nil)

	_, err := service.Purchase(ctx, 7, "golden-hat")

	assert.ErrorIs(t, err, ErrEligibleTooLow)
	mockUserRepo.AssertNotCalled(t, "UpdateBalance", mock.Anything, mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestRewardService_Purchase_InsufficientBalance(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockRewardRepo := new(MockRewardRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil, nil, mockRewardRepo, nil)

	service := NewRewardService(mockFactory, testBalanceCap)

	// Enough eligible, but not enough balance to cover the price
	user := &models.User{
		ID:              7,
		Balance:         dec("60.00"),
		EligibleBalance: dec("60.00"),
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockRewardRepo.On("GetByID", ctx, "golden-hat").Return(testReward(), nil)
	mockUserRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(user, nil)

	_, err := service.Purchase(ctx, 7, "golden-hat")

	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRewardService_Purchase_InactiveReward(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockRewardRepo := new(MockRewardRepository)

	mockUoW.SetRepositories(nil, nil, nil, nil, nil, mockRewardRepo, nil)

	service := NewRewardService(mockFactory, testBalanceCap)

	inactive := testReward()
	inactive.IsActive = false

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockRewardRepo.On("GetByID", ctx, "golden-hat").Return(inactive, nil)

	_, err := service.Purchase(ctx, 7, "golden-hat")

	assert.ErrorIs(t, err, ErrRewardNotFound)
}

func TestRewardService_Refund(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockRewardRepo := new(MockRewardRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, mockLedgerRepo, nil, mockRewardRepo, nil)

	service := NewRewardService(mockFactory, testBalanceCap)

	purchase := &models.RewardPurchase{
		ID:            5,
		UserID:        7,
		RewardID:      "golden-hat",
		Price:         dec("100.00"),
		EligibleSpent: dec("80.00"),
		Status:        models.PurchaseStatusCompleted,
	}
	user := &models.User{
		ID:              7,
		Balance:         dec("150.00"),
		EligibleBalance: dec("10.00"),
	}

	mockFactory.On("Create").Return(mockUoW)
	setupBasicTransactionMocks(mockUoW, ctx)
	mockRewardRepo.On("GetPurchaseByID", ctx, int64(5)).Return(purchase, nil)
	mockUserRepo.On("GetByIDForUpdate", ctx, int64(7)).Return(user, nil)
	mockRewardRepo.On("MarkRefunded", ctx, int64(5), mock.AnythingOfType("time.Time")).Return(nil)
	mockUserRepo.On("UpdateBalance", ctx, int64(7), dec("250.00")).Return(nil)
	// the refund restores exactly the eligible the purchase consumed
	mockUserRepo.On("UpdateEligibleBalance", ctx, int64(7), dec("90.00")).Return(nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.Kind == models.EntryKindRefund && e.Amount.Equal(dec("100.00"))
	})).Return(nil)

	refunded, err := service.Refund(ctx, 5)

	assert.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)

	mockUserRepo.AssertExpectations(t)
	mockRewardRepo.AssertExpectations(t)
}

func TestRewardService_Refund_AlreadyRefunded(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockRewardRepo := new(MockRewardRepository)

	mockUoW.SetRepositories(nil, nil, nil, nil, nil, mockRewardRepo, nil)

	service := NewRewardService(mockFactory, testBalanceCap)

	purchase := &models.RewardPurchase{
		ID:     5,
		Status: models.PurchaseStatusRefunded,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockRewardRepo.On("GetPurchaseByID", ctx, int64(5)).Return(purchase, nil)

	_, err := service.Refund(ctx, 5)

	assert.Error(t, err)
	mockRewardRepo.AssertNotCalled(t, "MarkRefunded", mock.Anything, mock.Anything, mock.Anything)
}
