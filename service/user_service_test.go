package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"crashd/events"
	"crashd/models"
)

func TestUserService_GetOrCreateUser_Existing(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil, nil, nil, nil)

	service := NewUserService(mockFactory, dec("1000.00"))

	existing := &models.User{ID: 7, Username: "alice", Balance: dec("432.10")}

	mockFactory.On("Create").Return(mockUoW)
	setupBasicTransactionMocks(mockUoW, ctx)
	mockUserRepo.On("GetByUsername", ctx, "alice").Return(existing, nil)

	user, err := service.GetOrCreateUser(ctx, "alice")

	assert.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	mockUserRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserService_GetOrCreateUser_New(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	bus := &CapturingEventPublisher{}

	mockUoW.SetRepositories(mockUserRepo, nil, nil, mockLedgerRepo, nil, nil, nil)
	mockUoW.SetEventBus(bus)

	service := NewUserService(mockFactory, dec("1000.00"))

	created := &models.User{ID: 9, Username: "bob", Balance: dec("1000.00")}

	mockFactory.On("Create").Return(mockUoW)
	setupBasicTransactionMocks(mockUoW, ctx)
	mockUserRepo.On("GetByUsername", ctx, "bob").Return(nil, nil)
	mockUserRepo.On("Create", ctx, "bob", dec("1000.00")).Return(created, nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == 9 &&
			e.Kind == models.EntryKindBonus &&
			e.Amount.Equal(dec("1000.00")) &&
			e.BalanceBefore.IsZero() &&
			e.Metadata["reason"] == "initial_balance"
	})).Return(nil)

	user, err := service.GetOrCreateUser(ctx, "bob")

	assert.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)

	createdEvents := bus.ByType(events.EventTypeUserCreated)
	if assert.Len(t, createdEvents, 1) {
		ev := createdEvents[0].(events.UserCreatedEvent)
		assert.Equal(t, "bob", ev.Username)
		assert.True(t, ev.InitialBalance.Equal(dec("1000.00")))
	}

	mockUserRepo.AssertExpectations(t)
	mockLedgerRepo.AssertExpectations(t)
}

func TestUserService_GetUser_NotFound(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil, nil, nil, nil)

	service := NewUserService(mockFactory, dec("1000.00"))

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByID", ctx, int64(999)).Return(nil, nil)

	_, err := service.GetUser(ctx, 999)

	assert.ErrorIs(t, err, ErrUserNotFound)
}
