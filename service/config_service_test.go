package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"crashd/events"
	"crashd/models"
)

func TestConfigService_GetConfig_FallsBackToDefault(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockSettingsRepo := new(MockSettingsRepository)

	mockUoW.SetRepositories(nil, nil, nil, nil, nil, nil, mockSettingsRepo)

	service := NewConfigService(mockFactory)

	mockFactory.On("Create").Return(mockUoW)
	setupBasicTransactionMocks(mockUoW, ctx)
	mockSettingsRepo.On("GetGameConfig", ctx).Return(nil, nil)

	cfg, err := service.GetConfig(ctx)

	assert.NoError(t, err)
	assert.True(t, cfg.GrowthRate.Equal(dec("1.01")))
	assert.NoError(t, cfg.Validate())
}

func TestConfigService_GetConfig_ReturnsStored(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockSettingsRepo := new(MockSettingsRepository)

	mockUoW.SetRepositories(nil, nil, nil, nil, nil, nil, mockSettingsRepo)

	service := NewConfigService(mockFactory)

	stored := models.DefaultGameConfig()
	stored.GrowthRate = dec("1.02")

	mockFactory.On("Create").Return(mockUoW)
	setupBasicTransactionMocks(mockUoW, ctx)
	mockSettingsRepo.On("GetGameConfig", ctx).Return(stored, nil)

	cfg, err := service.GetConfig(ctx)

	assert.NoError(t, err)
	assert.True(t, cfg.GrowthRate.Equal(dec("1.02")))
}

func TestConfigService_UpdateConfig(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockSettingsRepo := new(MockSettingsRepository)
	bus := &CapturingEventPublisher{}

	mockUoW.SetRepositories(nil, nil, nil, nil, nil, nil, mockSettingsRepo)
	mockUoW.SetEventBus(bus)

	service := NewConfigService(mockFactory)

	cfg := models.DefaultGameConfig()
	cfg.GrowthRate = dec("1.015")

	mockFactory.On("Create").Return(mockUoW)
	setupBasicTransactionMocks(mockUoW, ctx)
	mockSettingsRepo.On("SaveGameConfig", ctx, cfg).Return(nil)

	err := service.UpdateConfig(ctx, cfg)

	assert.NoError(t, err)
	assert.Len(t, bus.ByType(events.EventTypeConfigUpdated), 1)
	mockSettingsRepo.AssertExpectations(t)
}

func TestConfigService_UpdateConfig_RejectsInvalid(t *testing.T) {
	mockFactory := new(MockUnitOfWorkFactory)
	service := NewConfigService(mockFactory)

	cfg := models.DefaultGameConfig()
	cfg.GrowthRate = dec("0.99")

	err := service.UpdateConfig(context.Background(), cfg)

	assert.Error(t, err)
	// Validation fails before any transaction is opened
	mockFactory.AssertNotCalled(t, "Create")
}

func TestStatsService_GetScoreboard(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockStatsRepo := new(MockStatsRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil, mockStatsRepo, nil, nil)

	service := NewStatsService(mockFactory)

	users := []*models.User{
		{ID: 1, Username: "alice", Balance: dec("900.00")},
		{ID: 2, Username: "bob", Balance: dec("500.00")},
	}

	mockFactory.On("Create").Return(mockUoW)
	setupBasicTransactionMocks(mockUoW, ctx)
	mockUserRepo.On("GetTopByBalance", ctx, 10).Return(users, nil)
	mockStatsRepo.On("GetByUser", ctx, int64(1)).Return(&models.UserStats{
		UserID:         1,
		TotalGames:     10,
		GamesWon:       4,
		GamesLost:      6,
		TotalWon:       dec("320.00"),
		BestMultiplier: dec("5.12"),
	}, nil)
	mockStatsRepo.On("GetByUser", ctx, int64(2)).Return(&models.UserStats{UserID: 2}, nil)

	board, err := service.GetScoreboard(ctx, 10)

	assert.NoError(t, err)
	assert.Len(t, board, 2)

	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "alice", board[0].Username)
	assert.InDelta(t, 40.0, board[0].WinRate, 0.001)

	// A user who never played has a zero win rate, not NaN
	assert.Equal(t, 2, board[1].Rank)
	assert.Equal(t, 0.0, board[1].WinRate)
}
