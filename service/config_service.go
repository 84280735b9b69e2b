package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"crashd/events"
	"crashd/models"
)

type configService struct {
	uowFactory UnitOfWorkFactory
}

// NewConfigService creates the service managing the persisted game configuration
func NewConfigService(uowFactory UnitOfWorkFactory) ConfigService {
	return &configService{uowFactory: uowFactory}
}

// GetConfig returns the stored configuration, falling back to the default
// when nothing has been saved yet
func (s *configService) GetConfig(ctx context.Context) (*models.GameConfig, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cfg, err := uow.SettingsRepository().GetGameConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load game config: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	if cfg == nil {
		return models.DefaultGameConfig(), nil
	}
	return cfg, nil
}

// UpdateConfig validates and persists a new configuration. The running
// round keeps its parameters; the engine picks the change up when the
// next round opens.
func (s *configService) UpdateConfig(ctx context.Context, cfg *models.GameConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid game config: %w", err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.SettingsRepository().SaveGameConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save game config: %w", err)
	}

	uow.EventBus().Publish(events.ConfigUpdatedEvent{Config: cfg})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit config update: %w", err)
	}

	log.WithFields(log.Fields{
		"growthRate": cfg.GrowthRate,
		"maxCoef":    cfg.MaxCoefficient,
	}).Info("Game config updated")

	return nil
}
