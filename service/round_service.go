package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"crashd/models"
)

type roundService struct {
	uowFactory UnitOfWorkFactory
}

// NewRoundService creates the service that owns round record transitions
func NewRoundService(uowFactory UnitOfWorkFactory) *roundService {
	return &roundService{uowFactory: uowFactory}
}

// OpenRound creates the next waiting round and marks every earlier
// crashed round completed: a crashed round only becomes history once
// its successor exists.
func (s *roundService) OpenRound(ctx context.Context) (*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	if err := uow.RoundRepository().CompleteEarlier(ctx, round.ID); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit round: %w", err)
	}
	return round, nil
}

// BeginPlaying stores the secret crash point and marks the round playing
func (s *roundService) BeginPlaying(ctx context.Context, roundID int64, crashPoint decimal.Decimal) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.RoundRepository().SetPlaying(ctx, roundID, crashPoint, time.Now()); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit round start: %w", err)
	}
	return nil
}

// UnfinishedRounds returns rounds a previous process left in waiting or
// playing state, oldest first.
func (s *roundService) UnfinishedRounds(ctx context.Context) ([]*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rounds, err := uow.RoundRepository().GetUnfinished(ctx)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return rounds, nil
}

// RecentCrashPoints returns the latest crash coefficients, newest first.
// Used to rebuild the in-memory crash history after a restart.
func (s *roundService) RecentCrashPoints(ctx context.Context, limit int) ([]decimal.Decimal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	points, err := uow.RoundRepository().GetRecentCrashPoints(ctx, limit)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return points, nil
}

// RecentRounds returns the latest finalized rounds, newest first
func (s *roundService) RecentRounds(ctx context.Context, limit int) ([]*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rounds, err := uow.RoundRepository().GetRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return rounds, nil
}
