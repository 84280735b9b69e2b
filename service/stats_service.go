package service

import (
	"context"
	"fmt"

	"crashd/models"
)

type statsService struct {
	uowFactory UnitOfWorkFactory
}

// NewStatsService creates the read-only statistics service
func NewStatsService(uowFactory UnitOfWorkFactory) StatsService {
	return &statsService{uowFactory: uowFactory}
}

// GetScoreboard ranks the richest users and joins in their betting stats
func (s *statsService) GetScoreboard(ctx context.Context, limit int) ([]*models.ScoreboardEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	users, err := uow.UserRepository().GetTopByBalance(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top users: %w", err)
	}

	entries := make([]*models.ScoreboardEntry, 0, len(users))
	for i, user := range users {
		stats, err := uow.StatsRepository().GetByUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get stats for user %d: %w", user.ID, err)
		}

		winRate := float64(0)
		if stats.TotalGames > 0 {
			winRate = float64(stats.GamesWon) / float64(stats.TotalGames) * 100
		}

		entries = append(entries, &models.ScoreboardEntry{
			Rank:           i + 1,
			UserID:         user.ID,
			Username:       user.Username,
			Balance:        user.Balance,
			TotalWon:       stats.TotalWon,
			BestMultiplier: stats.BestMultiplier,
			WinRate:        winRate,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return entries, nil
}

// GetUserStats returns detailed statistics for a user
func (s *statsService) GetUserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stats, err := uow.StatsRepository().GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return stats, nil
}
