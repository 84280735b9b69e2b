package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"crashd/database"
	"crashd/models"
)

// StatsRepository implements the StatsRepository interface
type StatsRepository struct {
	q queryable
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *database.DB) *StatsRepository {
	return &StatsRepository{q: db.Pool}
}

// newStatsRepositoryWithTx creates a new stats repository with a transaction
func newStatsRepositoryWithTx(tx queryable) *StatsRepository {
	return &StatsRepository{q: tx}
}

const statsColumns = `user_id, total_games, games_won, games_lost, total_wagered, total_won, best_multiplier, updated_at`

func scanStats(row pgx.Row) (*models.UserStats, error) {
	var stats models.UserStats
	err := row.Scan(
		&stats.UserID,
		&stats.TotalGames,
		&stats.GamesWon,
		&stats.GamesLost,
		&stats.TotalWagered,
		&stats.TotalWon,
		&stats.BestMultiplier,
		&stats.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetByUser retrieves stats for a user, zero-valued if absent
func (r *StatsRepository) GetByUser(ctx context.Context, userID int64) (*models.UserStats, error) {
	query := `SELECT ` + statsColumns + ` FROM user_stats WHERE user_id = $1`

	stats, err := scanStats(r.q.QueryRow(ctx, query, userID))
	if err == pgx.ErrNoRows {
		return &models.UserStats{
			UserID:         userID,
			TotalWagered:   decimal.Zero,
			TotalWon:       decimal.Zero,
			BestMultiplier: decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for user %d: %w", userID, err)
	}
	return stats, nil
}

// RecordWin upserts stats after a cashout
func (r *StatsRepository) RecordWin(ctx context.Context, userID int64, wagered, won, multiplier decimal.Decimal) error {
	query := `
		INSERT INTO user_stats (user_id, total_games, games_won, total_wagered, total_won, best_multiplier)
		VALUES ($1, 1, 1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			total_games = user_stats.total_games + 1,
			games_won = user_stats.games_won + 1,
			total_wagered = user_stats.total_wagered + EXCLUDED.total_wagered,
			total_won = user_stats.total_won + EXCLUDED.total_won,
			best_multiplier = GREATEST(user_stats.best_multiplier, EXCLUDED.best_multiplier),
			updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, userID, wagered, won, multiplier); err != nil {
		return fmt.Errorf("failed to record win for user %d: %w", userID, err)
	}
	return nil
}

// RecordLoss upserts stats after a lost bet
func (r *StatsRepository) RecordLoss(ctx context.Context, userID int64, wagered decimal.Decimal) error {
	query := `
		INSERT INTO user_stats (user_id, total_games, games_lost, total_wagered)
		VALUES ($1, 1, 1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			total_games = user_stats.total_games + 1,
			games_lost = user_stats.games_lost + 1,
			total_wagered = user_stats.total_wagered + EXCLUDED.total_wagered,
			updated_at = NOW()
	`

	if _, err := r.q.Exec(ctx, query, userID, wagered); err != nil {
		return fmt.Errorf("failed to record loss for user %d: %w", userID, err)
	}
	return nil
}

// GetTop returns the users with the most winnings first
func (r *StatsRepository) GetTop(ctx context.Context, limit int) ([]*models.UserStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM user_stats
		ORDER BY total_won DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top stats: %w", err)
	}
	defer rows.Close()

	var all []*models.UserStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		all = append(all, stats)
	}
	return all, rows.Err()
}
