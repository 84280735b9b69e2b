package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"crashd/database"
	"crashd/models"
)

// RoundRepository implements the RoundRepository interface
type RoundRepository struct {
	q queryable
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *database.DB) *RoundRepository {
	return &RoundRepository{q: db.Pool}
}

// newRoundRepositoryWithTx creates a new round repository with a transaction
func newRoundRepositoryWithTx(tx queryable) *RoundRepository {
	return &RoundRepository{q: tx}
}

const roundColumns = `id, status, crash_point, total_bet, total_payout, house_profit, player_count, is_completed, started_at, created_at`

func scanRound(row pgx.Row) (*models.Round, error) {
	var round models.Round
	err := row.Scan(
		&round.ID,
		&round.Status,
		&round.CrashPoint,
		&round.TotalBet,
		&round.TotalPayout,
		&round.HouseProfit,
		&round.PlayerCount,
		&round.IsCompleted,
		&round.StartedAt,
		&round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// Create inserts a new round in waiting state
func (r *RoundRepository) Create(ctx context.Context) (*models.Round, error) {
	query := `
		INSERT INTO rounds (status)
		VALUES ($1)
		RETURNING ` + roundColumns

	round, err := scanRound(r.q.QueryRow(ctx, query, models.RoundStatusWaiting))
	if err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}
	return round, nil
}

// GetByID retrieves a round by its ID
func (r *RoundRepository) GetByID(ctx context.Context, id int64) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`

	round, err := scanRound(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d: %w", id, err)
	}
	return round, nil
}

// SetPlaying stores the crash point and marks the round playing. The
// crash point is written before the first tick so settlement can never
// observe a round without one.
func (r *RoundRepository) SetPlaying(ctx context.Context, id int64, crashPoint decimal.Decimal, startedAt time.Time) error {
	query := `
		UPDATE rounds
		SET status = $1, crash_point = $2, started_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.q.Exec(ctx, query, models.RoundStatusPlaying, crashPoint, startedAt, id, models.RoundStatusWaiting)
	if err != nil {
		return fmt.Errorf("failed to start round %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("round %d is not in waiting state", id)
	}
	return nil
}

// FinalizeAggregates computes the round totals from its bets and marks
// the round crashed
func (r *RoundRepository) FinalizeAggregates(ctx context.Context, id int64) (*models.Round, error) {
	query := `
		UPDATE rounds SET
			status = $1,
			total_bet = agg.total_bet,
			total_payout = agg.total_payout,
			house_profit = agg.total_bet - agg.total_payout,
			player_count = agg.player_count
		FROM (
			SELECT
				COALESCE(SUM(amount), 0) AS total_bet,
				COALESCE(SUM(payout), 0) AS total_payout,
				COUNT(*) AS player_count
			FROM bets
			WHERE round_id = $2
		) agg
		WHERE id = $2
		RETURNING ` + roundColumns

	round, err := scanRound(r.q.QueryRow(ctx, query, models.RoundStatusCrashed, id))
	if err != nil {
		return nil, fmt.Errorf("failed to finalize round %d: %w", id, err)
	}
	return round, nil
}

// CompleteEarlier marks every crashed round before the given one
// completed. Called when a new round opens, mirroring the fact that a
// crashed round only becomes history once its successor exists.
func (r *RoundRepository) CompleteEarlier(ctx context.Context, beforeID int64) error {
	query := `
		UPDATE rounds
		SET is_completed = TRUE
		WHERE id < $1 AND status = $2 AND NOT is_completed
	`

	if _, err := r.q.Exec(ctx, query, beforeID, models.RoundStatusCrashed); err != nil {
		return fmt.Errorf("failed to complete rounds before %d: %w", beforeID, err)
	}
	return nil
}

// GetUnfinished returns rounds still in waiting or playing state,
// oldest first. After a clean run this is empty; anything here was left
// behind by a process that died mid-round.
func (r *RoundRepository) GetUnfinished(ctx context.Context) ([]*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE status IN ($1, $2)
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, models.RoundStatusWaiting, models.RoundStatusPlaying)
	if err != nil {
		return nil, fmt.Errorf("failed to get unfinished rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

// GetRecentCrashPoints returns the latest crash points, newest first
func (r *RoundRepository) GetRecentCrashPoints(ctx context.Context, limit int) ([]decimal.Decimal, error) {
	query := `
		SELECT crash_point
		FROM rounds
		WHERE status = $1 AND crash_point IS NOT NULL
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, models.RoundStatusCrashed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent crash points: %w", err)
	}
	defer rows.Close()

	var points []decimal.Decimal
	for rows.Next() {
		var p decimal.Decimal
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan crash point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// GetRecent returns the latest finalized rounds, newest first
func (r *RoundRepository) GetRecent(ctx context.Context, limit int) ([]*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE status = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, models.RoundStatusCrashed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}
