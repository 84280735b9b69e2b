package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"crashd/database"
	"crashd/models"
)

// BetRepository implements the BetRepository interface
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable) *BetRepository {
	return &BetRepository{q: tx}
}

const betColumns = `id, user_id, round_id, amount, status, cashout_coef, payout, stake_ledger_id, created_at, settled_at`

func scanBet(row pgx.Row) (*models.Bet, error) {
	var bet models.Bet
	err := row.Scan(
		&bet.ID,
		&bet.UserID,
		&bet.RoundID,
		&bet.Amount,
		&bet.Status,
		&bet.CashoutCoef,
		&bet.Payout,
		&bet.StakeLedgerID,
		&bet.CreatedAt,
		&bet.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

// Create creates a new bet record
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets (user_id, round_id, amount, status, stake_ledger_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.UserID,
		bet.RoundID,
		bet.Amount,
		models.BetStatusOpen,
		bet.StakeLedgerID,
	).Scan(&bet.ID, &bet.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 unique_violation on (user_id, round_id)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicateBet
		}
		return fmt.Errorf("failed to create bet for user %d in round %d: %w", bet.UserID, bet.RoundID, err)
	}

	bet.Status = models.BetStatusOpen
	return nil
}

// GetByUserAndRound retrieves a user's bet for a round
func (r *BetRepository) GetByUserAndRound(ctx context.Context, userID, roundID int64) (*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE user_id = $1 AND round_id = $2`

	bet, err := scanBet(r.q.QueryRow(ctx, query, userID, roundID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet for user %d in round %d: %w", userID, roundID, err)
	}
	return bet, nil
}

// GetOpenByRound returns all still-open bets for a round
func (r *BetRepository) GetOpenByRound(ctx context.Context, roundID int64) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE round_id = $1 AND status = $2
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, roundID, models.BetStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to get open bets for round %d: %w", roundID, err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

// MarkCashedOut settles a bet as a win. The status guard makes the
// transition one-way: a cashed-out bet can never be settled again.
func (r *BetRepository) MarkCashedOut(ctx context.Context, betID int64, coef, payout decimal.Decimal, settledAt time.Time) error {
	query := `
		UPDATE bets
		SET status = $1, cashout_coef = $2, payout = $3, settled_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := r.q.Exec(ctx, query, models.BetStatusCashedOut, coef, payout, settledAt, betID, models.BetStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to cash out bet %d: %w", betID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bet %d is not open", betID)
	}
	return nil
}

// MarkLost settles a bet as a loss
func (r *BetRepository) MarkLost(ctx context.Context, betID int64, settledAt time.Time) error {
	query := `
		UPDATE bets
		SET status = $1, settled_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.Exec(ctx, query, models.BetStatusLost, settledAt, betID, models.BetStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to mark bet %d lost: %w", betID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bet %d is not open", betID)
	}
	return nil
}

// GetByUser returns a user's bets, newest first
func (r *BetRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets for user %d: %w", userID, err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}
