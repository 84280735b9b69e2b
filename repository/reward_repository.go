package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crashd/database"
	"crashd/models"
)

// RewardRepository implements the RewardRepository interface
type RewardRepository struct {
	q queryable
}

// NewRewardRepository creates a new reward repository
func NewRewardRepository(db *database.DB) *RewardRepository {
	return &RewardRepository{q: db.Pool}
}

// newRewardRepositoryWithTx creates a new reward repository with a transaction
func newRewardRepositoryWithTx(tx queryable) *RewardRepository {
	return &RewardRepository{q: tx}
}

const rewardColumns = `id, name, description, price, eligible_fraction, is_active, sort_order, created_at`

func scanReward(row pgx.Row) (*models.Reward, error) {
	var reward models.Reward
	var description *string
	err := row.Scan(
		&reward.ID,
		&reward.Name,
		&description,
		&reward.Price,
		&reward.EligibleFraction,
		&reward.IsActive,
		&reward.SortOrder,
		&reward.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		reward.Description = *description
	}
	return &reward, nil
}

// Create inserts a catalog reward
func (r *RewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	query := `
		INSERT INTO rewards (id, name, description, price, eligible_fraction, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		reward.ID,
		reward.Name,
		reward.Description,
		reward.Price,
		reward.EligibleFraction,
		reward.IsActive,
		reward.SortOrder,
	).Scan(&reward.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create reward %q: %w", reward.ID, err)
	}
	return nil
}

// GetActive returns the purchasable catalog ordered for display
func (r *RewardRepository) GetActive(ctx context.Context) ([]*models.Reward, error) {
	query := `
		SELECT ` + rewardColumns + `
		FROM rewards
		WHERE is_active
		ORDER BY sort_order, id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active rewards: %w", err)
	}
	defer rows.Close()

	var rewards []*models.Reward
	for rows.Next() {
		reward, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rewards = append(rewards, reward)
	}
	return rewards, rows.Err()
}

// GetByID retrieves a reward by its ID
func (r *RewardRepository) GetByID(ctx context.Context, id string) (*models.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1`

	reward, err := scanReward(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward %q: %w", id, err)
	}
	return reward, nil
}

const purchaseColumns = `id, user_id, reward_id, price, eligible_spent, status, purchased_at, refunded_at`

func scanPurchase(row pgx.Row) (*models.RewardPurchase, error) {
	var p models.RewardPurchase
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.RewardID,
		&p.Price,
		&p.EligibleSpent,
		&p.Status,
		&p.PurchasedAt,
		&p.RefundedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePurchase records a completed purchase
func (r *RewardRepository) CreatePurchase(ctx context.Context, purchase *models.RewardPurchase) error {
	query := `
		INSERT INTO reward_purchases (user_id, reward_id, price, eligible_spent, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, purchased_at
	`

	err := r.q.QueryRow(ctx, query,
		purchase.UserID,
		purchase.RewardID,
		purchase.Price,
		purchase.EligibleSpent,
		models.PurchaseStatusCompleted,
	).Scan(&purchase.ID, &purchase.PurchasedAt)

	if err != nil {
		return fmt.Errorf("failed to create purchase for user %d: %w", purchase.UserID, err)
	}

	purchase.Status = models.PurchaseStatusCompleted
	return nil
}

// GetPurchaseByID retrieves a purchase by its ID
func (r *RewardRepository) GetPurchaseByID(ctx context.Context, id int64) (*models.RewardPurchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM reward_purchases WHERE id = $1`

	purchase, err := scanPurchase(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase %d: %w", id, err)
	}
	return purchase, nil
}

// MarkRefunded flips a purchase to refunded. The status guard keeps a
// purchase from being refunded twice.
func (r *RewardRepository) MarkRefunded(ctx context.Context, purchaseID int64, refundedAt time.Time) error {
	query := `
		UPDATE reward_purchases
		SET status = $1, refunded_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.Exec(ctx, query, models.PurchaseStatusRefunded, refundedAt, purchaseID, models.PurchaseStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to refund purchase %d: %w", purchaseID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("purchase %d is not refundable", purchaseID)
	}
	return nil
}

// GetPurchasesByUser returns a user's purchases, newest first
func (r *RewardRepository) GetPurchasesByUser(ctx context.Context, userID int64, limit int) ([]*models.RewardPurchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM reward_purchases
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchases for user %d: %w", userID, err)
	}
	defer rows.Close()

	var purchases []*models.RewardPurchase
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, purchase)
	}
	return purchases, rows.Err()
}
