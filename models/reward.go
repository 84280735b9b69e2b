package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reward is a purchasable item from the catalog. EligibleFraction is
// the share of the price that must be covered by the buyer's eligible
// balance, so free or bonus funds cannot fully pay for certain rewards.
type Reward struct {
	ID               string
	Name             string
	Description      string
	Price            decimal.Decimal
	EligibleFraction decimal.Decimal
	IsActive         bool
	SortOrder        int
	CreatedAt        time.Time
}

// PurchaseStatus represents the state of a reward purchase
type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// RewardPurchase records one completed (and possibly later refunded)
// catalog purchase. EligibleSpent is how much eligible balance the
// purchase consumed; a refund restores exactly that portion.
type RewardPurchase struct {
	ID            int64
	UserID        int64
	RewardID      string
	Price         decimal.Decimal
	EligibleSpent decimal.Decimal
	Status        PurchaseStatus
	PurchasedAt   time.Time
	RefundedAt    *time.Time
}
