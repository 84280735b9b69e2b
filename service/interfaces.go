package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"crashd/events"
	"crashd/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by their ID
	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// GetByIDForUpdate retrieves a user and locks the row until the
	// surrounding transaction ends. Balance mutations must read through
	// this so concurrent writers cannot base an absolute update on a
	// stale balance.
	GetByIDForUpdate(ctx context.Context, userID int64) (*models.User, error)

	// GetByUsername retrieves a user by their username
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Create creates a new user with the initial balance
	Create(ctx context.Context, username string, initialBalance decimal.Decimal) (*models.User, error)

	// UpdateBalance sets a user's balance
	UpdateBalance(ctx context.Context, userID int64, newBalance decimal.Decimal) error

	// UpdateEligibleBalance sets a user's eligible (wagered) balance
	UpdateEligibleBalance(ctx context.Context, userID int64, newEligible decimal.Decimal) error

	// GetTopByBalance returns the richest users first
	GetTopByBalance(ctx context.Context, limit int) ([]*models.User, error)
}

// RoundRepository defines the interface for round data access
type RoundRepository interface {
	// Create inserts a new round in waiting state
	Create(ctx context.Context) (*models.Round, error)

	// GetByID retrieves a round by its ID
	GetByID(ctx context.Context, id int64) (*models.Round, error)

	// SetPlaying stores the crash point and marks the round playing
	SetPlaying(ctx context.Context, id int64, crashPoint decimal.Decimal, startedAt time.Time) error

	// FinalizeAggregates computes total bet, total payout, house profit,
	// and player count from the round's bets and marks it crashed
	FinalizeAggregates(ctx context.Context, id int64) (*models.Round, error)

	// CompleteEarlier marks every crashed round before the given one completed
	CompleteEarlier(ctx context.Context, beforeID int64) error

	// GetUnfinished returns rounds still in waiting or playing state,
	// oldest first
	GetUnfinished(ctx context.Context) ([]*models.Round, error)

	// GetRecentCrashPoints returns the latest crash points, newest first
	GetRecentCrashPoints(ctx context.Context, limit int) ([]decimal.Decimal, error)

	// GetRecent returns the latest finalized rounds, newest first
	GetRecent(ctx context.Context, limit int) ([]*models.Round, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create creates a new bet record
	Create(ctx context.Context, bet *models.Bet) error

	// GetByUserAndRound retrieves a user's bet for a round
	GetByUserAndRound(ctx context.Context, userID, roundID int64) (*models.Bet, error)

	// GetOpenByRound returns all still-open bets for a round
	GetOpenByRound(ctx context.Context, roundID int64) ([]*models.Bet, error)

	// MarkCashedOut settles a bet as a win
	MarkCashedOut(ctx context.Context, betID int64, coef, payout decimal.Decimal, settledAt time.Time) error

	// MarkLost settles a bet as a loss
	MarkLost(ctx context.Context, betID int64, settledAt time.Time) error

	// GetByUser returns a user's bets, newest first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Bet, error)
}

// LedgerRepository defines the interface for the append-only ledger
type LedgerRepository interface {
	// Record appends a new ledger entry; entries are never updated or deleted
	Record(ctx context.Context, entry *models.LedgerEntry) error

	// GetByUser returns a user's ledger entries, newest first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error)

	// GetByRound returns every ledger entry written for a round
	GetByRound(ctx context.Context, roundID int64) ([]*models.LedgerEntry, error)
}

// StatsRepository defines the interface for per-user statistics
type StatsRepository interface {
	// GetByUser retrieves stats for a user, zero-valued if absent
	GetByUser(ctx context.Context, userID int64) (*models.UserStats, error)

	// RecordWin upserts stats after a cashout
	RecordWin(ctx context.Context, userID int64, wagered, won, multiplier decimal.Decimal) error

	// RecordLoss upserts stats after a lost bet
	RecordLoss(ctx context.Context, userID int64, wagered decimal.Decimal) error

	// GetTop returns the users with the most winnings first
	GetTop(ctx context.Context, limit int) ([]*models.UserStats, error)
}

// RewardRepository defines the interface for the reward catalog
type RewardRepository interface {
	// Create inserts a catalog reward
	Create(ctx context.Context, reward *models.Reward) error

	// GetActive returns the purchasable catalog ordered for display
	GetActive(ctx context.Context) ([]*models.Reward, error)

	// GetByID retrieves a reward by its ID
	GetByID(ctx context.Context, id string) (*models.Reward, error)

	// CreatePurchase records a completed purchase
	CreatePurchase(ctx context.Context, purchase *models.RewardPurchase) error

	// GetPurchaseByID retrieves a purchase by its ID
	GetPurchaseByID(ctx context.Context, id int64) (*models.RewardPurchase, error)

	// MarkRefunded flips a purchase to refunded
	MarkRefunded(ctx context.Context, purchaseID int64, refundedAt time.Time) error

	// GetPurchasesByUser returns a user's purchases, newest first
	GetPurchasesByUser(ctx context.Context, userID int64, limit int) ([]*models.RewardPurchase, error)
}

// SettingsRepository defines the interface for persisted system settings
type SettingsRepository interface {
	// GetGameConfig loads the stored game configuration, nil if none saved
	GetGameConfig(ctx context.Context) (*models.GameConfig, error)

	// SaveGameConfig stores a validated game configuration
	SaveGameConfig(ctx context.Context, cfg *models.GameConfig) error
}

// UserService defines the interface for user operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates a new one with
	// the configured starting balance
	GetOrCreateUser(ctx context.Context, username string) (*models.User, error)

	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// GetLedger returns a user's ledger entries, newest first
	GetLedger(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error)

	// GetBets returns a user's bets, newest first
	GetBets(ctx context.Context, userID int64, limit int) ([]*models.Bet, error)
}

// AccountService defines the interface for balance operations outside rounds
type AccountService interface {
	// Deposit credits external funds to a user's balance
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*models.User, error)

	// Withdraw debits funds from a user's balance
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*models.User, error)

	// GrantBonus credits promotional funds; bonuses never increase the
	// eligible balance
	GrantBonus(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (*models.User, error)
}

// RewardService defines the interface for catalog purchases
type RewardService interface {
	// ListRewards returns the active catalog
	ListRewards(ctx context.Context) ([]*models.Reward, error)

	// Purchase buys a reward, consuming eligible balance per the reward's
	// eligible fraction requirement
	Purchase(ctx context.Context, userID int64, rewardID string) (*models.RewardPurchase, error)

	// Refund reverses a purchase, restoring balance and the consumed
	// eligible portion
	Refund(ctx context.Context, purchaseID int64) (*models.RewardPurchase, error)
}

// StatsService defines the interface for statistics operations
type StatsService interface {
	// GetScoreboard returns the top users with their statistics
	GetScoreboard(ctx context.Context, limit int) ([]*models.ScoreboardEntry, error)

	// GetUserStats returns detailed statistics for a specific user
	GetUserStats(ctx context.Context, userID int64) (*models.UserStats, error)
}

// ConfigService defines the interface for game configuration management
type ConfigService interface {
	// GetConfig returns the stored configuration, or the default one when
	// nothing has been saved yet
	GetConfig(ctx context.Context) (*models.GameConfig, error)

	// UpdateConfig validates and persists a new configuration
	UpdateConfig(ctx context.Context, cfg *models.GameConfig) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	RoundRepository() RoundRepository
	BetRepository() BetRepository
	LedgerRepository() LedgerRepository
	StatsRepository() StatsRepository
	RewardRepository() RewardRepository
	SettingsRepository() SettingsRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
