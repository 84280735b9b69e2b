package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"crashd/events"
	"crashd/models"
)

type sessionService struct {
	uowFactory UnitOfWorkFactory
	balanceCap decimal.Decimal
}

// NewSessionService creates the service backing join, cashout, and
// settlement. Each method commits one atomic transaction; validation
// failures come back as rejected results, not errors.
func NewSessionService(uowFactory UnitOfWorkFactory, balanceCap decimal.Decimal) *sessionService {
	return &sessionService{
		uowFactory: uowFactory,
		balanceCap: balanceCap,
	}
}

// PlaceBet debits the stake, writes the stake ledger entry, and creates
// the bet in one transaction.
func (s *sessionService) PlaceBet(ctx context.Context, userID, roundID int64, amount decimal.Decimal) (*models.JoinResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("bet amount must be positive, got %s", amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	// Betting spends raw balance; eligible balance gates nothing here
	if user.Balance.LessThan(amount) {
		return &models.JoinResult{Reason: models.ReasonInsufficientBalance}, nil
	}

	newBalance := user.Balance.Sub(amount)
	if err := uow.UserRepository().UpdateBalance(ctx, userID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to debit stake: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:        userID,
		RoundID:       &roundID,
		Kind:          models.EntryKindBetStake,
		Amount:        amount.Neg(),
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Metadata: map[string]any{
			"round_id": roundID,
		},
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, err
	}

	bet := &models.Bet{
		UserID:        userID,
		RoundID:       roundID,
		Amount:        amount,
		StakeLedgerID: &entry.ID,
	}
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		if errors.Is(err, models.ErrDuplicateBet) {
			// the unique constraint is the final arbiter; the rollback
			// also voids the debit above
			return &models.JoinResult{Reason: models.ReasonDuplicateBet}, nil
		}
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	uow.EventBus().Publish(events.BetPlacedEvent{
		UserID:  userID,
		RoundID: roundID,
		BetID:   bet.ID,
		Amount:  amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bet: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"roundID": roundID,
		"amount":  amount,
	}).Info("Bet placed")

	return &models.JoinResult{
		Accepted:   true,
		BetID:      bet.ID,
		NewBalance: newBalance,
	}, nil
}

// CashOut settles an open bet as a win at the given coefficient.
func (s *sessionService) CashOut(ctx context.Context, userID, roundID int64, coef decimal.Decimal) (*models.CashoutResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	bet, err := uow.BetRepository().GetByUserAndRound(ctx, userID, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	if bet == nil || bet.Status != models.BetStatusOpen {
		return &models.CashoutResult{Reason: models.ReasonNoOpenBet}, nil
	}

	user, err := uow.UserRepository().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	payout := bet.Amount.Mul(coef).Round(2)
	newBalance := user.Balance.Add(payout)
	if newBalance.GreaterThan(s.balanceCap) {
		return &models.CashoutResult{Reason: models.ReasonBalanceCapExceeded}, nil
	}

	now := time.Now()
	if err := uow.BetRepository().MarkCashedOut(ctx, bet.ID, coef, payout, now); err != nil {
		return nil, fmt.Errorf("failed to settle bet: %w", err)
	}

	if err := uow.UserRepository().UpdateBalance(ctx, userID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to credit payout: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:        userID,
		RoundID:       &roundID,
		Kind:          models.EntryKindWinPayout,
		Amount:        payout,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Metadata: map[string]any{
			"round_id":    roundID,
			"bet_id":      bet.ID,
			"coefficient": coef.String(),
		},
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, err
	}

	// Net winnings feed the eligible balance
	netWin := payout.Sub(bet.Amount)
	newEligible := user.EligibleBalance.Add(netWin)
	if err := uow.UserRepository().UpdateEligibleBalance(ctx, userID, newEligible); err != nil {
		return nil, fmt.Errorf("failed to update eligible balance: %w", err)
	}

	if err := uow.StatsRepository().RecordWin(ctx, userID, bet.Amount, payout, coef); err != nil {
		return nil, fmt.Errorf("failed to record stats: %w", err)
	}

	uow.EventBus().Publish(events.CashedOutEvent{
		UserID:      userID,
		RoundID:     roundID,
		BetID:       bet.ID,
		Coefficient: coef,
		Payout:      payout,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cashout: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":      userID,
		"roundID":     roundID,
		"coefficient": coef,
		"payout":      payout,
	}).Info("Bet cashed out")

	return &models.CashoutResult{
		Accepted:    true,
		Coefficient: coef,
		Payout:      payout,
		NewBalance:  newBalance,
	}, nil
}

// RefundRound returns the stakes of a round that never reached its
// crash, settling each open bet as a cashout at 1.00. Used by the
// startup recovery sweep for rounds a dead process left in waiting
// state. Stats stay untouched: an aborted round is not a game.
func (s *sessionService) RefundRound(ctx context.Context, roundID int64) (*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	open, err := uow.BetRepository().GetOpenByRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get open bets: %w", err)
	}

	one := decimal.NewFromInt(1)
	now := time.Now()
	for _, bet := range open {
		if err := uow.BetRepository().MarkCashedOut(ctx, bet.ID, one, bet.Amount, now); err != nil {
			return nil, fmt.Errorf("failed to settle bet %d: %w", bet.ID, err)
		}

		user, err := uow.UserRepository().GetByIDForUpdate(ctx, bet.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return nil, ErrUserNotFound
		}

		// the stake comes straight back; the cap still binds if other
		// credits landed since the debit
		refund := decimal.Min(bet.Amount, s.balanceCap.Sub(user.Balance))
		newBalance := user.Balance.Add(refund)
		if err := uow.UserRepository().UpdateBalance(ctx, bet.UserID, newBalance); err != nil {
			return nil, fmt.Errorf("failed to credit refund: %w", err)
		}

		entry := &models.LedgerEntry{
			UserID:        bet.UserID,
			RoundID:       &roundID,
			Kind:          models.EntryKindRefund,
			Amount:        refund,
			BalanceBefore: user.Balance,
			BalanceAfter:  newBalance,
			Metadata: map[string]any{
				"round_id": roundID,
				"bet_id":   bet.ID,
				"reason":   "round_aborted",
			},
		}
		if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
			return nil, err
		}
	}

	round, err := uow.RoundRepository().FinalizeAggregates(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize round: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}

	log.WithFields(log.Fields{
		"roundID": roundID,
		"bets":    len(open),
	}).Info("Aborted round refunded")

	return round, nil
}

// SettleRound marks every still-open bet of the round lost, updates the
// losers' stats, and finalizes the round aggregates in one transaction.
// Stakes were debited at join, so losses move no money here: the ledger
// already accounts for them.
func (s *sessionService) SettleRound(ctx context.Context, roundID int64, crashPoint decimal.Decimal) (*models.Round, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	open, err := uow.BetRepository().GetOpenByRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get open bets: %w", err)
	}

	now := time.Now()
	for _, bet := range open {
		if err := uow.BetRepository().MarkLost(ctx, bet.ID, now); err != nil {
			return nil, fmt.Errorf("failed to settle bet %d: %w", bet.ID, err)
		}
		if err := uow.StatsRepository().RecordLoss(ctx, bet.UserID, bet.Amount); err != nil {
			return nil, fmt.Errorf("failed to record stats: %w", err)
		}
	}

	round, err := uow.RoundRepository().FinalizeAggregates(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize round: %w", err)
	}

	uow.EventBus().Publish(events.RoundCrashedEvent{
		RoundID:     roundID,
		CrashPoint:  crashPoint,
		TotalBet:    round.TotalBet,
		TotalPayout: round.TotalPayout,
		HouseProfit: round.HouseProfit,
		PlayerCount: round.PlayerCount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return round, nil
}
