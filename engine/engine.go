package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"crashd/models"
)

// SessionService executes the money-moving side of join, cashout, and
// settlement. Every method commits a single atomic transaction.
type SessionService interface {
	// PlaceBet debits the stake, creates the bet, and writes the stake
	// ledger entry atomically. Validation failures come back as a
	// rejected JoinResult, not as an error.
	PlaceBet(ctx context.Context, userID, roundID int64, amount decimal.Decimal) (*models.JoinResult, error)

	// CashOut settles an open bet as a win at the given coefficient:
	// payout credit, win ledger entry, eligible-balance increase, stats.
	CashOut(ctx context.Context, userID, roundID int64, coef decimal.Decimal) (*models.CashoutResult, error)

	// SettleRound marks every still-open bet of the round lost, updates
	// player stats, and finalizes the round aggregates (total bet, total
	// payout, house profit) in one transaction.
	SettleRound(ctx context.Context, roundID int64, crashPoint decimal.Decimal) (*models.Round, error)

	// RefundRound returns the stakes of a round that never started
	// playing, settling each open bet as a cashout at 1.00.
	RefundRound(ctx context.Context, roundID int64) (*models.Round, error)
}

// RoundService creates and transitions round records.
type RoundService interface {
	// OpenRound completes the previous round and creates the next one in
	// waiting state.
	OpenRound(ctx context.Context) (*models.Round, error)

	// BeginPlaying stores the secret crash point and marks the round
	// playing.
	BeginPlaying(ctx context.Context, roundID int64, crashPoint decimal.Decimal) error

	// RecentCrashPoints returns the latest crash coefficients, newest
	// first, to rebuild the in-memory history after a restart.
	RecentCrashPoints(ctx context.Context, limit int) ([]decimal.Decimal, error)

	// UnfinishedRounds returns rounds a previous process left in waiting
	// or playing state, oldest first.
	UnfinishedRounds(ctx context.Context) ([]*models.Round, error)
}

// Broadcaster pushes engine output to connected observers. Implementations
// must never block: a slow observer is the fan-out layer's problem.
type Broadcaster interface {
	BroadcastGameState(snap models.RoundSnapshot)
	BroadcastCrashHistory(coeffs []decimal.Decimal)
	BroadcastPlayerStatus(st models.PlayerStatus)
}

// liveBet is the engine's in-memory view of one open bet this round
type liveBet struct {
	betID       int64
	amount      decimal.Decimal
	cashedOut   bool
	cashoutCoef decimal.Decimal
	payout      decimal.Decimal
}

// Engine owns one round at a time and is the single point of authority
// over it: joins, cashouts, tick advances, and the crash transition are
// all serialized through its run loop, so a cashout can never succeed
// after the crash has been committed.
type Engine struct {
	sessions SessionService
	rounds   RoundService
	hub      Broadcaster
	history  *crashHistory

	cfg *models.GameConfig
	gen *CrashPointGenerator

	cmds    chan command
	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	// round state below is owned exclusively by the run loop
	round         *models.Round
	phase         models.RoundStatus
	crashPoint    decimal.Decimal
	tickCount     int64
	coef          decimal.Decimal
	lastCrash     decimal.Decimal
	waitingSince  time.Time
	holdUntil     time.Time
	settlePending bool
	pendingCfg    *models.GameConfig
	openBets      map[int64]*liveBet
}

type command interface{ isCommand() }

type joinCmd struct {
	userID int64
	amount decimal.Decimal
	resp   chan reply[*models.JoinResult]
}

type cashoutCmd struct {
	userID int64
	resp   chan reply[*models.CashoutResult]
}

type snapshotCmd struct {
	resp chan models.RoundSnapshot
}

type statusCmd struct {
	userID int64
	resp   chan models.PlayerStatus
}

type configCmd struct {
	cfg  *models.GameConfig
	resp chan error
}

type reply[T any] struct {
	val T
	err error
}

func (joinCmd) isCommand()     {}
func (cashoutCmd) isCommand()  {}
func (snapshotCmd) isCommand() {}
func (statusCmd) isCommand()   {}
func (configCmd) isCommand()   {}

// New creates an engine with a validated configuration.
func New(cfg *models.GameConfig, sessions SessionService, rounds RoundService, hub Broadcaster) (*Engine, error) {
	gen, err := NewCrashPointGenerator(cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		sessions:  sessions,
		rounds:    rounds,
		hub:       hub,
		history:   newCrashHistory(),
		cfg:       cfg,
		gen:       gen,
		cmds:      make(chan command),
		stopped:   make(chan struct{}),
		lastCrash: decimal.NewFromInt(1),
		coef:      decimal.NewFromInt(1),
		openBets:  make(map[int64]*liveBet),
	}, nil
}

// Start settles whatever a previous process left behind, opens the
// first round, and launches the run loop.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.recoverLeftovers(ctx); err != nil {
		return err
	}

	points, err := e.rounds.RecentCrashPoints(ctx, historySize)
	if err != nil {
		return fmt.Errorf("failed to load crash history: %w", err)
	}
	for i := len(points) - 1; i >= 0; i-- {
		e.history.Push(points[i])
	}
	if len(points) > 0 {
		e.lastCrash = points[0]
	}

	round, err := e.rounds.OpenRound(ctx)
	if err != nil {
		return fmt.Errorf("failed to open initial round: %w", err)
	}
	e.round = round
	e.phase = models.RoundStatusWaiting
	e.waitingSince = time.Now()

	e.wg.Add(1)
	go e.run(ctx)

	log.WithField("roundID", round.ID).Info("Game engine started")
	return nil
}

// recoverLeftovers finalizes rounds left unfinished by a dead process
// before any new round opens, so every bet from before the restart is
// settled exactly once. A round caught mid-flight crashes at its stored
// crash point and its open bets lose; a round still waiting never
// started, so its stakes are returned.
func (e *Engine) recoverLeftovers(ctx context.Context) error {
	leftovers, err := e.rounds.UnfinishedRounds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unfinished rounds: %w", err)
	}

	for _, r := range leftovers {
		if r.CrashPoint != nil {
			if _, err := e.sessions.SettleRound(ctx, r.ID, *r.CrashPoint); err != nil {
				return fmt.Errorf("failed to settle leftover round %d: %w", r.ID, err)
			}
			log.WithFields(log.Fields{
				"roundID":    r.ID,
				"crashPoint": *r.CrashPoint,
			}).Info("Settled round left over from previous run")
			continue
		}

		if _, err := e.sessions.RefundRound(ctx, r.ID); err != nil {
			return fmt.Errorf("failed to refund leftover round %d: %w", r.ID, err)
		}
		log.WithField("roundID", r.ID).Info("Refunded round left over from previous run")
	}
	return nil
}

// Stop shuts the run loop down and waits for it to exit.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stopped) })
	e.wg.Wait()
}

// Join submits a join request for the current round. The request is
// processed by the round authority; rejection reasons come back as data.
func (e *Engine) Join(ctx context.Context, userID int64, amount decimal.Decimal) (*models.JoinResult, error) {
	cmd := joinCmd{userID: userID, amount: amount, resp: make(chan reply[*models.JoinResult], 1)}
	if err := e.submit(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case r := <-cmd.resp:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cashout submits a cashout request, evaluated at the instant the round
// authority processes it.
func (e *Engine) Cashout(ctx context.Context, userID int64) (*models.CashoutResult, error) {
	cmd := cashoutCmd{userID: userID, resp: make(chan reply[*models.CashoutResult], 1)}
	if err := e.submit(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case r := <-cmd.resp:
		return r.val, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot returns the current public round state. Reconnecting
// observers call this instead of replaying missed deltas.
func (e *Engine) Snapshot(ctx context.Context) (models.RoundSnapshot, error) {
	cmd := snapshotCmd{resp: make(chan models.RoundSnapshot, 1)}
	if err := e.submit(ctx, cmd); err != nil {
		return models.RoundSnapshot{}, err
	}
	select {
	case snap := <-cmd.resp:
		return snap, nil
	case <-ctx.Done():
		return models.RoundSnapshot{}, ctx.Err()
	}
}

// PlayerStatus returns the caller's bet state in the current round.
func (e *Engine) PlayerStatus(ctx context.Context, userID int64) (models.PlayerStatus, error) {
	cmd := statusCmd{userID: userID, resp: make(chan models.PlayerStatus, 1)}
	if err := e.submit(ctx, cmd); err != nil {
		return models.PlayerStatus{}, err
	}
	select {
	case st := <-cmd.resp:
		return st, nil
	case <-ctx.Done():
		return models.PlayerStatus{}, ctx.Err()
	}
}

// UpdateConfig validates a new configuration and schedules it to take
// effect when the next round opens. Rounds already in flight keep the
// configuration they started with.
func (e *Engine) UpdateConfig(ctx context.Context, cfg *models.GameConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config rejected: %w", err)
	}
	cmd := configCmd{cfg: cfg, resp: make(chan error, 1)}
	if err := e.submit(ctx, cmd); err != nil {
		return err
	}
	select {
	case err := <-cmd.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CrashHistory returns the most recent crash coefficients, newest first.
func (e *Engine) CrashHistory() []decimal.Decimal {
	return e.history.All()
}

func (e *Engine) submit(ctx context.Context, cmd command) error {
	select {
	case e.cmds <- cmd:
		return nil
	case <-e.stopped:
		return fmt.Errorf("engine stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopped:
			return
		case cmd := <-e.cmds:
			e.handleCommand(ctx, cmd)
		case now := <-ticker.C:
			e.handleTick(ctx, now, ticker)
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		res, err := e.processJoin(ctx, c.userID, c.amount)
		c.resp <- reply[*models.JoinResult]{val: res, err: err}
	case cashoutCmd:
		res, err := e.processCashout(ctx, c.userID)
		c.resp <- reply[*models.CashoutResult]{val: res, err: err}
	case snapshotCmd:
		c.resp <- e.snapshot()
	case statusCmd:
		c.resp <- e.playerStatus(c.userID)
	case configCmd:
		e.pendingCfg = c.cfg
		c.resp <- nil
		log.Info("New game configuration accepted, takes effect next round")
	}
}

func (e *Engine) processJoin(ctx context.Context, userID int64, amount decimal.Decimal) (*models.JoinResult, error) {
	if e.phase != models.RoundStatusWaiting {
		return &models.JoinResult{Reason: models.ReasonRoundNotWaiting}, nil
	}
	if time.Now().After(e.joinDeadline()) {
		return &models.JoinResult{Reason: models.ReasonJoinDeadlinePassed}, nil
	}
	if _, exists := e.openBets[userID]; exists {
		return &models.JoinResult{Reason: models.ReasonDuplicateBet}, nil
	}
	if amount.LessThan(e.cfg.MinBet) || amount.GreaterThan(e.cfg.MaxBet) {
		return &models.JoinResult{Reason: models.ReasonBetOutOfRange}, nil
	}

	res, err := e.sessions.PlaceBet(ctx, userID, e.round.ID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to place bet: %w", err)
	}
	if res.Accepted {
		e.openBets[userID] = &liveBet{betID: res.BetID, amount: amount}
		e.hub.BroadcastPlayerStatus(models.PlayerStatus{
			UserID:    userID,
			InRound:   true,
			BetAmount: amount,
		})
	}
	return res, nil
}

func (e *Engine) processCashout(ctx context.Context, userID int64) (*models.CashoutResult, error) {
	switch e.phase {
	case models.RoundStatusPlaying:
		// fall through
	case models.RoundStatusCrashed:
		return &models.CashoutResult{Reason: models.ReasonRoundAlreadyCrashed}, nil
	default:
		return &models.CashoutResult{Reason: models.ReasonRoundNotPlaying}, nil
	}

	lb, ok := e.openBets[userID]
	if !ok || lb.cashedOut {
		return &models.CashoutResult{Reason: models.ReasonNoOpenBet}, nil
	}
	// the crash transition is committed before any later command runs,
	// so a coefficient at or past the crash point cannot be seen here
	if e.coef.GreaterThanOrEqual(e.crashPoint) {
		return &models.CashoutResult{Reason: models.ReasonRoundAlreadyCrashed}, nil
	}

	res, err := e.sessions.CashOut(ctx, userID, e.round.ID, e.coef)
	if err != nil {
		return nil, fmt.Errorf("failed to cash out: %w", err)
	}
	if res.Accepted {
		lb.cashedOut = true
		lb.cashoutCoef = res.Coefficient
		lb.payout = res.Payout
		e.hub.BroadcastPlayerStatus(models.PlayerStatus{
			UserID:      userID,
			InRound:     true,
			BetAmount:   lb.amount,
			CashedOut:   true,
			CashoutCoef: res.Coefficient,
			WinAmount:   res.Payout.Sub(lb.amount),
		})
	}
	return res, nil
}

func (e *Engine) handleTick(ctx context.Context, now time.Time, ticker *time.Ticker) {
	switch e.phase {
	case models.RoundStatusWaiting:
		if !now.Before(e.waitingSince.Add(e.cfg.WaitingTime)) {
			e.startPlaying(ctx)
		} else {
			e.hub.BroadcastGameState(e.snapshot())
		}
	case models.RoundStatusPlaying:
		e.tickCount++
		e.coef = Coefficient(e.cfg.GrowthRate, e.tickCount, e.cfg.MaxCoefficient)
		if e.coef.GreaterThanOrEqual(e.crashPoint) {
			e.handleCrash(ctx, now)
		} else {
			e.hub.BroadcastGameState(e.snapshot())
		}
	case models.RoundStatusCrashed:
		if e.settlePending {
			e.settle(ctx, now)
			return
		}
		if !now.Before(e.holdUntil) {
			e.openNextRound(ctx, now, ticker)
		}
	}
}

func (e *Engine) startPlaying(ctx context.Context) {
	crashPoint, err := e.gen.Generate()
	if err != nil {
		log.WithError(err).Error("Failed to generate crash point, round stays in waiting")
		return
	}
	if err := e.rounds.BeginPlaying(ctx, e.round.ID, crashPoint); err != nil {
		log.WithError(err).WithField("roundID", e.round.ID).
			Error("Failed to persist round start, retrying next tick")
		return
	}

	e.phase = models.RoundStatusPlaying
	e.crashPoint = crashPoint
	e.tickCount = 0
	e.coef = decimal.NewFromInt(1)

	log.WithFields(log.Fields{
		"roundID": e.round.ID,
		"players": len(e.openBets),
	}).Info("Round started")

	e.hub.BroadcastGameState(e.snapshot())
}

func (e *Engine) handleCrash(ctx context.Context, now time.Time) {
	e.phase = models.RoundStatusCrashed
	e.coef = e.crashPoint
	e.lastCrash = e.crashPoint
	e.history.Push(e.crashPoint)
	e.holdUntil = now.Add(e.cfg.CrashHold)
	e.settlePending = true

	log.WithFields(log.Fields{
		"roundID":    e.round.ID,
		"crashPoint": e.crashPoint,
		"tick":       e.tickCount,
	}).Info("Round crashed")

	e.hub.BroadcastGameState(e.snapshot())
	e.hub.BroadcastCrashHistory(e.history.All())

	e.settle(ctx, now)
}

// settle finalizes the crashed round. A persistence failure here is
// fatal for round progression: the engine retries every tick and never
// opens the next round until the settlement write has succeeded.
func (e *Engine) settle(ctx context.Context, now time.Time) {
	round, err := e.sessions.SettleRound(ctx, e.round.ID, e.crashPoint)
	if err != nil {
		log.WithError(err).WithField("roundID", e.round.ID).
			Error("Round settlement failed, retrying")
		return
	}
	e.settlePending = false
	e.round = round

	for userID, lb := range e.openBets {
		if lb.cashedOut {
			continue
		}
		e.hub.BroadcastPlayerStatus(models.PlayerStatus{
			UserID:    userID,
			InRound:   true,
			BetAmount: lb.amount,
			Lost:      true,
		})
	}

	log.WithFields(log.Fields{
		"roundID":     round.ID,
		"totalBet":    round.TotalBet,
		"totalPayout": round.TotalPayout,
		"houseProfit": round.HouseProfit,
		"players":     round.PlayerCount,
	}).Info("Round settled")
}

func (e *Engine) openNextRound(ctx context.Context, now time.Time, ticker *time.Ticker) {
	round, err := e.rounds.OpenRound(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to open next round, retrying next tick")
		return
	}

	if e.pendingCfg != nil {
		gen, err := NewCrashPointGenerator(e.pendingCfg)
		if err != nil {
			// validated before acceptance; a failure here means the
			// config was mutated after submission
			log.WithError(err).Error("Pending config failed validation, keeping current config")
		} else {
			e.cfg = e.pendingCfg
			e.gen = gen
			ticker.Reset(e.cfg.TickInterval)
			log.Info("New game configuration activated")
		}
		e.pendingCfg = nil
	}

	e.round = round
	e.phase = models.RoundStatusWaiting
	e.waitingSince = now
	e.tickCount = 0
	e.coef = decimal.NewFromInt(1)
	e.crashPoint = decimal.Zero
	e.openBets = make(map[int64]*liveBet)

	log.WithField("roundID", round.ID).Info("New round waiting for players")
	e.hub.BroadcastGameState(e.snapshot())
}

func (e *Engine) joinDeadline() time.Time {
	return e.waitingSince.Add(e.cfg.WaitingTime - e.cfg.JoinCutoff)
}

func (e *Engine) snapshot() models.RoundSnapshot {
	snap := models.RoundSnapshot{
		RoundID:       e.round.ID,
		Status:        e.phase,
		Coefficient:   e.coef,
		Crashed:       e.phase == models.RoundStatusCrashed,
		LastCrashCoef: e.lastCrash,
	}
	if e.phase == models.RoundStatusWaiting {
		remaining := time.Until(e.waitingSince.Add(e.cfg.WaitingTime))
		if remaining < 0 {
			remaining = 0
		}
		snap.Countdown = int(remaining.Round(time.Second) / time.Second)
	}
	return snap
}

func (e *Engine) playerStatus(userID int64) models.PlayerStatus {
	lb, ok := e.openBets[userID]
	if !ok {
		return models.PlayerStatus{UserID: userID}
	}
	st := models.PlayerStatus{
		UserID:    userID,
		InRound:   true,
		BetAmount: lb.amount,
		CashedOut: lb.cashedOut,
		Lost:      e.phase == models.RoundStatusCrashed && !lb.cashedOut,
	}
	if lb.cashedOut {
		st.CashoutCoef = lb.cashoutCoef
		st.WinAmount = lb.payout.Sub(lb.amount)
	}
	return st
}
