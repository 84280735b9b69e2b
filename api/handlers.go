package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"crashd/models"
	"crashd/service"
)

const defaultListLimit = 50

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRewardNotFound),
		errors.Is(err, service.ErrPurchaseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrBalanceCapExceeded),
		errors.Is(err, service.ErrEligibleTooLow):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func listLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return defaultListLimit
}

type joinRequest struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type joinResponse struct {
	Accepted   bool   `json:"accepted"`
	Reason     string `json:"reason,omitempty"`
	BetID      int64  `json:"bet_id,omitempty"`
	NewBalance string `json:"new_balance,omitempty"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.Join(r.Context(), req.UserID, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := joinResponse{Accepted: result.Accepted, Reason: string(result.Reason)}
	if result.Accepted {
		resp.BetID = result.BetID
		resp.NewBalance = result.NewBalance.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, resp)
}

type cashoutRequest struct {
	UserID int64 `json:"user_id"`
}

type cashoutResponse struct {
	Accepted    bool   `json:"accepted"`
	Reason      string `json:"reason,omitempty"`
	Coefficient string `json:"coefficient,omitempty"`
	Payout      string `json:"payout,omitempty"`
	NewBalance  string `json:"new_balance,omitempty"`
}

func (s *Server) handleCashout(w http.ResponseWriter, r *http.Request) {
	var req cashoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.Cashout(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := cashoutResponse{Accepted: result.Accepted, Reason: string(result.Reason)}
	if result.Accepted {
		resp.Coefficient = result.Coefficient.StringFixed(2)
		resp.Payout = result.Payout.StringFixed(2)
		resp.NewBalance = result.NewBalance.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, resp)
}

type snapshotResponse struct {
	RoundID       int64  `json:"round_id"`
	Status        string `json:"status"`
	Coefficient   string `json:"coefficient"`
	Countdown     int    `json:"countdown"`
	Crashed       bool   `json:"crashed"`
	LastCrashCoef string `json:"last_crash_coefficient"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		RoundID:       snap.RoundID,
		Status:        string(snap.Status),
		Coefficient:   snap.Coefficient.StringFixed(2),
		Countdown:     snap.Countdown,
		Crashed:       snap.Crashed,
		LastCrashCoef: snap.LastCrashCoef.StringFixed(2),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	coeffs := s.engine.CrashHistory()
	out := make([]string, len(coeffs))
	for i, c := range coeffs {
		out[i] = c.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"history": out})
}

type createUserRequest struct {
	Username string `json:"username"`
}

type userResponse struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Balance         string `json:"balance"`
	EligibleBalance string `json:"eligible_balance"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Username:        u.Username,
		Balance:         u.Balance.StringFixed(2),
		EligibleBalance: u.EligibleBalance.StringFixed(2),
	}
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	user, err := s.users.GetOrCreateUser(r.Context(), req.Username)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := s.users.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	entries, err := s.users.GetLedger(r.Context(), id, listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetBets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	bets, err := s.users.GetBets(r.Context(), id, listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bets)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	stats, err := s.stats.GetUserStats(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePlayerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	st, err := s.engine.PlayerStatus(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceOp(w, r, s.account.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceOp(w, r, s.account.Withdraw)
}

func (s *Server) handleBonus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.account.GrantBonus(r.Context(), id, req.Amount, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleBalanceOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID int64, amount decimal.Decimal) (*models.User, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := op(r.Context(), id, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.rewards.ListRewards(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

type purchaseRequest struct {
	UserID   int64  `json:"user_id"`
	RewardID string `json:"reward_id"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	purchase, err := s.rewards.Purchase(r.Context(), req.UserID, req.RewardID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	purchase, err := s.rewards.Refund(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

func (s *Server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.stats.GetScoreboard(r.Context(), listLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.config.GetConfig(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleUpdateConfig persists the new configuration and hands it to the
// engine, which activates it when the next round opens.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.GameConfig
	if !decodeBody(w, r, &cfg) {
		return
	}

	if err := s.config.UpdateConfig(r.Context(), &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.UpdateConfig(r.Context(), &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
