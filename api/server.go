package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"crashd/models"
	"crashd/service"
)

// GameEngine is the round authority surface the API calls into.
type GameEngine interface {
	Join(ctx context.Context, userID int64, amount decimal.Decimal) (*models.JoinResult, error)
	Cashout(ctx context.Context, userID int64) (*models.CashoutResult, error)
	Snapshot(ctx context.Context) (models.RoundSnapshot, error)
	PlayerStatus(ctx context.Context, userID int64) (models.PlayerStatus, error)
	UpdateConfig(ctx context.Context, cfg *models.GameConfig) error
	CrashHistory() []decimal.Decimal
}

// Server exposes the game and account operations over HTTP. The
// websocket endpoint is mounted alongside these routes.
type Server struct {
	engine  GameEngine
	users   service.UserService
	account service.AccountService
	rewards service.RewardService
	stats   service.StatsService
	config  service.ConfigService
}

// Deps carries everything the API needs.
type Deps struct {
	Engine  GameEngine
	Users   service.UserService
	Account service.AccountService
	Rewards service.RewardService
	Stats   service.StatsService
	Config  service.ConfigService
}

func NewServer(deps Deps) *Server {
	return &Server{
		engine:  deps.Engine,
		users:   deps.Users,
		account: deps.Account,
		rewards: deps.Rewards,
		stats:   deps.Stats,
		config:  deps.Config,
	}
}

// Routes mounts every API endpoint on a fresh mux. The websocket
// handler is attached by the caller so this package stays independent
// of the fan-out layer.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/join", s.handleJoin)
	mux.HandleFunc("POST /api/cashout", s.handleCashout)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	mux.HandleFunc("POST /api/users", s.handleCreateUser)
	mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	mux.HandleFunc("GET /api/users/{id}/ledger", s.handleGetLedger)
	mux.HandleFunc("GET /api/users/{id}/bets", s.handleGetBets)
	mux.HandleFunc("GET /api/users/{id}/stats", s.handleGetStats)
	mux.HandleFunc("GET /api/users/{id}/status", s.handlePlayerStatus)
	mux.HandleFunc("POST /api/users/{id}/deposit", s.handleDeposit)
	mux.HandleFunc("POST /api/users/{id}/withdraw", s.handleWithdraw)
	mux.HandleFunc("POST /api/users/{id}/bonus", s.handleBonus)

	mux.HandleFunc("GET /api/rewards", s.handleListRewards)
	mux.HandleFunc("POST /api/rewards/purchase", s.handlePurchase)
	mux.HandleFunc("POST /api/purchases/{id}/refund", s.handleRefund)

	mux.HandleFunc("GET /api/scoreboard", s.handleScoreboard)

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.handleUpdateConfig)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
