package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"crashd/models"
)

// GameAuthority is the engine surface the websocket layer reads from.
type GameAuthority interface {
	Snapshot(ctx context.Context) (models.RoundSnapshot, error)
	PlayerStatus(ctx context.Context, userID int64) (models.PlayerStatus, error)
	CrashHistory() []decimal.Decimal
}

const snapshotTimeout = 2 * time.Second

// Server upgrades HTTP connections and seeds new subscribers with the
// current state so they never have to replay deltas.
type Server struct {
	hub      *Hub
	game     GameAuthority
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, game GameAuthority) *Server {
	return &Server{
		hub:  hub,
		game: game,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles the websocket endpoint. The user identifier comes
// from the user_id query parameter; connections without one can still
// watch the public topics.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		userID = parsed
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	client := newClient(s.hub, s, conn, userID)
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// sendInitialState pushes the current view of a topic to a fresh
// subscriber.
func (s *Server) sendInitialState(c *Client, topic Topic) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	switch topic {
	case TopicGameState:
		snap, err := s.game.Snapshot(ctx)
		if err != nil {
			log.WithError(err).Warn("Failed to snapshot for new subscriber")
			return
		}
		c.trySend(encodeGameState(snap))
	case TopicCrashHistory:
		c.trySend(encodeCrashHistory(s.game.CrashHistory()))
	case TopicPlayerStatus:
		if c.userID == 0 {
			c.trySend(encodeError("player_status requires user_id"))
			return
		}
		st, err := s.game.PlayerStatus(ctx, c.userID)
		if err != nil {
			log.WithError(err).Warn("Failed to get player status for new subscriber")
			return
		}
		c.trySend(encodePlayerStatus(st))
	case TopicBalanceUpdate:
		if c.userID == 0 {
			c.trySend(encodeError("balance_update requires user_id"))
		}
		// balance frames flow from committed ledger entries only
	}
}
