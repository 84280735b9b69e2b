package ws

import (
	"context"

	"github.com/shopspring/decimal"

	"crashd/events"
	"crashd/models"
)

// Broadcaster bridges engine output and committed events onto hub
// topics. Engine pushes arrive on the tick loop's goroutine, so every
// method stays non-blocking.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) BroadcastGameState(snap models.RoundSnapshot) {
	b.hub.Broadcast(TopicGameState, encodeGameState(snap))
}

func (b *Broadcaster) BroadcastCrashHistory(coeffs []decimal.Decimal) {
	b.hub.Broadcast(TopicCrashHistory, encodeCrashHistory(coeffs))
}

func (b *Broadcaster) BroadcastPlayerStatus(st models.PlayerStatus) {
	b.hub.BroadcastUser(TopicPlayerStatus, st.UserID, encodePlayerStatus(st))
}

// SubscribeEvents wires committed balance changes onto the
// balance_update topic. Only events flushed after a successful commit
// reach the bus, so observers never see a balance that later rolled back.
func (b *Broadcaster) SubscribeEvents(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		ev, ok := e.(events.BalanceChangeEvent)
		if !ok {
			return
		}
		b.hub.BroadcastUser(TopicBalanceUpdate, ev.UserID,
			encodeBalanceUpdate(ev.UserID, ev.BalanceAfter, ev.ChangeAmount, string(ev.EntryKind)))
	})
}
