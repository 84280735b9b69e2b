package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"crashd/events"
)

// EventEnvelope wraps a domain event payload for external consumers.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// subjectFor maps an event type to its NATS subject under the
// game_events stream.
func subjectFor(t events.EventType) string {
	return fmt.Sprintf("game.%s", t)
}

// relayedTypes is the set of committed events exported to NATS.
var relayedTypes = []events.EventType{
	events.EventTypeBalanceChange,
	events.EventTypeBetPlaced,
	events.EventTypeCashedOut,
	events.EventTypeRoundCrashed,
	events.EventTypeUserCreated,
	events.EventTypeConfigUpdated,
}

// NATSEventRelay republishes committed in-process events to JetStream so
// external consumers (analytics, bots) see the same stream observers do.
type NATSEventRelay struct {
	client *NATSClient
}

// NewNATSEventRelay creates a relay over a connected client.
func NewNATSEventRelay(client *NATSClient) *NATSEventRelay {
	return &NATSEventRelay{client: client}
}

// Subscribe attaches the relay to the in-process bus. Only events
// flushed after a successful DB commit reach the bus, so everything
// relayed describes durable state.
func (r *NATSEventRelay) Subscribe(bus *events.Bus) {
	for _, t := range relayedTypes {
		bus.Subscribe(t, r.relay)
	}
}

func (r *NATSEventRelay) relay(ctx context.Context, event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to marshal event payload")
		return
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: "crashd",
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		log.WithError(err).Error("Failed to marshal event envelope")
		return
	}

	if err := r.client.Publish(ctx, subjectFor(event.Type()), data); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to relay event to NATS")
	}
}
