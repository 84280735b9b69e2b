package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 512

	// outbound buffer per client; overflow drops frames, never blocks
	sendBuffer = 64
)

// Client is one websocket connection with its topic subscriptions.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	server *Server
	userID int64

	send chan []byte

	mu     sync.RWMutex
	topics map[Topic]struct{}

	dropped atomic.Int64
}

func newClient(hub *Hub, server *Server, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		server: server,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[Topic]struct{}),
	}
}

func (c *Client) subscribed(topic Topic) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}

func (c *Client) subscribe(topic Topic) {
	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) unsubscribe(topic Topic) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

// trySend queues a frame without blocking. A full buffer means the
// client is too slow for the stream; the frame is dropped and the next
// snapshot supersedes it.
func (c *Client) trySend(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.dropped.Add(1)
		framesDropped.Inc()
	}
}

// readPump consumes subscribe/unsubscribe frames until the connection
// dies. It also refreshes the read deadline on every pong.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).WithField("userID", c.userID).Debug("Websocket read failed")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.trySend(encodeError("malformed frame"))
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame clientFrame) {
	switch frame.Type {
	case "sub":
		if !validTopic(frame.Topic) {
			c.trySend(encodeError("unknown topic"))
			return
		}
		c.subscribe(frame.Topic)
		c.trySend(encodeAck(frame.Topic))
		// a fresh subscriber starts from the current state, not from
		// the next tick
		c.server.sendInitialState(c, frame.Topic)
	case "unsub":
		if !validTopic(frame.Topic) {
			c.trySend(encodeError("unknown topic"))
			return
		}
		c.unsubscribe(frame.Topic)
		c.trySend(encodeAck(frame.Topic))
	default:
		c.trySend(encodeError("unknown frame type"))
	}
}

// writePump drains the send channel and keeps the heartbeat going.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
