package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/pipeline"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 16
)

// Message types.
const (
	TypeCycle       = "cycle"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeHeartbeat   = "heartbeat"
	TypeError       = "error"
)

// Message is the envelope exchanged with clients.
type Message struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Subscription narrows the opportunities a client receives.
type Subscription struct {
	Sports        []string `json:"sports"`
	OnlyArbitrage bool     `json:"only_arbitrage"`
}

func (s Subscription) apply(summary pipeline.Summary) pipeline.Summary {
	if len(s.Sports) == 0 && !s.OnlyArbitrage {
		return summary
	}
	top := make([]arbitrage.Opportunity, 0, len(summary.Top))
	for _, o := range summary.Top {
		if s.OnlyArbitrage && !o.IsArbitrage {
			continue
		}
		if len(s.Sports) > 0 && !containsFold(s.Sports, o.Sport) {
			continue
		}
		top = append(top, o)
	}
	summary.Top = top
	return summary
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// Client is one websocket connection.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan Message
	hub  *Hub

	sendMu sync.Mutex
	closed bool

	subMu sync.RWMutex
	sub   Subscription

	logger zerolog.Logger
}

// NewClient creates a client bound to hub.
func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan Message, sendBufferSize),
		hub:    hub,
		logger: hub.logger.With().Str("client_id", id).Logger(),
	}
}

func (c *Client) filter() Subscription {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.sub
}

func (c *Client) setFilter(s Subscription) {
	c.subMu.Lock()
	c.sub = s
	c.subMu.Unlock()
}

// trySend queues msg without blocking. It reports false when the buffer is
// full or the hub has already closed the client.
func (c *Client) trySend(msg Message) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close ends the send queue once; WritePump then sends a close frame.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads client control messages until the connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug().Err(err).Msg("unexpected close")
			}
			return
		}
		c.handle(msg)
	}
}

// WritePump writes queued messages and keepalive pings.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(msg inbound) {
	switch msg.Type {
	case TypeSubscribe:
		var sub Subscription
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &sub); err != nil {
				c.trySend(Message{Type: TypeError, Payload: "invalid subscription", Timestamp: time.Now().UTC()})
				return
			}
		}
		c.setFilter(sub)
	case TypeUnsubscribe:
		c.setFilter(Subscription{})
	case TypeHeartbeat:
		c.trySend(Message{Type: TypeHeartbeat, Timestamp: time.Now().UTC()})
	default:
		c.trySend(Message{Type: TypeError, Payload: "unknown message type: " + msg.Type, Timestamp: time.Now().UTC()})
	}
}
