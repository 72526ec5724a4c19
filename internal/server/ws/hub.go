package ws

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/pipeline"
)

const broadcastBuffer = 64

// Hub tracks connected clients and fans cycle summaries out to them.
type Hub struct {
	clients   map[*Client]struct{}
	clientsMu sync.RWMutex

	broadcast  chan pipeline.Summary
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	totalConnections int64
	totalMessages    int64
	metricsMu        sync.Mutex

	logger zerolog.Logger
}

// NewHub creates a Hub; call Run to start it.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan pipeline.Summary, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run serves register, unregister and broadcast requests until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("hub started")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case summary := <-h.broadcast:
			h.broadcastSummary(summary)
		}
	}
}

// Register adds a client. It is a no-op once the hub has stopped.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a summary; it is dropped when the queue is full.
func (h *Hub) Broadcast(summary pipeline.Summary) {
	select {
	case h.broadcast <- summary:
	default:
		h.logger.Warn().Str("cycle_id", summary.CycleID).Msg("broadcast buffer full, dropping summary")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Metrics reports connection and message counters.
func (h *Hub) Metrics() map[string]int64 {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return map[string]int64{
		"active_clients":    int64(h.ClientCount()),
		"total_connections": h.totalConnections,
		"total_messages":    h.totalMessages,
	}
}

func (h *Hub) registerClient(c *Client) {
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.clientsMu.Unlock()

	h.metricsMu.Lock()
	h.totalConnections++
	h.metricsMu.Unlock()

	h.logger.Debug().Str("client_id", c.ID).Int("clients", total).Msg("client connected")
}

func (h *Hub) unregisterClient(c *Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
		h.logger.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client disconnected")
	}
}

func (h *Hub) broadcastSummary(summary pipeline.Summary) {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	now := time.Now().UTC()
	sent := 0
	for _, c := range clients {
		msg := Message{Type: TypeCycle, Payload: c.filter().apply(summary), Timestamp: now}
		if c.trySend(msg) {
			sent++
			continue
		}
		h.logger.Warn().Str("client_id", c.ID).Msg("client buffer full, disconnecting")
		go h.Unregister(c)
	}

	if sent > 0 {
		h.metricsMu.Lock()
		h.totalMessages += int64(sent)
		h.metricsMu.Unlock()
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.Info().Int("clients", len(h.clients)).Msg("shutting down hub")
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}
