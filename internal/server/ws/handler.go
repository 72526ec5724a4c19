package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"odds-arb-watcher/internal/pipeline"
)

// Handler upgrades HTTP requests and attaches the connection to the hub.
// The latest snapshot, when available, is sent as the first message.
type Handler struct {
	hub      *Hub
	latest   func() *pipeline.Snapshot
	topN     int
	upgrader websocket.Upgrader
	ctx      context.Context
}

// NewHandler builds a websocket handler. ctx bounds the client pumps.
func NewHandler(ctx context.Context, hub *Hub, latest func() *pipeline.Snapshot, topN int) *Handler {
	return &Handler{
		hub:    hub,
		latest: latest,
		topN:   topN,
		ctx:    ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(uuid.NewString(), conn, h.hub)
	if h.latest != nil {
		if snap := h.latest(); snap != nil && snap.CycleID != "" {
			client.trySend(Message{Type: TypeCycle, Payload: pipeline.Summarize(snap, h.topN), Timestamp: time.Now().UTC()})
		}
	}
	h.hub.Register(client)

	go client.WritePump(h.ctx)
	go client.ReadPump(h.ctx)
}
