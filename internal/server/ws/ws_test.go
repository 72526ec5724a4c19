package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/pipeline"
)

type received struct {
	Type    string           `json:"type"`
	Payload pipeline.Summary `json:"payload"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsSummaries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	latest := &pipeline.Snapshot{CycleID: "c0", Status: pipeline.StatusUpdated}
	srv := httptest.NewServer(NewHandler(ctx, hub, func() *pipeline.Snapshot { return latest }, 5))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, hub, 1)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first received
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if first.Type != TypeCycle || first.Payload.CycleID != "c0" {
		t.Fatalf("连接后应先收到最新快照, got %+v", first)
	}

	if err := conn.WriteJSON(map[string]any{"type": TypeSubscribe, "payload": map[string]any{"only_arbitrage": true}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// heartbeat round-trip guarantees the subscription was processed
	if err := conn.WriteJSON(map[string]any{"type": TypeHeartbeat}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	var hb received
	if err := conn.ReadJSON(&hb); err != nil || hb.Type != TypeHeartbeat {
		t.Fatalf("expected heartbeat, got %+v %v", hb, err)
	}

	hub.Broadcast(pipeline.Summary{
		CycleID: "c1",
		Top: []arbitrage.Opportunity{
			{Key: "arb", IsArbitrage: true},
			{Key: "loss"},
		},
	})

	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if msg.Payload.CycleID != "c1" || len(msg.Payload.Top) != 1 || msg.Payload.Top[0].Key != "arb" {
		t.Fatalf("subscription filter not applied: %+v", msg.Payload)
	}

	if m := hub.Metrics(); m["total_connections"] != 1 || m["active_clients"] != 1 {
		t.Fatalf("unexpected metrics %v", m)
	}

	_ = conn.Close()
	waitClients(t, hub, 0)
}

func TestSubscriptionApply(t *testing.T) {
	summary := pipeline.Summary{Top: []arbitrage.Opportunity{
		{Key: "a", Sport: "tennis", IsArbitrage: true},
		{Key: "b", Sport: "hockey", IsArbitrage: true},
		{Key: "c", Sport: "Tennis"},
	}}

	if got := (Subscription{}).apply(summary); len(got.Top) != 3 {
		t.Fatalf("empty subscription should pass everything, got %d", len(got.Top))
	}
	got := Subscription{Sports: []string{"TENNIS"}}.apply(summary)
	if len(got.Top) != 2 {
		t.Fatalf("sport filter is case-insensitive, got %d", len(got.Top))
	}
	got = Subscription{Sports: []string{"tennis"}, OnlyArbitrage: true}.apply(summary)
	if len(got.Top) != 1 || got.Top[0].Key != "a" {
		t.Fatalf("unexpected %+v", got.Top)
	}
	if len(summary.Top) != 3 {
		t.Fatal("apply must not mutate the shared summary")
	}
}

func TestClientRepliesAfterHubClosedItAreDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	c := NewClient("late", nil, hub)
	hub.Register(c)
	waitClients(t, hub, 1)
	hub.Unregister(c)
	waitClients(t, hub, 0)

	// ReadPump may still be handling a frame that arrived before the close.
	c.handle(inbound{Type: TypeHeartbeat})
	c.handle(inbound{Type: "bogus"})
	if c.trySend(Message{Type: TypeCycle}) {
		t.Fatal("已关闭的客户端不应再接收消息")
	}

	// a second close from hub shutdown must be harmless
	c.close()
	if _, ok := <-c.send; ok {
		t.Fatal("send queue should be closed and drained")
	}
}
