package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/odds"
	"odds-arb-watcher/internal/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func sampleOpportunity(key string, profit float64, arb bool) arbitrage.Opportunity {
	return arbitrage.Opportunity{
		Key:                     key,
		Game:                    "Lakers @ Celtics",
		Market:                  "Moneyline",
		Sport:                   "basketball",
		TotalImpliedProbability: 0.909,
		ProfitPercent:           profit,
		TotalStake:              90.9,
		GuaranteedProfit:        9.1,
		IsArbitrage:             arb,
		BestOdds: []arbitrage.Pick{
			{OutcomeType: "HOME", Record: odds.Record{Quote: odds.Quote{Book: "DRAFTKINGS", Deeplink: "https://dk/bet"}}},
			{OutcomeType: "AWAY", Record: odds.Record{Quote: odds.Quote{Book: "FANDUEL"}}},
		},
		Stakes: []arbitrage.Stake{
			{OutcomeType: "HOME", Stake: 45.45, Payout: 100, Book: "DRAFTKINGS", Odds: 120},
			{OutcomeType: "AWAY", Stake: 45.45, Payout: 100, Book: "FANDUEL", Odds: 120},
		},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bottoken/sendMessage") {
			t.Errorf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	note := NewNotification("c1", sampleOpportunity("k", 10, true), decimal.NewFromInt(1), []string{"telegram"})

	if err := notifier.Notify(context.Background(), note); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}
	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	text, _ := received["text"].(string)
	if !strings.Contains(text, "Profit: 10.00%") || !strings.Contains(text, "HOME @ DRAFTKINGS +120") {
		t.Fatalf("unexpected text: %s", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	note := NewNotification("c1", sampleOpportunity("k", 10, true), decimal.NewFromInt(1), nil)

	if err := notifier.Notify(context.Background(), note); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestNewNotification(t *testing.T) {
	note := NewNotification("c1", sampleOpportunity("k", 10, true), decimal.NewFromInt(2), nil)
	if len(note.Legs) != 2 || note.Legs[0].Deeplink != "https://dk/bet" || note.Legs[1].Odds != "+120" {
		t.Fatalf("unexpected legs %+v", note.Legs)
	}
	if note.Spread != odds.NoSpread {
		t.Fatalf("spread should render as %s, got %s", odds.NoSpread, note.Spread)
	}
}

type recordingNotifier struct {
	notes []Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	if r.err != nil {
		return r.err
	}
	r.notes = append(r.notes, n)
	return nil
}

type memoryAlertStore struct {
	inserted []storage.AlertRecord
	last     map[string]time.Time
}

func (m *memoryAlertStore) InsertAlert(_ context.Context, a storage.AlertRecord) (storage.AlertRecord, error) {
	m.inserted = append(m.inserted, a)
	return a, nil
}

func (m *memoryAlertStore) LastAlertAt(_ context.Context, key string) (time.Time, bool, error) {
	t, ok := m.last[key]
	return t, ok, nil
}

func (m *memoryAlertStore) ListRecentAlerts(context.Context, int) ([]storage.AlertRecord, error) {
	return m.inserted, nil
}

func TestDispatcherThresholdAndCooldown(t *testing.T) {
	rec := &recordingNotifier{}
	store := &memoryAlertStore{last: map[string]time.Time{}}
	d := NewDispatcher(DispatcherOptions{ThresholdPct: 2, Cooldown: time.Minute, Channels: []string{"log"}}, rec, store, testLogger())
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	opps := []arbitrage.Opportunity{
		sampleOpportunity("big", 5, true),
		sampleOpportunity("small", 1, true),
		sampleOpportunity("loss", 5, false),
	}

	if sent := d.Dispatch(context.Background(), "c1", opps); sent != 1 {
		t.Fatalf("只应发送一条告警, 实际 %d", sent)
	}
	if rec.notes[0].MarketKey != "big" || len(store.inserted) != 1 || store.inserted[0].CycleID != "c1" {
		t.Fatalf("unexpected dispatch %+v %+v", rec.notes, store.inserted)
	}

	now = now.Add(30 * time.Second)
	if sent := d.Dispatch(context.Background(), "c2", opps); sent != 0 {
		t.Fatalf("冷却期内不应重复告警, 实际 %d", sent)
	}

	now = now.Add(time.Minute)
	if sent := d.Dispatch(context.Background(), "c3", opps); sent != 1 {
		t.Fatalf("冷却期后应再次告警, 实际 %d", sent)
	}
}

func TestDispatcherHonoursPersistedCooldown(t *testing.T) {
	rec := &recordingNotifier{}
	now := time.Now()
	store := &memoryAlertStore{last: map[string]time.Time{"big": now.Add(-10 * time.Second)}}
	d := NewDispatcher(DispatcherOptions{ThresholdPct: 0, Cooldown: time.Minute}, rec, store, testLogger())

	if sent := d.Dispatch(context.Background(), "c1", []arbitrage.Opportunity{sampleOpportunity("big", 5, true)}); sent != 0 {
		t.Fatalf("persisted alert should suppress, sent %d", sent)
	}
}

func TestDispatcherNotifierFailure(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("down")}
	d := NewDispatcher(DispatcherOptions{}, rec, nil, testLogger())
	if sent := d.Dispatch(context.Background(), "c1", []arbitrage.Opportunity{sampleOpportunity("big", 5, true)}); sent != 0 {
		t.Fatalf("failed sends must not count, got %d", sent)
	}
}

func TestMultiNotifierJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("boom")}
	m := MultiNotifier{bad, ok, NewLogNotifier(testLogger())}

	err := m.Notify(context.Background(), Notification{MarketKey: "k"})
	if err == nil || len(ok.notes) != 1 {
		t.Fatalf("every notifier should run and errors join: %v", err)
	}
}
