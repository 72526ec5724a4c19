package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"odds-arb-watcher/internal/arbitrage"
)

// Leg is one side of an alerted arbitrage.
type Leg struct {
	OutcomeType string
	Book        string
	Odds        string
	Stake       decimal.Decimal
	Payout      decimal.Decimal
	Deeplink    string
}

// Notification 封装告警上下文。
type Notification struct {
	CycleID          string
	DetectedAt       time.Time
	MarketKey        string
	Game             string
	Market           string
	Spread           string
	Sport            string
	Live             bool
	ProfitPct        decimal.Decimal
	ThresholdPct     decimal.Decimal
	TotalImpliedProb decimal.Decimal
	TotalStake       decimal.Decimal
	GuaranteedProfit decimal.Decimal
	Legs             []Leg
	Channels         []string
	AdditionalMsg    string
}

// NewNotification builds a notification from a ranked opportunity.
func NewNotification(cycleID string, opp arbitrage.Opportunity, threshold decimal.Decimal, channels []string) Notification {
	legs := make([]Leg, 0, len(opp.Stakes))
	for i, s := range opp.Stakes {
		leg := Leg{
			OutcomeType: s.OutcomeType,
			Book:        s.Book,
			Odds:        fmt.Sprintf("%+d", s.Odds),
			Stake:       decimal.NewFromFloat(s.Stake),
			Payout:      decimal.NewFromFloat(s.Payout),
		}
		if i < len(opp.BestOdds) {
			leg.Deeplink = opp.BestOdds[i].Record.Deeplink
		}
		legs = append(legs, leg)
	}

	return Notification{
		CycleID:          cycleID,
		DetectedAt:       time.Now().UTC(),
		MarketKey:        opp.Key,
		Game:             opp.Game,
		Market:           opp.Market,
		Spread:           opp.Spread.Key(),
		Sport:            opp.Sport,
		Live:             opp.Live,
		ProfitPct:        decimal.NewFromFloat(opp.ProfitPercent),
		ThresholdPct:     threshold,
		TotalImpliedProb: decimal.NewFromFloat(opp.TotalImpliedProbability),
		TotalStake:       decimal.NewFromFloat(opp.TotalStake),
		GuaranteedProfit: decimal.NewFromFloat(opp.GuaranteedProfit),
		Legs:             legs,
		Channels:         channels,
	}
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  n.chatID,
		"text":                     RenderMessage(note),
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
	}

	n.logger.Info().
		Str("market", note.MarketKey).
		Str("profit_pct", note.ProfitPct.StringFixed(2)).
		Msg("告警已发送 (Telegram)")
	return nil
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the alert.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	books := make([]string, 0, len(note.Legs))
	for _, l := range note.Legs {
		books = append(books, l.Book)
	}
	n.logger.Warn().
		Str("cycle_id", note.CycleID).
		Str("market", note.MarketKey).
		Str("profit_pct", note.ProfitPct.StringFixed(3)).
		Str("threshold_pct", note.ThresholdPct.StringFixed(3)).
		Strs("books", books).
		Msg("arbitrage detected")
	return nil
}

// MultiNotifier fans a notification out to every notifier and joins errors.
type MultiNotifier []Notifier

// Notify calls every notifier even when one fails.
func (m MultiNotifier) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RenderMessage formats the alert text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Arbitrage Alert]\n")
	phase := "Prematch"
	if note.Live {
		phase = "LIVE"
	}
	builder.WriteString(fmt.Sprintf("%s (%s, %s)\n", note.Game, note.Sport, phase))
	builder.WriteString(fmt.Sprintf("Market: %s [%s]\n", note.Market, note.Spread))
	builder.WriteString(fmt.Sprintf("Profit: %s%% (threshold %s%%)\n", note.ProfitPct.StringFixed(2), note.ThresholdPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Implied total: %s\n", note.TotalImpliedProb.StringFixed(4)))
	for _, l := range note.Legs {
		builder.WriteString(fmt.Sprintf("- %s @ %s %s: stake %s -> %s\n", l.OutcomeType, l.Book, l.Odds, l.Stake.StringFixed(2), l.Payout.StringFixed(2)))
	}
	builder.WriteString(fmt.Sprintf("Stake %s, profit %s\n", note.TotalStake.StringFixed(2), note.GuaranteedProfit.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Detected: %s UTC\n", note.DetectedAt.UTC().Format(time.RFC3339)))
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = MultiNotifier(nil)
)
