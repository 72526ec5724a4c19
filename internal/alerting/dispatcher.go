package alerting

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/logging"
	"odds-arb-watcher/internal/storage"
)

// DispatcherOptions configure alert gating.
type DispatcherOptions struct {
	ThresholdPct float64
	Cooldown     time.Duration
	Channels     []string
}

// Dispatcher alerts on arbitrages above the threshold, at most once per
// market per cooldown. The cooldown is tracked in memory and, when a store
// is present, also checked against persisted alerts.
type Dispatcher struct {
	opts     DispatcherOptions
	notifier Notifier
	store    storage.AlertStore
	logger   zerolog.Logger

	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewDispatcher builds a Dispatcher; store may be nil.
func NewDispatcher(opts DispatcherOptions, notifier Notifier, store storage.AlertStore, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		opts:     opts,
		notifier: notifier,
		store:    store,
		logger:   logger.With().Str("component", "alert_dispatcher").Logger(),
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Dispatch notifies for every qualifying opportunity and returns how many
// alerts were sent.
func (d *Dispatcher) Dispatch(ctx context.Context, cycleID string, opps []arbitrage.Opportunity) int {
	logger := logging.WithCycle(d.logger, cycleID)
	threshold := decimal.NewFromFloat(d.opts.ThresholdPct)
	sent := 0
	for _, opp := range opps {
		if !opp.IsArbitrage || opp.ProfitPercent < d.opts.ThresholdPct {
			continue
		}
		if d.coolingDown(ctx, logger, opp.Key) {
			continue
		}

		note := NewNotification(cycleID, opp, threshold, d.opts.Channels)
		if err := d.notifier.Notify(ctx, note); err != nil {
			logger.Error().Err(err).Str("market", opp.Key).Msg("send alert failed")
			continue
		}
		d.mark(opp.Key)
		sent++

		if d.store != nil {
			rec := storage.AlertRecord{
				CycleID:      cycleID,
				MarketKey:    opp.Key,
				ProfitPct:    note.ProfitPct.Round(6),
				ThresholdPct: threshold,
				Channels:     d.opts.Channels,
			}
			if _, err := d.store.InsertAlert(ctx, rec); err != nil && !errors.Is(err, storage.ErrNotConfigured) {
				logger.Warn().Err(err).Str("market", opp.Key).Msg("persist alert failed")
			}
		}
	}
	return sent
}

func (d *Dispatcher) coolingDown(ctx context.Context, logger zerolog.Logger, key string) bool {
	if d.opts.Cooldown <= 0 {
		return false
	}
	now := d.now()

	d.mu.Lock()
	last, ok := d.last[key]
	d.mu.Unlock()
	if ok && now.Sub(last) < d.opts.Cooldown {
		return true
	}

	if d.store == nil {
		return false
	}
	persisted, found, err := d.store.LastAlertAt(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) {
			logger.Warn().Err(err).Str("market", key).Msg("load last alert failed")
		}
		return false
	}
	return found && now.Sub(persisted) < d.opts.Cooldown
}

func (d *Dispatcher) mark(key string) {
	d.mu.Lock()
	d.last[key] = d.now()
	d.mu.Unlock()
}
