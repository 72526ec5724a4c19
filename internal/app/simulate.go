package app

import (
	"context"
	"errors"
	"fmt"

	"odds-arb-watcher/internal/alerting"
	"odds-arb-watcher/internal/market"
	"odds-arb-watcher/internal/odds"
)

// SimulateOptions describe a synthetic two-way market.
type SimulateOptions struct {
	Game      string
	HomeOdds  int
	AwayOdds  int
	HomeBook  string
	AwayBook  string
	Threshold float64
}

// SimulateAlert 构造一个两边报价的虚拟盘口，走一遍分析与告警流程。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	if opts.Game == "" {
		opts.Game = "Simulated Away @ Simulated Home"
	}
	records := []odds.Record{
		simulatedRecord(opts.Game, "HOME", opts.HomeBook, opts.HomeOdds),
		simulatedRecord(opts.Game, "AWAY", opts.AwayBook, opts.AwayOdds),
	}
	opps := a.newAnalyzer().Analyze(market.Group(records))
	if len(opps) == 0 {
		return errors.New("模拟盘口无法定价，请检查 --home/--away")
	}

	threshold := a.Config.Alerting.ThresholdPct
	if opts.Threshold > 0 {
		threshold = opts.Threshold
	}
	dispatcher := alerting.NewDispatcher(alerting.DispatcherOptions{
		ThresholdPct: threshold,
		Channels:     a.Config.Alerting.Channels,
	}, notifier, nil, a.Logger)

	opp := opps[0]
	sent := dispatcher.Dispatch(ctx, "simulated", opps)
	a.Logger.Info().
		Float64("profit_pct", opp.ProfitPercent).
		Bool("is_arbitrage", opp.IsArbitrage).
		Int("sent", sent).
		Msg("模拟告警完成")
	if sent == 0 {
		return fmt.Errorf("未触发告警: profit %.2f%% (阈值 %.2f%%)", opp.ProfitPercent, threshold)
	}
	return nil
}

func simulatedRecord(game, outcome, book string, price int) odds.Record {
	return odds.Record{
		Quote: odds.Quote{
			OutcomeID:    "sim-" + outcome,
			Book:         book,
			AmericanOdds: odds.NewAmerican(price),
		},
		Info: odds.Info{
			MarketType:  "moneyline",
			DisplayName: "Moneyline",
			GameName:    game,
			Sport:       "simulated",
			OutcomeType: outcome,
		},
		Game: game,
	}
}
