package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/oddsmath"
	"odds-arb-watcher/internal/storage"
)

func renderOpportunities(out io.Writer, opps []arbitrage.Opportunity) error {
	table := tablewriter.NewWriter(out)
	table.Header("#", "Game", "Market", "Spread", "Sport", "Implied", "Profit%", "Legs", "Arb")
	for i, o := range opps {
		if err := table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(o.Game, 40),
			o.Market,
			o.Spread.String(),
			o.Sport,
			fmt.Sprintf("%.4f", o.TotalImpliedProbability),
			fmt.Sprintf("%.2f", o.ProfitPercent),
			formatStakes(o.Stakes),
			yesNo(o.IsArbitrage),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderStoredOpportunities(out io.Writer, rows []storage.OpportunityRecord) error {
	table := tablewriter.NewWriter(out)
	table.Header("Time (UTC)", "Cycle", "#", "Game", "Market", "Spread", "Profit%", "Stake", "Arb")
	for _, r := range rows {
		if err := table.Append(
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			shortID(r.CycleID),
			fmt.Sprintf("%d", r.Rank),
			truncate(r.Game, 40),
			r.Market,
			r.Spread,
			formatDecimal(r.ProfitPct, 2),
			formatDecimal(r.TotalStake, 2),
			yesNo(r.IsArbitrage),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderAlerts(out io.Writer, rows []storage.AlertRecord) error {
	table := tablewriter.NewWriter(out)
	table.Header("Time (UTC)", "Cycle", "Market", "Profit%", "Threshold%", "Channels")
	for _, r := range rows {
		if err := table.Append(
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			shortID(r.CycleID),
			truncate(r.MarketKey, 60),
			formatDecimal(r.ProfitPct, 2),
			formatDecimal(r.ThresholdPct, 2),
			strings.Join(r.Channels, ","),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatStakes(stakes []arbitrage.Stake) string {
	parts := make([]string, 0, len(stakes))
	for _, s := range stakes {
		price := fmt.Sprintf("%+d", s.Odds)
		if dec, err := oddsmath.ToDecimal(s.Odds); err == nil {
			price += fmt.Sprintf(" (%.2f)", dec)
		}
		parts = append(parts, fmt.Sprintf("%s %s %s $%.2f", s.OutcomeType, s.Book, price, s.Stake))
	}
	return strings.Join(parts, " | ")
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
