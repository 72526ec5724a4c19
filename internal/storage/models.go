package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/pipeline"
)

// CycleRecord is one persisted refresh cycle.
type CycleRecord struct {
	ID            string
	StartedAt     time.Time
	CompletedAt   time.Time
	Status        string
	Envelopes     int
	Quotes        int
	Games         int
	Records       int
	Unresolved    int
	Markets       int
	Opportunities int
	Arbitrages    int
	CreatedAt     time.Time
}

// OpportunityRecord is one ranked market of a cycle. Legs holds the stake
// split as JSON.
type OpportunityRecord struct {
	ID               int64
	CycleID          string
	Rank             int
	MarketKey        string
	Game             string
	Market           string
	Spread           string
	Sport            string
	Live             bool
	TotalImpliedProb decimal.Decimal
	ProfitPct        decimal.Decimal
	TotalStake       decimal.Decimal
	GuaranteedProfit decimal.Decimal
	IsArbitrage      bool
	Legs             json.RawMessage
	CreatedAt        time.Time
}

// AlertRecord captures an emitted alert for cooldown and auditing.
type AlertRecord struct {
	ID           int64
	CycleID      string
	MarketKey    string
	ProfitPct    decimal.Decimal
	ThresholdPct decimal.Decimal
	Channels     []string
	CreatedAt    time.Time
}

// PruneResult counts the rows removed by PruneBefore.
type PruneResult struct {
	Cycles        int64
	Opportunities int64
	Alerts        int64
}

// NewCycleRecord summarizes a snapshot for persistence.
func NewCycleRecord(s *pipeline.Snapshot) CycleRecord {
	return CycleRecord{
		ID:            s.CycleID,
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
		Status:        s.Status,
		Envelopes:     s.Sources.Envelopes,
		Quotes:        s.Sources.Quotes,
		Games:         s.Sources.Games,
		Records:       len(s.Records),
		Unresolved:    s.Fusion.Unresolved,
		Markets:       s.Markets,
		Opportunities: len(s.Opportunities),
		Arbitrages:    s.Arbitrages(),
	}
}

// NewOpportunityRecord converts a ranked opportunity; rank starts at 1.
func NewOpportunityRecord(cycleID string, rank int, o arbitrage.Opportunity) (OpportunityRecord, error) {
	legs, err := json.Marshal(o.Stakes)
	if err != nil {
		return OpportunityRecord{}, fmt.Errorf("encode legs: %w", err)
	}
	return OpportunityRecord{
		CycleID:          cycleID,
		Rank:             rank,
		MarketKey:        o.Key,
		Game:             o.Game,
		Market:           o.Market,
		Spread:           o.Spread.Key(),
		Sport:            o.Sport,
		Live:             o.Live,
		TotalImpliedProb: decimal.NewFromFloat(o.TotalImpliedProbability).Round(8),
		ProfitPct:        decimal.NewFromFloat(o.ProfitPercent).Round(6),
		TotalStake:       decimal.NewFromFloat(o.TotalStake).Round(6),
		GuaranteedProfit: decimal.NewFromFloat(o.GuaranteedProfit).Round(6),
		IsArbitrage:      o.IsArbitrage,
		Legs:             legs,
	}, nil
}
