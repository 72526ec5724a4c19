package arbitrage

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/logging"
	"odds-arb-watcher/internal/market"
	"odds-arb-watcher/internal/odds"
	"odds-arb-watcher/internal/oddsmath"
)

// DefaultTotalWager is the reference amount stakes are split from.
const DefaultTotalWager = 100.0

// Pick is the best priced record of one outcome-type bucket.
type Pick struct {
	OutcomeType        string      `json:"outcome_type"`
	Record             odds.Record `json:"record"`
	ImpliedProbability float64     `json:"implied_probability"`
}

// Stake is the share of the reference wager placed on one pick.
type Stake struct {
	OutcomeType string  `json:"outcome_type"`
	Stake       float64 `json:"stake"`
	Payout      float64 `json:"payout"`
	Book        string  `json:"book"`
	Odds        int     `json:"odds"`
}

// Opportunity is a market annotated with its best prices and stake split.
// GuaranteedProfit is the payout of the first pick minus TotalStake; it only
// holds for every outcome when IsArbitrage is true.
type Opportunity struct {
	Key                     string      `json:"key"`
	Game                    string      `json:"game"`
	Market                  string      `json:"market"`
	Spread                  odds.Spread `json:"spread"`
	Sport                   string      `json:"sport"`
	Live                    bool        `json:"live"`
	BestOdds                []Pick      `json:"best_odds"`
	TotalImpliedProbability float64     `json:"total_implied_probability"`
	ProfitPercent           float64     `json:"profit_percent"`
	Stakes                  []Stake     `json:"stakes"`
	TotalStake              float64     `json:"total_stake"`
	GuaranteedProfit        float64     `json:"guaranteed_profit"`
	IsArbitrage             bool        `json:"is_arbitrage"`
}

// Best returns the pick for an outcome type.
func (o Opportunity) Best(outcomeType string) (Pick, bool) {
	for _, p := range o.BestOdds {
		if p.OutcomeType == outcomeType {
			return p, true
		}
	}
	return Pick{}, false
}

// Books lists the books of the picks in bucket order.
func (o Opportunity) Books() []string {
	books := make([]string, 0, len(o.BestOdds))
	for _, p := range o.BestOdds {
		books = append(books, p.Record.Book)
	}
	return books
}

// Options configures the Analyzer.
type Options struct {
	TotalWager float64
}

// Analyzer computes and ranks opportunities. It holds no state between calls.
type Analyzer struct {
	wager  float64
	logger zerolog.Logger
}

// New constructs an Analyzer; a non-positive wager falls back to the default.
func New(opts Options, logger zerolog.Logger) *Analyzer {
	wager := opts.TotalWager
	if wager <= 0 {
		wager = DefaultTotalWager
	}
	return &Analyzer{
		wager:  wager,
		logger: logger.With().Str("component", "arbitrage").Logger(),
	}
}

// WithCycle returns a copy whose log lines carry cycleID.
func (a *Analyzer) WithCycle(cycleID string) *Analyzer {
	if a == nil {
		return nil
	}
	c := *a
	c.logger = logging.WithCycle(a.logger, cycleID)
	return &c
}

// Analyze evaluates every market with at least two priced outcome types and
// returns the opportunities sorted by profit percent, best first.
func (a *Analyzer) Analyze(markets []*market.Market) []Opportunity {
	out := make([]Opportunity, 0, len(markets))
	for _, m := range market.Candidates(markets) {
		opp, ok, err := a.Evaluate(m)
		if err != nil {
			a.logger.Warn().Err(err).Str("market", m.Key.String()).Msg("evaluate market failed")
			continue
		}
		if ok {
			out = append(out, opp)
		}
	}
	Rank(out)
	return out
}

// Evaluate computes the opportunity of one market. ok is false when fewer
// than two buckets carry a usable price.
func (a *Analyzer) Evaluate(m *market.Market) (Opportunity, bool, error) {
	picks := make([]Pick, 0, len(m.Buckets))
	for _, b := range m.Buckets {
		if pick, ok := BestPick(b); ok {
			picks = append(picks, pick)
		}
	}
	if len(picks) < 2 {
		return Opportunity{}, false, nil
	}

	total := 0.0
	for _, p := range picks {
		total += p.ImpliedProbability
	}
	profitPct, err := oddsmath.ProfitPercent(total)
	if err != nil {
		return Opportunity{}, false, fmt.Errorf("profit percent: %w", err)
	}

	stakes := make([]Stake, 0, len(picks))
	totalStake := 0.0
	for _, p := range picks {
		price, _ := p.Record.AmericanOdds.Value()
		stake := a.wager * p.ImpliedProbability
		payout, err := oddsmath.Payout(stake, price)
		if err != nil {
			return Opportunity{}, false, fmt.Errorf("payout for %s: %w", p.OutcomeType, err)
		}
		stakes = append(stakes, Stake{
			OutcomeType: p.OutcomeType,
			Stake:       stake,
			Payout:      payout,
			Book:        p.Record.Book,
			Odds:        price,
		})
		totalStake += stake
	}

	return Opportunity{
		Key:                     m.Key.String(),
		Game:                    m.Game,
		Market:                  m.Label,
		Spread:                  m.Spread,
		Sport:                   m.Sport,
		Live:                    m.Live,
		BestOdds:                picks,
		TotalImpliedProbability: total,
		ProfitPercent:           profitPct,
		Stakes:                  stakes,
		TotalStake:              totalStake,
		GuaranteedProfit:        stakes[0].Payout - totalStake,
		IsArbitrage:             total < 1,
	}, true, nil
}

// BestPick selects the record with the lowest implied probability in a
// bucket. Records without a usable price are skipped; ties keep the
// earliest record.
func BestPick(b *market.Bucket) (Pick, bool) {
	var (
		best  Pick
		found bool
	)
	for _, r := range b.Records {
		price, ok := r.AmericanOdds.Value()
		if !ok {
			continue
		}
		p, err := oddsmath.ImpliedProbability(price)
		if err != nil {
			continue
		}
		if !found || p < best.ImpliedProbability {
			best = Pick{OutcomeType: b.OutcomeType, Record: r, ImpliedProbability: p}
			found = true
		}
	}
	return best, found
}

// Rank sorts opportunities by profit percent, highest first. Equal profits
// keep their relative order.
func Rank(opps []Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].ProfitPercent > opps[j].ProfitPercent
	})
}

// OnlyArbitrage keeps the opportunities whose implied total is below one.
func OnlyArbitrage(opps []Opportunity) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for _, o := range opps {
		if o.IsArbitrage {
			out = append(out, o)
		}
	}
	return out
}
