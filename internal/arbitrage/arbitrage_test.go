package arbitrage

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odds-arb-watcher/internal/market"
	"odds-arb-watcher/internal/odds"
)

func priced(game, outcome, book string, price int) odds.Record {
	return odds.Record{
		Quote: odds.Quote{OutcomeID: game + outcome + book, Book: book, AmericanOdds: odds.NewAmerican(price)},
		Info:  odds.Info{DisplayName: "Moneyline", OutcomeType: outcome, Sport: "basketball"},
		Game:  game,
	}
}

func unpriced(game, outcome, book string) odds.Record {
	r := priced(game, outcome, book, 0)
	r.AmericanOdds = odds.American{}
	return r
}

func analyze(records ...odds.Record) []Opportunity {
	return New(Options{}, zerolog.Nop()).Analyze(market.Group(records))
}

func TestTwoBookArbitrage(t *testing.T) {
	opps := analyze(
		priced("A @ B", "HOME", "DRAFTKINGS", 120),
		priced("A @ B", "AWAY", "FANDUEL", 120),
	)
	require.Len(t, opps, 1)

	o := opps[0]
	assert.InDelta(t, 2*100.0/220.0, o.TotalImpliedProbability, 1e-9)
	assert.True(t, o.IsArbitrage)
	assert.InDelta(t, 10.0, o.ProfitPercent, 1e-9)
	assert.InDelta(t, o.TotalImpliedProbability*100, o.TotalStake, 1e-9)
	assert.InDelta(t, 100-o.TotalStake, o.GuaranteedProfit, 1e-9)
	assert.Equal(t, []string{"DRAFTKINGS", "FANDUEL"}, o.Books())

	// every leg pays the same in a true arbitrage
	require.Len(t, o.Stakes, 2)
	assert.InDelta(t, o.Stakes[0].Payout, o.Stakes[1].Payout, 1e-9)
	assert.Equal(t, 120, o.Stakes[1].Odds)
}

func TestSameSideOnlyYieldsNothing(t *testing.T) {
	opps := analyze(
		priced("A @ B", "HOME", "DRAFTKINGS", 120),
		priced("A @ B", "HOME", "FANDUEL", 120),
	)
	assert.Empty(t, opps)
}

func TestPlusOneFiftyMinusOneTwenty(t *testing.T) {
	opps := analyze(
		priced("G", "HOME", "BETMGM", 150),
		priced("G", "AWAY", "CAESARS", -120),
	)
	require.Len(t, opps, 1)
	assert.InDelta(t, 0.4+120.0/220.0, opps[0].TotalImpliedProbability, 1e-9)
	assert.InDelta(t, 5.77, opps[0].ProfitPercent, 0.01)
	assert.True(t, opps[0].IsArbitrage)
}

func TestSinglePricedBucketIsExcluded(t *testing.T) {
	opps := analyze(
		priced("G", "HOME", "BETMGM", 150),
		unpriced("G", "AWAY", "CAESARS"),
		unpriced("G", "AWAY", "ESPN"),
	)
	assert.Empty(t, opps)
}

func TestBestPickPrefersLowestImpliedProbability(t *testing.T) {
	markets := market.Group([]odds.Record{
		priced("G", "HOME", "DRAFTKINGS", -110),
		unpriced("G", "HOME", "ESPN"),
		priced("G", "HOME", "FANDUEL", 105),
		priced("G", "HOME", "BETMGM", 105),
	})
	require.Len(t, markets, 1)

	pick, ok := BestPick(markets[0].Bucket("HOME"))
	require.True(t, ok)
	assert.Equal(t, "FANDUEL", pick.Record.Book)
	assert.InDelta(t, 100.0/205.0, pick.ImpliedProbability, 1e-9)
}

func TestRankingIncludesLosingMarkets(t *testing.T) {
	opps := analyze(
		priced("Loss", "HOME", "DRAFTKINGS", -150),
		priced("Loss", "AWAY", "FANDUEL", -150),
		priced("Win", "HOME", "DRAFTKINGS", 130),
		priced("Win", "AWAY", "FANDUEL", 110),
		priced("Even", "HOME", "DRAFTKINGS", 100),
		priced("Even", "AWAY", "FANDUEL", 100),
	)
	require.Len(t, opps, 3)
	assert.Equal(t, []string{"Win", "Even", "Loss"}, []string{opps[0].Game, opps[1].Game, opps[2].Game})
	assert.Less(t, opps[2].ProfitPercent, 0.0)
	assert.False(t, opps[2].IsArbitrage)
	assert.False(t, opps[1].IsArbitrage)
	assert.Len(t, OnlyArbitrage(opps), 1)
}

func TestCustomWager(t *testing.T) {
	a := New(Options{TotalWager: 250}, zerolog.Nop())
	opps := a.Analyze(market.Group([]odds.Record{
		priced("G", "HOME", "X", 100),
		priced("G", "AWAY", "Y", 100),
	}))
	require.Len(t, opps, 1)
	assert.InDelta(t, 250.0, opps[0].TotalStake, 1e-9)
	assert.InDelta(t, 0.0, opps[0].GuaranteedProfit, 1e-9)
}
