package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odds-arb-watcher/internal/odds"
)

func ev(v float64) *float64 { return &v }

func sample() []odds.Record {
	return []odds.Record{
		{
			Quote: odds.Quote{OutcomeID: "1", Book: "DRAFTKINGS", Live: true, ExpectedValue: ev(0.031), AmericanOdds: odds.NewAmerican(120), Spread: odds.NewSpread(-3.5)},
			Info:  odds.Info{GameName: "Lakers @ Celtics", HomeTeam: "Celtics", AwayTeam: "Lakers", Sport: "basketball", DisplayName: "Spread"},
			Game:  "Lakers @ Celtics",
		},
		{
			Quote: odds.Quote{OutcomeID: "2", Book: "FANDUEL", ExpectedValue: ev(0.012), AmericanOdds: odds.NewAmerican(-140)},
			Info:  odds.Info{Player1: "Alcaraz", Player2: "Sinner", Sport: "tennis", MarketType: "moneyline"},
			Game:  "Alcaraz vs Sinner",
		},
		{
			Quote: odds.Quote{OutcomeID: "3", Book: "PINNACLE", ExpectedValue: ev(0.2)},
			Info:  odds.Info{GameName: "Hidden", Sport: "soccer"},
			Game:  "Hidden",
		},
		{
			Quote: odds.Quote{OutcomeID: "4", Book: "ESPN", AmericanOdds: odds.NewAmerican(300)},
			Info:  odds.Info{GameName: "Yankees @ Mets", Sport: "baseball"},
			Game:  "Yankees @ Mets",
		},
	}
}

func ids(records []odds.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.OutcomeID)
	}
	return out
}

func TestAllowListAppliesFirst(t *testing.T) {
	f := New(nil)
	assert.Equal(t, []string{"1", "2", "4"}, ids(f.Apply(sample(), Criteria{})))
	assert.Equal(t, []string{"3"}, ids(New([]string{"pinnacle"}).Apply(sample(), Criteria{})))
}

func TestCriteria(t *testing.T) {
	f := New(nil)
	live := true
	prematch := false

	assert.Equal(t, []string{"2"}, ids(f.Apply(sample(), Criteria{Book: "FANDUEL"})))
	assert.Equal(t, []string{"4"}, ids(f.Apply(sample(), Criteria{Sport: "baseball"})))
	assert.Equal(t, []string{"1"}, ids(f.Apply(sample(), Criteria{MinEV: ev(2)})))
	assert.Equal(t, []string{"1", "2"}, ids(f.Apply(sample(), Criteria{MinEV: ev(0)})))
	assert.Equal(t, []string{"1"}, ids(f.Apply(sample(), Criteria{Live: &live})))
	assert.Equal(t, []string{"2", "4"}, ids(f.Apply(sample(), Criteria{Live: &prematch})))
	assert.Equal(t, []string{"2"}, ids(f.Apply(sample(), Criteria{Search: "  SINNER "})))
	assert.Equal(t, []string{"1"}, ids(f.Apply(sample(), Criteria{Search: "celt"})))
	assert.Empty(t, f.Apply(sample(), Criteria{Search: "nobody"}))
}

func TestSortColumns(t *testing.T) {
	f := New(nil)

	assert.Equal(t, []string{"1", "2", "4"}, ids(f.Apply(sample(), Criteria{SortBy: ColumnEV, Desc: true})))
	assert.Equal(t, []string{"4", "2", "1"}, ids(f.Apply(sample(), Criteria{SortBy: ColumnEV})))
	assert.Equal(t, []string{"2", "1", "4"}, ids(f.Apply(sample(), Criteria{SortBy: ColumnOdds})))
	assert.Equal(t, []string{"1", "2", "4"}, ids(f.Apply(sample(), Criteria{SortBy: ColumnSpread})))
	assert.Equal(t, []string{"1", "2", "4"}, ids(f.Apply(sample(), Criteria{SortBy: ColumnStatus, Desc: true})))
	assert.Equal(t, []string{"2", "1", "4"}, ids(f.Apply(sample(), Criteria{SortBy: ColumnGame})))
	assert.Equal(t, []string{"4", "1", "2"}, ids(f.Apply(sample(), Criteria{SortBy: ColumnMarket})))
}

func TestSortByTimeIsStable(t *testing.T) {
	records := sample()[:2]
	records[0].LastUpdated = odds.Timestamp{Time: time.Unix(200, 0), Valid: true}
	records[1].LastUpdated = odds.Timestamp{Time: time.Unix(100, 0), Valid: true}
	Sort(records, ColumnTime, false)
	assert.Equal(t, []string{"2", "1"}, ids(records))

	same := sample()
	Sort(same, ColumnSport, false)
	Sort(same, ColumnBook, false)
	assert.Equal(t, "DRAFTKINGS", same[0].Book)
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn(" EV ")
	require.NoError(t, err)
	assert.Equal(t, ColumnEV, c)

	c, err = ParseColumn("")
	require.NoError(t, err)
	assert.Equal(t, Column(""), c)

	_, err = ParseColumn("chart")
	assert.Error(t, err)
}

func TestCountsAndOptions(t *testing.T) {
	records := sample()
	assert.Equal(t, Counts{Total: 4, Live: 1, Prematch: 3}, Count(records))

	opts := OptionsOf(records)
	assert.Equal(t, []string{"DRAFTKINGS", "ESPN", "FANDUEL", "PINNACLE"}, opts.Books)
	assert.Equal(t, []string{"baseball", "basketball", "soccer", "tennis"}, opts.Sports)
}
