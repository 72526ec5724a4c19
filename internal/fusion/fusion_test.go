package fusion

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odds-arb-watcher/internal/catalog"
	"odds-arb-watcher/internal/odds"
)

type countingResolver struct {
	known map[string]odds.Info
	calls map[string]int
}

func (r *countingResolver) Lookup(id string) catalog.Resolution {
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[id]++
	if info, ok := r.known[catalog.StripAltSuffix(id)]; ok {
		return catalog.Resolved{Info: info}
	}
	return catalog.Unresolved{OutcomeID: id}
}

type brokenResolver struct{}

type bogus struct{ catalog.Resolved }

func (brokenResolver) Lookup(string) catalog.Resolution { return bogus{} }

func quote(id, book string, price int) odds.Quote {
	return odds.Quote{OutcomeID: id, Book: book, AmericanOdds: odds.NewAmerican(price)}
}

func TestFuseEnrichesAndMemoizes(t *testing.T) {
	resolver := &countingResolver{known: map[string]odds.Info{
		"O1": {MarketID: "m1", GameName: "A @ B", OutcomeType: "HOME", Sport: "basketball"},
	}}
	quotes := []odds.Quote{
		quote("O1", "DRAFTKINGS", 120),
		quote("O1", "FANDUEL", 125),
		quote("O1_ALT", "BETMGM", 110),
	}

	cache := NewCache()
	records, stats := New(zerolog.Nop()).Fuse(quotes, resolver, cache)
	require.Len(t, records, 3)
	assert.Equal(t, 1, resolver.calls["O1"])
	assert.Equal(t, 1, resolver.calls["O1_ALT"])
	assert.Equal(t, 1, cache.Hits())
	assert.Equal(t, 2, stats.Lookups)

	assert.Equal(t, "HOME", records[0].OutcomeType)
	assert.Equal(t, "A @ B", records[0].Game)
	assert.Equal(t, "FANDUEL", records[1].Book)
}

func TestFuseDropsUnresolvedAndMissingIDs(t *testing.T) {
	resolver := &countingResolver{known: map[string]odds.Info{"KNOWN": {GameName: "G"}}}
	quotes := []odds.Quote{
		quote("", "DRAFTKINGS", 100),
		quote("UNKNOWN", "DRAFTKINGS", 100),
		quote("KNOWN", "DRAFTKINGS", 100),
	}

	records, stats := New(zerolog.Nop()).Fuse(quotes, resolver, nil)
	require.Len(t, records, 1)
	assert.Equal(t, "KNOWN", records[0].OutcomeID)
	assert.Equal(t, 1, stats.MissingID)
	assert.Equal(t, 1, stats.Unresolved)
	assert.Zero(t, resolver.calls[""])
	for _, r := range records {
		assert.NotEqual(t, "UNKNOWN", r.OutcomeID)
	}
}

func TestFuseSkipsBadRecordsWithoutAborting(t *testing.T) {
	records, stats := New(zerolog.Nop()).Fuse([]odds.Quote{quote("A", "X", 100), quote("B", "Y", 100)}, brokenResolver{}, nil)
	assert.Empty(t, records)
	assert.Equal(t, 2, stats.Failed)
}

func TestFuseWithRealIndex(t *testing.T) {
	games, _, err := catalog.DecodeGames([]byte(`{"body":{"prematch_games":[{"player_1":"Alcaraz","player_2":"Sinner","markets":{"m":{"market_type":"moneyline","outcomes":{"a":{"outcome_id":"P1","outcome_type":"PLAYER_1"}}}}}]}}`))
	require.NoError(t, err)

	records, _ := New(zerolog.Nop()).Fuse([]odds.Quote{quote("P1_ALT", "ESPN", -150)}, catalog.NewIndex(games, nil), nil)
	require.Len(t, records, 1)
	assert.Equal(t, "Alcaraz vs Sinner", records[0].Game)
	assert.Equal(t, "PLAYER_1", records[0].OutcomeType)
}

func TestGameIdentity(t *testing.T) {
	id, ok := GameIdentity(odds.Info{Player1: "A", Player2: "B", GameName: "ignored"})
	assert.True(t, ok)
	assert.Equal(t, "A vs B", id)

	id, ok = GameIdentity(odds.Info{Player1: "A", GameName: "Game Name", HomeTeam: "H", AwayTeam: "W"})
	assert.True(t, ok)
	assert.Equal(t, "Game Name", id)

	id, ok = GameIdentity(odds.Info{HomeTeam: "H", AwayTeam: "W"})
	assert.False(t, ok)
	assert.Equal(t, odds.UnknownGame, id)
}
