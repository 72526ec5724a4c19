package catalog

import (
	"errors"
	"strings"

	"odds-arb-watcher/internal/odds"
)

// AltSuffix marks alternate-line outcome ids.
const AltSuffix = "_ALT"

// ErrNotFound is returned when no catalog outcome matches an id.
var ErrNotFound = errors.New("catalog: outcome not found")

// StripAltSuffix removes trailing alternate-line markers, case-insensitively.
func StripAltSuffix(id string) string {
	for len(id) >= len(AltSuffix) && strings.EqualFold(id[len(id)-len(AltSuffix):], AltSuffix) {
		id = id[:len(id)-len(AltSuffix)]
	}
	return id
}

// Resolution is the outcome of an index lookup: Resolved or Unresolved.
type Resolution interface {
	resolution()
}

// Resolved carries the metadata of the first matching catalog outcome.
type Resolved struct {
	Info odds.Info
}

// Unresolved means no catalog outcome matched; records carrying it must
// not reach enriched output.
type Unresolved struct {
	OutcomeID string
}

func (Resolved) resolution()   {}
func (Unresolved) resolution() {}

type location struct {
	game, market, outcome int
}

// Index answers outcome-id lookups against one catalog snapshot. It is
// read-only after construction.
type Index struct {
	games     []Game
	byOutcome map[string]location
	dates     map[string]string
}

// NewIndex builds an index. The first outcome, in catalog order, whose
// suffix-stripped id matches wins; later duplicates are shadowed. The first
// schedule entry listing a market supplies that market's date.
func NewIndex(games []Game, schedule *Schedule) *Index {
	ix := &Index{
		games:     games,
		byOutcome: make(map[string]location),
		dates:     make(map[string]string),
	}

	for gi, game := range games {
		for mi, market := range game.Markets {
			for oi, outcome := range market.Outcomes {
				if outcome.OutcomeID == "" {
					continue
				}
				key := StripAltSuffix(outcome.OutcomeID)
				if _, seen := ix.byOutcome[key]; seen {
					continue
				}
				ix.byOutcome[key] = location{game: gi, market: mi, outcome: oi}
			}
		}
	}

	for _, entry := range schedule.Games() {
		for _, marketID := range entry.MarketIDs {
			if _, seen := ix.dates[marketID]; seen {
				continue
			}
			ix.dates[marketID] = entry.GameDate
		}
	}

	return ix
}

// Games reports the number of catalog games indexed.
func (ix *Index) Games() int { return len(ix.games) }

// Outcomes reports the number of distinct normalized outcome ids.
func (ix *Index) Outcomes() int { return len(ix.byOutcome) }

// Lookup resolves an outcome id.
func (ix *Index) Lookup(outcomeID string) Resolution {
	loc, ok := ix.byOutcome[StripAltSuffix(outcomeID)]
	if !ok || outcomeID == "" {
		return Unresolved{OutcomeID: outcomeID}
	}

	game := ix.games[loc.game]
	market := game.Markets[loc.market]
	outcome := market.Outcomes[loc.outcome]

	info := odds.Info{
		MarketID:    market.ID,
		MarketType:  market.MarketType,
		DisplayName: market.DisplayName,
		GameName:    game.GameName,
		HomeTeam:    game.HomeTeam,
		AwayTeam:    game.AwayTeam,
		Sport:       game.Sport,
		Player1:     game.Player1,
		Player2:     game.Player2,
		OutcomeType: outcome.OutcomeType,
	}
	if info.MarketID != "" {
		if date, ok := ix.dates[info.MarketID]; ok {
			info.ScheduledDate = date
		}
	}
	return Resolved{Info: info}
}

// Find resolves a single id against games without a schedule.
func Find(games []Game, outcomeID string) (odds.Info, error) {
	switch res := NewIndex(games, nil).Lookup(outcomeID).(type) {
	case Resolved:
		return res.Info, nil
	default:
		return odds.Info{}, ErrNotFound
	}
}
