package fusion

import (
	"fmt"

	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/catalog"
	"odds-arb-watcher/internal/logging"
	"odds-arb-watcher/internal/odds"
)

// Resolver resolves outcome ids; *catalog.Index satisfies it.
type Resolver interface {
	Lookup(outcomeID string) catalog.Resolution
}

// Cache memoizes lookups for one fusion pass. A fresh Cache belongs to each
// refresh cycle so nothing resolved against an old catalog leaks forward.
type Cache struct {
	entries map[string]catalog.Resolution
	hits    int
}

// NewCache returns an empty per-pass cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]catalog.Resolution)}
}

func (c *Cache) resolve(r Resolver, outcomeID string) catalog.Resolution {
	if res, ok := c.entries[outcomeID]; ok {
		c.hits++
		return res
	}
	res := r.Lookup(outcomeID)
	c.entries[outcomeID] = res
	return res
}

// Len reports the number of distinct ids looked up.
func (c *Cache) Len() int { return len(c.entries) }

// Hits reports how many lookups were served from the cache.
func (c *Cache) Hits() int { return c.hits }

// Stats summarizes one fusion pass.
type Stats struct {
	Input      int `json:"input"`
	Fused      int `json:"fused"`
	MissingID  int `json:"missing_id"`
	Unresolved int `json:"unresolved"`
	Failed     int `json:"failed"`
	Lookups    int `json:"lookups"`
}

// Engine joins quotes with catalog metadata.
type Engine struct {
	logger zerolog.Logger
}

// New constructs an Engine.
func New(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "fusion").Logger()}
}

// WithCycle returns a copy whose log lines carry cycleID.
func (e *Engine) WithCycle(cycleID string) *Engine {
	if e == nil {
		return nil
	}
	return &Engine{logger: logging.WithCycle(e.logger, cycleID)}
}

// Fuse enriches every quote that resolves and drops the rest. A nil cache
// gets a fresh one.
func (e *Engine) Fuse(quotes []odds.Quote, resolver Resolver, cache *Cache) ([]odds.Record, Stats) {
	if cache == nil {
		cache = NewCache()
	}

	stats := Stats{Input: len(quotes)}
	records := make([]odds.Record, 0, len(quotes))

	for _, quote := range quotes {
		if quote.OutcomeID == "" {
			stats.MissingID++
			continue
		}

		record, ok, err := e.fuseOne(quote, resolver, cache)
		if err != nil {
			stats.Failed++
			e.logger.Error().Err(err).Str("outcome_id", quote.OutcomeID).Str("book", quote.Book).Msg("processing record failed")
			continue
		}
		if !ok {
			stats.Unresolved++
			continue
		}
		records = append(records, record)
	}

	stats.Fused = len(records)
	stats.Lookups = cache.Len()
	e.logger.Debug().
		Int("input", stats.Input).
		Int("fused", stats.Fused).
		Int("unresolved", stats.Unresolved).
		Int("cache_hits", cache.Hits()).
		Msg("fusion pass complete")
	return records, stats
}

func (e *Engine) fuseOne(quote odds.Quote, resolver Resolver, cache *Cache) (odds.Record, bool, error) {
	switch res := cache.resolve(resolver, quote.OutcomeID).(type) {
	case catalog.Resolved:
		record := odds.Record{Quote: quote, Info: res.Info}
		record.Game = e.GameIdentity(record)
		return record, true, nil
	case catalog.Unresolved:
		e.logger.Debug().Str("outcome_id", res.OutcomeID).Msg("no catalog match for outcome")
		return odds.Record{}, false, nil
	default:
		return odds.Record{}, false, fmt.Errorf("unexpected resolution %T", res)
	}
}

// GameIdentity is the join and grouping key of a game: the player pair when
// both players are known, else the catalog game name, else UnknownGame.
func GameIdentity(info odds.Info) (string, bool) {
	if info.Player1 != "" && info.Player2 != "" {
		return info.Player1 + " vs " + info.Player2, true
	}
	if info.GameName != "" {
		return info.GameName, true
	}
	return odds.UnknownGame, false
}

// GameIdentity resolves the identity of a record and reports the fields
// that fed it when it falls back to UnknownGame.
func (e *Engine) GameIdentity(record odds.Record) string {
	id, ok := GameIdentity(record.Info)
	if !ok {
		e.logger.Warn().
			Str("outcome_id", record.OutcomeID).
			Str("game_name", record.GameName).
			Str("home_team", record.HomeTeam).
			Str("away_team", record.AwayTeam).
			Str("player_1", record.Player1).
			Str("player_2", record.Player2).
			Str("sport", record.Sport).
			Str("display_name", record.DisplayName).
			Str("market_type", record.MarketType).
			Msg("unknown game identity")
	}
	return id
}
