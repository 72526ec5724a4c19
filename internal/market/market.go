package market

import (
	"odds-arb-watcher/internal/odds"
)

// Key identifies a market independent of book.
type Key struct {
	Game   string
	Market string
	Spread string
}

// String renders the key as game_market_spread.
func (k Key) String() string {
	return k.Game + "_" + k.Market + "_" + k.Spread
}

// KeyOf derives the market key of a fused record.
func KeyOf(r odds.Record) Key {
	return Key{Game: r.Game, Market: r.MarketLabel(), Spread: r.Spread.Key()}
}

// Bucket holds every record quoting one outcome type, in arrival order.
type Bucket struct {
	OutcomeType string        `json:"outcome_type"`
	Records     []odds.Record `json:"records"`
}

// Market is one bettable proposition with its quotes split by outcome type.
// Descriptive fields come from the first record seen for the market.
type Market struct {
	Key         Key         `json:"-"`
	Game        string      `json:"game"`
	Label       string      `json:"market"`
	Spread      odds.Spread `json:"spread"`
	Sport       string      `json:"sport"`
	Live        bool        `json:"live"`
	Buckets     []*Bucket   `json:"buckets"`
	bucketIndex map[string]int
}

// Bucket returns the bucket for an outcome type, or nil.
func (m *Market) Bucket(outcomeType string) *Bucket {
	if i, ok := m.bucketIndex[outcomeType]; ok {
		return m.Buckets[i]
	}
	return nil
}

// Size is the number of records across all buckets.
func (m *Market) Size() int {
	n := 0
	for _, b := range m.Buckets {
		n += len(b.Records)
	}
	return n
}

func (m *Market) add(r odds.Record) {
	i, ok := m.bucketIndex[r.OutcomeType]
	if !ok {
		i = len(m.Buckets)
		m.bucketIndex[r.OutcomeType] = i
		m.Buckets = append(m.Buckets, &Bucket{OutcomeType: r.OutcomeType})
	}
	m.Buckets[i].Records = append(m.Buckets[i].Records, r)
}

// Group partitions records into markets keyed by game, market label and
// spread, and each market into outcome-type buckets. Markets and buckets
// keep first-seen order; no record is dropped.
func Group(records []odds.Record) []*Market {
	var markets []*Market
	index := make(map[Key]int)

	for _, r := range records {
		key := KeyOf(r)
		i, ok := index[key]
		if !ok {
			i = len(markets)
			index[key] = i
			markets = append(markets, &Market{
				Key:         key,
				Game:        key.Game,
				Label:       key.Market,
				Spread:      r.Spread,
				Sport:       r.Sport,
				Live:        r.Live,
				bucketIndex: make(map[string]int),
			})
		}
		markets[i].add(r)
	}
	return markets
}

// Candidates keeps the markets with at least two outcome-type buckets.
func Candidates(markets []*Market) []*Market {
	out := make([]*Market, 0, len(markets))
	for _, m := range markets {
		if len(m.Buckets) >= 2 {
			out = append(out, m)
		}
	}
	return out
}
