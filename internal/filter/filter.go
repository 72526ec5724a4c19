package filter

import (
	"fmt"
	"sort"
	"strings"

	"odds-arb-watcher/internal/odds"
)

// DefaultBooks is the display allow-list used when none is configured.
var DefaultBooks = []string{
	"DRAFTKINGS", "FANDUEL", "BETMGM", "CAESARS", "ESPN",
	"HARDROCK", "BALLYBET", "BET365", "FANATICS", "NONE",
}

// Column is a sortable record column.
type Column string

const (
	ColumnStatus      Column = "status"
	ColumnBook        Column = "book"
	ColumnGame        Column = "game"
	ColumnMarket      Column = "market"
	ColumnOutcomeType Column = "outcome_type"
	ColumnEV          Column = "ev"
	ColumnOdds        Column = "odds"
	ColumnProb        Column = "prob"
	ColumnSpread      Column = "spread"
	ColumnSport       Column = "sport"
	ColumnTime        Column = "time"
)

var columns = map[Column]struct{}{
	ColumnStatus: {}, ColumnBook: {}, ColumnGame: {}, ColumnMarket: {},
	ColumnOutcomeType: {}, ColumnEV: {}, ColumnOdds: {}, ColumnProb: {},
	ColumnSpread: {}, ColumnSport: {}, ColumnTime: {},
}

// ParseColumn validates a column name; the empty string means unsorted.
func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return "", nil
	}
	if _, ok := columns[c]; !ok {
		return "", fmt.Errorf("unknown sort column %q", s)
	}
	return c, nil
}

// Criteria selects and orders records for display. Zero values disable the
// corresponding filter.
type Criteria struct {
	Book   string
	Sport  string
	MinEV  *float64 // percent
	Live   *bool
	Search string
	SortBy Column
	Desc   bool
}

// Counts summarizes a record set.
type Counts struct {
	Total    int `json:"total"`
	Live     int `json:"live"`
	Prematch int `json:"prematch"`
}

// Options are the distinct values a view can filter on.
type Options struct {
	Books  []string `json:"books"`
	Sports []string `json:"sports"`
}

// Filter applies the book allow-list and then the per-request criteria.
type Filter struct {
	allowed map[string]struct{}
}

// New builds a Filter; an empty allow-list means DefaultBooks.
func New(books []string) *Filter {
	if len(books) == 0 {
		books = DefaultBooks
	}
	allowed := make(map[string]struct{}, len(books))
	for _, b := range books {
		allowed[strings.ToUpper(strings.TrimSpace(b))] = struct{}{}
	}
	return &Filter{allowed: allowed}
}

// Allowed keeps the records whose book is on the allow-list.
func (f *Filter) Allowed(records []odds.Record) []odds.Record {
	out := make([]odds.Record, 0, len(records))
	for _, r := range records {
		if _, ok := f.allowed[r.Book]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Apply returns a new slice; the input is never reordered.
func (f *Filter) Apply(records []odds.Record, c Criteria) []odds.Record {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	var evThreshold float64
	if c.MinEV != nil {
		evThreshold = *c.MinEV / 100
	}

	out := make([]odds.Record, 0, len(records))
	for _, r := range f.Allowed(records) {
		if c.Book != "" && r.Book != c.Book {
			continue
		}
		if c.Sport != "" && r.Sport != c.Sport {
			continue
		}
		if c.MinEV != nil && (r.ExpectedValue == nil || *r.ExpectedValue == 0 || *r.ExpectedValue < evThreshold) {
			continue
		}
		if c.Live != nil && r.Live != *c.Live {
			continue
		}
		if search != "" && !matches(r, search) {
			continue
		}
		out = append(out, r)
	}

	if c.SortBy != "" {
		Sort(out, c.SortBy, c.Desc)
	}
	return out
}

func matches(r odds.Record, needle string) bool {
	for _, field := range []string{r.GameName, r.HomeTeam, r.AwayTeam, r.Player1, r.Player2, r.DisplayName} {
		if field != "" && strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Sort orders records in place by one column. Equal keys keep their order.
func Sort(records []odds.Record, col Column, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		c := compare(records[i], records[j], col)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b odds.Record, col Column) int {
	switch col {
	case ColumnStatus:
		return cmpFloat(boolValue(a.Live), boolValue(b.Live))
	case ColumnBook:
		return strings.Compare(a.Book, b.Book)
	case ColumnGame:
		return strings.Compare(a.Game, b.Game)
	case ColumnMarket:
		return strings.Compare(marketText(a), marketText(b))
	case ColumnOutcomeType:
		return strings.Compare(a.OutcomeType, b.OutcomeType)
	case ColumnEV:
		return cmpFloat(floatOr(a.ExpectedValue, -999), floatOr(b.ExpectedValue, -999))
	case ColumnOdds:
		av, _ := a.AmericanOdds.Value()
		bv, _ := b.AmericanOdds.Value()
		return cmpFloat(float64(av), float64(bv))
	case ColumnProb:
		return cmpFloat(floatOr(a.TrueProbability, 0), floatOr(b.TrueProbability, 0))
	case ColumnSpread:
		return cmpFloat(a.Spread.Float(), b.Spread.Float())
	case ColumnSport:
		return strings.Compare(a.Sport, b.Sport)
	case ColumnTime:
		return cmpFloat(float64(a.LastUpdated.UnixMilli()), float64(b.LastUpdated.UnixMilli()))
	}
	return 0
}

// marketText is the label shown in the market column; unlike grouping it
// has no "Unknown" fallback.
func marketText(r odds.Record) string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.MarketType
}

func floatOr(v *float64, def float64) float64 {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Count tallies live and prematch records.
func Count(records []odds.Record) Counts {
	c := Counts{Total: len(records)}
	for _, r := range records {
		if r.Live {
			c.Live++
		}
	}
	c.Prematch = c.Total - c.Live
	return c
}

// OptionsOf collects the distinct books and sports, sorted.
func OptionsOf(records []odds.Record) Options {
	books := make(map[string]struct{})
	sports := make(map[string]struct{})
	for _, r := range records {
		if r.Book != "" {
			books[r.Book] = struct{}{}
		}
		if r.Sport != "" {
			sports[r.Sport] = struct{}{}
		}
	}
	return Options{Books: sortedKeys(books), Sports: sortedKeys(sports)}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
