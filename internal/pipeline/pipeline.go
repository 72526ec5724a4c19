package pipeline

import (
	"sync/atomic"
	"time"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/catalog"
	"odds-arb-watcher/internal/filter"
	"odds-arb-watcher/internal/fusion"
	"odds-arb-watcher/internal/market"
	"odds-arb-watcher/internal/normalizer"
	"odds-arb-watcher/internal/odds"
)

const (
	StatusUpdated = "Data updated"
	StatusFailed  = "Failed to fetch betting data."
	StatusPending = "Waiting for first refresh"
)

// Inputs are the raw results of the three source fetches of one cycle.
// A source that failed contributes its zero value.
type Inputs struct {
	Envelopes []normalizer.Envelope
	Games     []catalog.Game
	Schedule  catalog.Schedule
}

// Empty reports whether every source came back with nothing.
func (in Inputs) Empty() bool {
	return len(in.Envelopes) == 0 && len(in.Games) == 0 && in.Schedule.Len() == 0
}

// SourceStats counts what each source contributed.
type SourceStats struct {
	Envelopes      int `json:"envelopes"`
	Quotes         int `json:"quotes"`
	Games          int `json:"games"`
	IndexedOutcome int `json:"indexed_outcomes"`
	ScheduledGames int `json:"scheduled_games"`
}

// Stages are the processing steps Build runs.
type Stages struct {
	Normalizer *normalizer.Normalizer
	Fusion     *fusion.Engine
	Analyzer   *arbitrage.Analyzer
	Filter     *filter.Filter
}

// WithCycle returns stages whose log lines carry cycleID.
func (st Stages) WithCycle(cycleID string) Stages {
	return Stages{
		Normalizer: st.Normalizer.WithCycle(cycleID),
		Fusion:     st.Fusion.WithCycle(cycleID),
		Analyzer:   st.Analyzer.WithCycle(cycleID),
		Filter:     st.Filter,
	}
}

// Snapshot is the immutable result of one refresh cycle. Callers must not
// modify the slices it exposes.
type Snapshot struct {
	CycleID       string                  `json:"cycle_id"`
	StartedAt     time.Time               `json:"started_at"`
	CompletedAt   time.Time               `json:"completed_at"`
	Status        string                  `json:"status"`
	Sources       SourceStats             `json:"sources"`
	Fusion        fusion.Stats            `json:"fusion"`
	Markets       int                     `json:"markets"`
	Records       []odds.Record           `json:"records"`
	Opportunities []arbitrage.Opportunity `json:"opportunities"`
}

// Arbitrages counts the opportunities that are true arbitrages.
func (s *Snapshot) Arbitrages() int {
	n := 0
	for _, o := range s.Opportunities {
		if o.IsArbitrage {
			n++
		}
	}
	return n
}

// Empty returns the snapshot published before any cycle completed.
func Empty() *Snapshot {
	return &Snapshot{
		Status:        StatusPending,
		Records:       []odds.Record{},
		Opportunities: []arbitrage.Opportunity{},
	}
}

// Build runs normalize, index, fuse, group and analyze over one cycle's
// inputs. The display allow-list is applied to the records before ranking.
func Build(cycleID string, startedAt time.Time, in Inputs, st Stages) *Snapshot {
	snap := &Snapshot{
		CycleID:       cycleID,
		StartedAt:     startedAt,
		Records:       []odds.Record{},
		Opportunities: []arbitrage.Opportunity{},
	}
	if in.Empty() {
		snap.Status = StatusFailed
		snap.CompletedAt = time.Now().UTC()
		return snap
	}

	st = st.WithCycle(cycleID)
	quotes := st.Normalizer.Normalize(in.Envelopes)
	schedule := in.Schedule
	index := catalog.NewIndex(in.Games, &schedule)

	records, stats := st.Fusion.Fuse(quotes, index, fusion.NewCache())
	records = st.Filter.Allowed(records)
	markets := market.Group(records)

	snap.Sources = SourceStats{
		Envelopes:      len(in.Envelopes),
		Quotes:         len(quotes),
		Games:          index.Games(),
		IndexedOutcome: index.Outcomes(),
		ScheduledGames: schedule.Len(),
	}
	snap.Fusion = stats
	snap.Markets = len(markets)
	snap.Records = records
	snap.Opportunities = st.Analyzer.Analyze(markets)
	snap.Status = StatusUpdated
	snap.CompletedAt = time.Now().UTC()
	return snap
}

// View is a filtered projection of a snapshot.
type View struct {
	Records       []odds.Record           `json:"records"`
	Opportunities []arbitrage.Opportunity `json:"opportunities"`
	Counts        filter.Counts           `json:"counts"`
}

// Project filters the snapshot's records and recomputes opportunities over
// the filtered set without touching the network.
func Project(s *Snapshot, f *filter.Filter, a *arbitrage.Analyzer, c filter.Criteria) View {
	records := f.Apply(s.Records, c)
	return View{
		Records:       records,
		Opportunities: a.Analyze(market.Group(records)),
		Counts:        filter.Count(records),
	}
}

// Holder publishes the latest snapshot to concurrent readers.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder starts with the Empty snapshot.
func NewHolder() *Holder {
	h := &Holder{}
	h.current.Store(Empty())
	return h
}

// Load returns the latest snapshot; never nil.
func (h *Holder) Load() *Snapshot { return h.current.Load() }

// Store replaces the latest snapshot.
func (h *Holder) Store(s *Snapshot) {
	if s != nil {
		h.current.Store(s)
	}
}

// Summary is the compact form of a snapshot pushed to subscribers.
type Summary struct {
	CycleID       string                  `json:"cycle_id"`
	Status        string                  `json:"status"`
	CompletedAt   time.Time               `json:"completed_at"`
	Records       int                     `json:"records"`
	Markets       int                     `json:"markets"`
	Opportunities int                     `json:"opportunities"`
	Arbitrages    int                     `json:"arbitrages"`
	Top           []arbitrage.Opportunity `json:"top"`
}

// Summarize keeps the first top opportunities of a snapshot.
func Summarize(s *Snapshot, top int) Summary {
	if top < 0 || top > len(s.Opportunities) {
		top = len(s.Opportunities)
	}
	return Summary{
		CycleID:       s.CycleID,
		Status:        s.Status,
		CompletedAt:   s.CompletedAt,
		Records:       len(s.Records),
		Markets:       s.Markets,
		Opportunities: len(s.Opportunities),
		Arbitrages:    s.Arbitrages(),
		Top:           s.Opportunities[:top],
	}
}
