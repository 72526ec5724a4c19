package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/catalog"
	"odds-arb-watcher/internal/fetcher"
	"odds-arb-watcher/internal/logging"
	"odds-arb-watcher/internal/normalizer"
	"odds-arb-watcher/internal/pipeline"
	"odds-arb-watcher/internal/scheduler"
	"odds-arb-watcher/internal/storage"
)

// Publisher receives every completed snapshot.
type Publisher interface {
	Publish(ctx context.Context, snap *pipeline.Snapshot) error
}

// Broadcaster pushes cycle summaries to connected clients.
type Broadcaster interface {
	Broadcast(summary pipeline.Summary)
}

// Alerter dispatches alerts for qualifying opportunities.
type Alerter interface {
	Dispatch(ctx context.Context, cycleID string, opps []arbitrage.Opportunity) int
}

// Sources groups the three upstream feeds.
type Sources struct {
	Odds     fetcher.OddsSource
	Catalog  fetcher.CatalogSource
	Schedule fetcher.ScheduleSource
}

// Options wire optional collaborators; nil fields are skipped.
type Options struct {
	Scheduler   *scheduler.Scheduler
	Sources     Sources
	Stages      pipeline.Stages
	Holder      *pipeline.Holder
	Store       storage.CycleStore
	Locker      storage.AdvisoryLocker
	LockKey     int64
	Cache       Publisher
	Broadcaster Broadcaster
	Alerter     Alerter
	SummaryTop  int
}

// Service orchestrates fetching, the processing pipeline, and fan-out.
type Service struct {
	opts   Options
	holder *pipeline.Holder
	logger zerolog.Logger

	inFlight sync.Mutex
	newID    func() string
}

// ErrBusy is returned by Refresh when a cycle is already running.
var ErrBusy = errors.New("service: refresh already in progress")

// New constructs the refresh service.
func New(opts Options, logger zerolog.Logger) *Service {
	holder := opts.Holder
	if holder == nil {
		holder = pipeline.NewHolder()
	}
	if opts.SummaryTop <= 0 {
		opts.SummaryTop = 10
	}
	return &Service{
		opts:   opts,
		holder: holder,
		logger: logger.With().Str("component", "service").Logger(),
		newID:  func() string { return uuid.NewString() },
	}
}

// Snapshot returns the latest published snapshot.
func (s *Service) Snapshot() *pipeline.Snapshot {
	return s.holder.Load()
}

// Run begins the refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.opts.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.opts.Scheduler.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, err := s.Refresh(ctx)
		if errors.Is(err, ErrBusy) {
			return nil
		}
		return err
	})
}

// Refresh runs one full cycle and publishes its snapshot. Overlapping calls
// return ErrBusy without doing any work.
func (s *Service) Refresh(ctx context.Context) (*pipeline.Snapshot, error) {
	if !s.inFlight.TryLock() {
		return nil, ErrBusy
	}
	defer s.inFlight.Unlock()

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	if !proceed {
		s.logger.Debug().Msg("skip refresh because advisory lock held elsewhere")
		return nil, ErrBusy
	}
	if unlock != nil {
		defer unlock()
	}

	cycleID := s.newID()
	logger := logging.WithCycle(s.logger, cycleID)
	ctx = logging.ContextWithCycle(ctx, cycleID)
	started := time.Now().UTC()

	in := s.fetch(ctx)
	snap := pipeline.Build(cycleID, started, in, s.opts.Stages)
	s.holder.Store(snap)

	logger.Info().
		Str("status", snap.Status).
		Int("records", len(snap.Records)).
		Int("markets", snap.Markets).
		Int("opportunities", len(snap.Opportunities)).
		Int("arbitrages", snap.Arbitrages()).
		Dur("elapsed", snap.CompletedAt.Sub(started)).
		Msg("refresh complete")

	s.fanOut(ctx, logger, snap)
	return snap, nil
}

// fetch queries all sources concurrently; a failed source contributes its
// zero value.
func (s *Service) fetch(ctx context.Context) pipeline.Inputs {
	var (
		envelopes []normalizer.Envelope
		games     []catalog.Game
		schedule  catalog.Schedule
	)

	g, gctx := errgroup.WithContext(ctx)
	if src := s.opts.Sources.Odds; src != nil {
		g.Go(func() error {
			envelopes = src.FetchEnvelopes(gctx)
			return nil
		})
	}
	if src := s.opts.Sources.Catalog; src != nil {
		g.Go(func() error {
			games = src.FetchGames(gctx)
			return nil
		})
	}
	if src := s.opts.Sources.Schedule; src != nil {
		g.Go(func() error {
			schedule = src.FetchSchedule(gctx)
			return nil
		})
	}
	_ = g.Wait()

	return pipeline.Inputs{Envelopes: envelopes, Games: games, Schedule: schedule}
}

func (s *Service) fanOut(ctx context.Context, logger zerolog.Logger, snap *pipeline.Snapshot) {
	if s.opts.Store != nil {
		if err := s.persist(ctx, snap); err != nil && !errors.Is(err, storage.ErrNotConfigured) {
			logger.Error().Err(err).Msg("failed to persist cycle")
		}
	}

	if s.opts.Cache != nil {
		if err := s.opts.Cache.Publish(ctx, snap); err != nil {
			logger.Warn().Err(err).Msg("failed to publish snapshot")
		}
	}

	if s.opts.Broadcaster != nil {
		s.opts.Broadcaster.Broadcast(pipeline.Summarize(snap, s.opts.SummaryTop))
	}

	if s.opts.Alerter != nil && len(snap.Opportunities) > 0 {
		if sent := s.opts.Alerter.Dispatch(ctx, snap.CycleID, snap.Opportunities); sent > 0 {
			logger.Info().Int("alerts", sent).Msg("alerts dispatched")
		}
	}
}

func (s *Service) persist(ctx context.Context, snap *pipeline.Snapshot) error {
	opps := make([]storage.OpportunityRecord, 0, len(snap.Opportunities))
	for i, o := range snap.Opportunities {
		rec, err := storage.NewOpportunityRecord(snap.CycleID, i+1, o)
		if err != nil {
			return err
		}
		opps = append(opps, rec)
	}
	return s.opts.Store.InsertCycle(ctx, storage.NewCycleRecord(snap), opps)
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.opts.Locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.opts.Locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if errors.Is(err, storage.ErrNotConfigured) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
