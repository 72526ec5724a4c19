package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"odds-arb-watcher/internal/catalog"
	"odds-arb-watcher/internal/logging"
)

// DefaultSports are the sports queried from the schedule feed.
var DefaultSports = []string{"basketball", "baseball", "football", "soccer", "hockey", "tennis"}

// ScheduleOptions parameterise the schedule client. RatePerSecond bounds the
// per-sport requests; zero means unlimited.
type ScheduleOptions struct {
	URL           string
	Sports        []string
	Timeout       time.Duration
	UserAgent     string
	RatePerSecond float64
	Burst         int
}

// Schedule pulls the per-sport schedule feed.
type Schedule struct {
	opts    ScheduleOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
}

// NewSchedule constructs a schedule client.
func NewSchedule(opts ScheduleOptions, logger zerolog.Logger) *Schedule {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = "https://49pzwry2rc.execute-api.us-east-1.amazonaws.com/prod/getLiveGames"
	}
	if len(opts.Sports) == 0 {
		opts.Sports = DefaultSports
	}
	opts.UserAgent = userAgent(opts.UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	return &Schedule{
		opts:    opts,
		logger:  logger.With().Str("component", "schedule_fetcher").Logger(),
		client:  newHTTPClient(opts.Timeout),
		limiter: limiter,
	}
}

// FetchSchedule queries every sport concurrently and merges the results in
// configured sport order. Sports that fail are logged and left out.
func (s *Schedule) FetchSchedule(ctx context.Context) catalog.Schedule {
	results := make([]catalog.Schedule, len(s.opts.Sports))

	g, gctx := errgroup.WithContext(ctx)
	for i, sport := range s.opts.Sports {
		g.Go(func() error {
			sched, err := s.FetchSport(gctx, sport)
			if err != nil {
				logger := logging.FromContext(gctx, s.logger)
				logger.Warn().Err(err).Str("sport", sport).Msg("schedule fetch failed")
				return nil
			}
			results[i] = sched
			return nil
		})
	}
	_ = g.Wait()

	var merged catalog.Schedule
	for _, sched := range results {
		merged.Merge(sched)
	}
	logger := logging.FromContext(ctx, s.logger)
	logger.Debug().Int("games", merged.Len()).Int("sports", len(s.opts.Sports)).Msg("schedule fetched")
	return merged
}

// FetchSport queries the schedule of a single sport.
func (s *Schedule) FetchSport(ctx context.Context, sport string) (catalog.Schedule, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return catalog.Schedule{}, fmt.Errorf("rate limit: %w", err)
	}

	endpoint, err := url.Parse(s.opts.URL)
	if err != nil {
		return catalog.Schedule{}, fmt.Errorf("parse schedule url: %w", err)
	}
	q := endpoint.Query()
	q.Set("sport", sport)
	q.Set("live", "false")
	endpoint.RawQuery = q.Encode()

	payload, err := getJSON(ctx, s.client, endpoint.String(), s.opts.UserAgent, "schedule")
	if err != nil {
		return catalog.Schedule{}, err
	}
	sched, err := catalog.DecodeSchedule(payload)
	if err != nil {
		return catalog.Schedule{}, fmt.Errorf("decode %s schedule: %w", sport, err)
	}
	return sched, nil
}

var _ ScheduleSource = (*Schedule)(nil)
