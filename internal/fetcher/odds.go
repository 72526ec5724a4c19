package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"odds-arb-watcher/internal/logging"
	"odds-arb-watcher/internal/normalizer"
)

const (
	LiveStreamKey     = "ev_stream"
	PrematchStreamKey = "ev_stream_prematch"
)

// DefaultStreamBooks is the book filter sent to the odds stream.
var DefaultStreamBooks = []string{
	"DRAFTKINGS", "FANDUEL", "BETMGM", "CAESARS", "ESPN", "HARDROCK",
	"BALLYBET", "BETONLINE", "BET365", "FANATICS", "FLIFF", "NONE",
}

// OddsStreamOptions parameterise the odds-stream client.
type OddsStreamOptions struct {
	URL       string
	Books     []string
	Timeout   time.Duration
	UserAgent string
}

// OddsStream pulls the live and prematch odds streams.
type OddsStream struct {
	opts   OddsStreamOptions
	logger zerolog.Logger
	client *http.Client
}

// NewOddsStream constructs an odds-stream client.
func NewOddsStream(opts OddsStreamOptions, logger zerolog.Logger) *OddsStream {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = "https://api.openodds.gg/getData"
	}
	if len(opts.Books) == 0 {
		opts.Books = DefaultStreamBooks
	}
	opts.UserAgent = userAgent(opts.UserAgent)

	return &OddsStream{
		opts:   opts,
		logger: logger.With().Str("component", "odds_fetcher").Logger(),
		client: newHTTPClient(opts.Timeout),
	}
}

type streamRequest struct {
	Keys    []string      `json:"keys"`
	Filters streamFilters `json:"filters"`
	Filter  struct{}      `json:"filter"`
}

type streamFilters struct {
	FilteredSportsbooks []string `json:"filtered_sportsbooks"`
	MustHaveSportsbooks []string `json:"must_have_sportsbooks"`
}

// FetchEnvelopes requests both stream variants concurrently and returns the
// live envelopes followed by the prematch ones. A failed variant
// contributes nothing.
func (s *OddsStream) FetchEnvelopes(ctx context.Context) []normalizer.Envelope {
	var live, prematch []normalizer.Envelope

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		live = s.fetchVariant(gctx, LiveStreamKey, true)
		return nil
	})
	g.Go(func() error {
		prematch = s.fetchVariant(gctx, PrematchStreamKey, false)
		return nil
	})
	_ = g.Wait()

	out := make([]normalizer.Envelope, 0, len(live)+len(prematch))
	out = append(out, live...)
	return append(out, prematch...)
}

func (s *OddsStream) fetchVariant(ctx context.Context, key string, live bool) []normalizer.Envelope {
	envelopes, err := s.Fetch(ctx, key, live)
	if err != nil {
		logger := logging.FromContext(ctx, s.logger)
		logger.Warn().Err(err).Str("stream", key).Msg("odds stream fetch failed")
		return nil
	}
	logger := logging.FromContext(ctx, s.logger)
	logger.Debug().Str("stream", key).Int("envelopes", len(envelopes)).Msg("odds stream fetched")
	return envelopes
}

// Fetch requests one stream variant and tags every envelope with live.
func (s *OddsStream) Fetch(ctx context.Context, key string, live bool) ([]normalizer.Envelope, error) {
	body, err := json.Marshal(streamRequest{
		Keys: []string{key},
		Filters: streamFilters{
			FilteredSportsbooks: s.opts.Books,
			MustHaveSportsbooks: []string{""},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.opts.UserAgent)

	payload, err := do(s.client, req, "odds stream")
	if err != nil {
		return nil, err
	}

	var envelopes []normalizer.Envelope
	if err := json.Unmarshal(payload, &envelopes); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	for i := range envelopes {
		envelopes[i].Live = live
	}
	return envelopes, nil
}

var _ OddsSource = (*OddsStream)(nil)
