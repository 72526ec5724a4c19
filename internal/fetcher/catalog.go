package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/catalog"
	"odds-arb-watcher/internal/logging"
	"odds-arb-watcher/internal/odds"
)

// CatalogOptions parameterise the game catalog client.
type CatalogOptions struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Catalog pulls the live/prematch game catalog.
type Catalog struct {
	opts   CatalogOptions
	logger zerolog.Logger
	client *http.Client
}

// NewCatalog constructs a catalog client.
func NewCatalog(opts CatalogOptions, logger zerolog.Logger) *Catalog {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = "https://d6ailk8q6o27n.cloudfront.net/livegames"
	}
	opts.UserAgent = userAgent(opts.UserAgent)

	return &Catalog{
		opts:   opts,
		logger: logger.With().Str("component", "catalog_fetcher").Logger(),
		client: newHTTPClient(opts.Timeout),
	}
}

// FetchGames returns prematch games followed by live games, or nil when the
// catalog could not be fetched.
func (c *Catalog) FetchGames(ctx context.Context) []catalog.Game {
	games, err := c.Fetch(ctx)
	if err != nil {
		logger := logging.FromContext(ctx, c.logger)
		logger.Warn().Err(err).Msg("catalog fetch failed")
		return nil
	}
	return games
}

// Fetch is FetchGames with the error exposed.
func (c *Catalog) Fetch(ctx context.Context) ([]catalog.Game, error) {
	payload, err := getJSON(ctx, c.client, c.opts.URL, c.opts.UserAgent, "catalog")
	if err != nil {
		return nil, err
	}
	games, skipped, err := catalog.DecodeGames(payload)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	logger := logging.FromContext(ctx, c.logger)
	if skipped > 0 {
		logger.Warn().Int("skipped", skipped).Msg("skipped malformed catalog games")
	}
	logger.Debug().Int("games", len(games)).Msg("catalog fetched")
	return games, nil
}

// LookupFresh fetches the catalog again and resolves a single outcome id
// against it, independent of any cached index.
func (c *Catalog) LookupFresh(ctx context.Context, outcomeID string) (odds.Info, error) {
	games, err := c.Fetch(ctx)
	if err != nil {
		return odds.Info{}, fmt.Errorf("fetch catalog: %w", err)
	}
	info, err := catalog.Find(games, outcomeID)
	if err != nil {
		return odds.Info{}, err
	}
	return info, nil
}

var _ CatalogSource = (*Catalog)(nil)
