package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/logging"
	"odds-arb-watcher/internal/odds"
)

// StreamMarker selects odds-stream channels; it matches both the live
// (ev_stream) and prematch (ev_stream_prematch) channels.
const StreamMarker = "ev_stream"

// Envelope is one channel-tagged batch from the odds stream. Live is set by
// the fetcher according to which stream variant produced it.
type Envelope struct {
	Channel string            `json:"channel"`
	Payload []json.RawMessage `json:"payload"`
	Live    bool              `json:"-"`
}

// Normalizer flattens odds-stream envelopes into quotes.
type Normalizer struct {
	marker string
	logger zerolog.Logger
}

// New constructs a Normalizer. An empty marker falls back to StreamMarker.
func New(marker string, logger zerolog.Logger) *Normalizer {
	if marker == "" {
		marker = StreamMarker
	}
	return &Normalizer{marker: marker, logger: logger.With().Str("component", "normalizer").Logger()}
}

// WithCycle returns a copy whose log lines carry cycleID.
func (n *Normalizer) WithCycle(cycleID string) *Normalizer {
	if n == nil {
		return nil
	}
	c := *n
	c.logger = logging.WithCycle(n.logger, cycleID)
	return &c
}

// Normalize extracts one quote per payload item of every matching envelope.
// Items that cannot be decoded are logged and skipped.
func (n *Normalizer) Normalize(envelopes []Envelope) []odds.Quote {
	quotes := make([]odds.Quote, 0)
	skipped := 0

	for _, env := range envelopes {
		if !strings.Contains(env.Channel, n.marker) || len(env.Payload) == 0 {
			continue
		}
		for i, raw := range env.Payload {
			quote, err := decodeItem(raw, env.Live)
			if err != nil {
				skipped++
				n.logger.Warn().Err(err).
					Str("channel", env.Channel).
					Int("index", i).
					Msg("skip malformed payload item")
				continue
			}
			quotes = append(quotes, quote)
		}
	}

	n.logger.Debug().Int("quotes", len(quotes)).Int("skipped", skipped).Msg("normalized odds stream")
	return quotes
}

type payloadItem struct {
	OutcomeID odds.Text       `json:"outcome_id"`
	Book      odds.Text       `json:"book"`
	Spread    odds.Spread     `json:"spread"`
	Message   json.RawMessage `json:"message"`
	Model     json.RawMessage `json:"ev_model"`
}

type pricingModel struct {
	EV           odds.Number    `json:"ev"`
	LastTS       odds.Timestamp `json:"last_ts"`
	AmericanOdds odds.American  `json:"american_odds"`
	TrueProb     odds.Number    `json:"true_prob"`
	Deeplink     odds.Text      `json:"deeplink"`
	Spread       odds.Spread    `json:"spread"`
}

func decodeItem(raw json.RawMessage, live bool) (odds.Quote, error) {
	var item payloadItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return odds.Quote{}, fmt.Errorf("decode payload item: %w", err)
	}

	quote := odds.Quote{
		OutcomeID: string(item.OutcomeID),
		Book:      string(item.Book),
		Live:      live,
		Spread:    item.Spread,
	}
	if len(item.Message) > 0 && string(item.Message) != "null" {
		quote.Message = item.Message
	}
	// a model that is not an object carries no pricing
	if model := bytes.TrimSpace(item.Model); len(model) > 0 && model[0] == '{' {
		var m pricingModel
		if err := json.Unmarshal(model, &m); err != nil {
			return odds.Quote{}, fmt.Errorf("decode ev_model: %w", err)
		}
		quote.ExpectedValue = m.EV.Ptr()
		quote.LastUpdated = m.LastTS
		quote.AmericanOdds = m.AmericanOdds
		quote.TrueProbability = m.TrueProb.Ptr()
		quote.ModelSpread = m.Spread
		quote.Deeplink = string(m.Deeplink)
	}
	return quote, nil
}
