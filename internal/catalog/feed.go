package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Game is one upcoming or live contest from the live-games catalog.
type Game struct {
	GameName string
	HomeTeam string
	AwayTeam string
	Sport    string
	Player1  string
	Player2  string
	Markets  []Market
}

// Market is one bettable proposition of a Game.
type Market struct {
	ID          string
	MarketType  string
	DisplayName string
	Outcomes    []Outcome
}

// Outcome is one side of a Market.
type Outcome struct {
	Key         string
	OutcomeID   string
	OutcomeType string
}

type gameWire struct {
	GameName json.RawMessage `json:"game_name"`
	HomeTeam json.RawMessage `json:"home_team"`
	AwayTeam json.RawMessage `json:"away_team"`
	Sport    json.RawMessage `json:"sport"`
	Player1  json.RawMessage `json:"player_1"`
	Player2  json.RawMessage `json:"player_2"`
	Markets  json.RawMessage `json:"markets"`
}

type marketWire struct {
	MarketType  json.RawMessage `json:"market_type"`
	DisplayName json.RawMessage `json:"display_name"`
	Outcomes    json.RawMessage `json:"outcomes"`
}

type outcomeWire struct {
	OutcomeID   json.RawMessage `json:"outcome_id"`
	OutcomeType json.RawMessage `json:"outcome_type"`
}

// UnmarshalJSON keeps markets and outcomes in document order.
func (g *Game) UnmarshalJSON(data []byte) error {
	var wire gameWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*g = Game{
		GameName: scalarText(wire.GameName),
		HomeTeam: scalarText(wire.HomeTeam),
		AwayTeam: scalarText(wire.AwayTeam),
		Sport:    scalarText(wire.Sport),
		Player1:  scalarText(wire.Player1),
		Player2:  scalarText(wire.Player2),
	}

	return eachMember(wire.Markets, func(id string, raw json.RawMessage) error {
		if isNull(raw) {
			return nil
		}
		var mw marketWire
		if err := json.Unmarshal(raw, &mw); err != nil {
			return fmt.Errorf("market %s: %w", id, err)
		}
		market := Market{
			ID:          id,
			MarketType:  scalarText(mw.MarketType),
			DisplayName: scalarText(mw.DisplayName),
		}
		err := eachMember(mw.Outcomes, func(key string, raw json.RawMessage) error {
			if isNull(raw) {
				return nil
			}
			var ow outcomeWire
			if err := json.Unmarshal(raw, &ow); err != nil {
				return fmt.Errorf("outcome %s: %w", key, err)
			}
			market.Outcomes = append(market.Outcomes, Outcome{
				Key:         key,
				OutcomeID:   scalarText(ow.OutcomeID),
				OutcomeType: scalarText(ow.OutcomeType),
			})
			return nil
		})
		if err != nil {
			return fmt.Errorf("market %s: %w", id, err)
		}
		g.Markets = append(g.Markets, market)
		return nil
	})
}

// LiveGamesResponse is the live-games catalog document.
type LiveGamesResponse struct {
	Body *struct {
		PrematchGames []json.RawMessage `json:"prematch_games"`
		LiveGames     []json.RawMessage `json:"live_games"`
	} `json:"body"`
}

// DecodeGames parses a live-games document into games, prematch first then
// live. Games that fail to decode are counted and skipped.
func DecodeGames(data []byte) ([]Game, int, error) {
	var doc LiveGamesResponse
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode live games: %w", err)
	}
	if doc.Body == nil {
		return []Game{}, 0, nil
	}

	raws := make([]json.RawMessage, 0, len(doc.Body.PrematchGames)+len(doc.Body.LiveGames))
	raws = append(raws, doc.Body.PrematchGames...)
	raws = append(raws, doc.Body.LiveGames...)

	games := make([]Game, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		var g Game
		if err := json.Unmarshal(raw, &g); err != nil {
			skipped++
			continue
		}
		games = append(games, g)
	}
	return games, skipped, nil
}

// ScheduledGame is one entry of the per-sport schedule feed.
type ScheduledGame struct {
	GameID    string
	GameDate  string
	MarketIDs []string
}

// Schedule is the merged schedule of every queried sport, in the order
// entries were first seen.
type Schedule struct {
	games []ScheduledGame
	pos   map[string]int
}

// Games returns the merged entries.
func (s *Schedule) Games() []ScheduledGame {
	if s == nil {
		return nil
	}
	return s.games
}

// Len reports the number of merged entries.
func (s *Schedule) Len() int {
	if s == nil {
		return 0
	}
	return len(s.games)
}

// Put adds an entry; an existing game id keeps its position and takes the
// new value.
func (s *Schedule) Put(g ScheduledGame) {
	if s.pos == nil {
		s.pos = make(map[string]int)
	}
	if i, ok := s.pos[g.GameID]; ok {
		s.games[i] = g
		return
	}
	s.pos[g.GameID] = len(s.games)
	s.games = append(s.games, g)
}

// Merge folds other into s with Put semantics.
func (s *Schedule) Merge(other Schedule) {
	for _, g := range other.games {
		s.Put(g)
	}
}

type scheduleWire struct {
	Markets  json.RawMessage `json:"markets"`
	GameDate json.RawMessage `json:"game_date"`
}

// DecodeSchedule parses one schedule response. The game map sits under
// "body" when present, which may itself be a JSON-encoded string; otherwise
// the whole document is the map. Members that are not game objects are
// ignored.
func DecodeSchedule(data []byte) (Schedule, error) {
	var envelope struct {
		Body json.RawMessage `json:"body"`
	}
	games := bytes.TrimSpace(data)
	if err := json.Unmarshal(games, &envelope); err != nil {
		return Schedule{}, fmt.Errorf("decode schedule: %w", err)
	}
	if body := bytes.TrimSpace(envelope.Body); len(body) > 0 && !isNull(body) {
		games = body
		if body[0] == '"' {
			var inner string
			if err := json.Unmarshal(body, &inner); err != nil {
				return Schedule{}, fmt.Errorf("decode schedule body: %w", err)
			}
			games = bytes.TrimSpace([]byte(inner))
		}
	}

	var sched Schedule
	if len(games) == 0 || games[0] != '{' {
		return sched, nil
	}
	err := eachMember(games, func(id string, raw json.RawMessage) error {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return nil
		}
		var sw scheduleWire
		if err := json.Unmarshal(raw, &sw); err != nil {
			return nil
		}
		entry := ScheduledGame{GameID: id, GameDate: scalarText(sw.GameDate)}
		trimmed := bytes.TrimSpace(sw.Markets)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			if err := eachMember(trimmed, func(marketID string, v json.RawMessage) error {
				if !isNull(v) {
					entry.MarketIDs = append(entry.MarketIDs, marketID)
				}
				return nil
			}); err != nil {
				return nil
			}
		}
		sched.Put(entry)
		return nil
	})
	if err != nil {
		return Schedule{}, fmt.Errorf("decode schedule games: %w", err)
	}
	return sched, nil
}
