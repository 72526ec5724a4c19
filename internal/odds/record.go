package odds

import "encoding/json"

// UnknownGame is the identity used when neither a player pair nor a game
// name could be resolved.
const UnknownGame = "Unknown Game"

// Quote is one price for one outcome at one book, as read from the odds
// stream before any catalog lookup.
type Quote struct {
	OutcomeID       string          `json:"outcome_id"`
	Book            string          `json:"book"`
	Live            bool            `json:"live"`
	Spread          Spread          `json:"spread"`
	Message         json.RawMessage `json:"message,omitempty"`
	AmericanOdds    American        `json:"american_odds"`
	ExpectedValue   *float64        `json:"ev"`
	TrueProbability *float64        `json:"true_prob"`
	Deeplink        string          `json:"deeplink,omitempty"`
	LastUpdated     Timestamp       `json:"last_ts"`
	ModelSpread     Spread          `json:"ev_spread"`
}

// Info is the game and market metadata resolved for an outcome id.
type Info struct {
	MarketID      string `json:"market_id"`
	MarketType    string `json:"market_type"`
	DisplayName   string `json:"display_name"`
	GameName      string `json:"game_name"`
	HomeTeam      string `json:"home_team"`
	AwayTeam      string `json:"away_team"`
	Sport         string `json:"sport"`
	Player1       string `json:"player_1"`
	Player2       string `json:"player_2"`
	OutcomeType   string `json:"outcome_type"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
}

// MarketLabel is the market name used for grouping and display.
func (i Info) MarketLabel() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.MarketType != "" {
		return i.MarketType
	}
	return "Unknown"
}

// Record is a quote whose outcome id resolved against the catalog. Only
// records of this type flow past fusion.
type Record struct {
	Quote
	Info
	Game string `json:"game"`
}
