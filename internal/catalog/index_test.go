package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liveGamesDoc = `{
  "body": {
    "prematch_games": [
      {
        "game_name": "Lakers @ Celtics",
        "home_team": "Celtics",
        "away_team": "Lakers",
        "sport": "basketball",
        "markets": {
          "m-spread": {
            "market_type": "spread",
            "display_name": "Point Spread",
            "outcomes": {
              "home": {"outcome_id": "OUT_HOME", "outcome_type": "HOME_COVERS"},
              "away": {"outcome_id": "OUT_AWAY", "outcome_type": "AWAY_COVERS"}
            }
          }
        }
      },
      {
        "game_name": "Duplicate Game",
        "markets": {
          "m-dupe": {
            "market_type": "moneyline",
            "outcomes": {
              "x": {"outcome_id": "OUT_HOME", "outcome_type": "DUPLICATE"}
            }
          }
        }
      }
    ],
    "live_games": [
      {
        "sport": "tennis",
        "player_1": "Alcaraz",
        "player_2": "Sinner",
        "markets": {
          "m-ml": {
            "market_type": "moneyline",
            "display_name": "Match Winner",
            "outcomes": {
              "p1": {"outcome_id": "TEN_P1_ALT", "outcome_type": "PLAYER_1"},
              "p2": {"outcome_id": "TEN_P2", "outcome_type": "PLAYER_2"}
            }
          }
        }
      }
    ]
  }
}`

const scheduleDoc = `{
  "statusCode": 200,
  "body": {
    "g-1": {"game_date": "2025-05-01T23:00:00Z", "markets": {"m-spread": {"x": 1}}},
    "g-2": {"game_date": "2025-05-02T23:00:00Z", "markets": {"m-spread": {"x": 1}, "m-ml": {}}}
  }
}`

func mustGames(t *testing.T) []Game {
	t.Helper()
	games, skipped, err := DecodeGames([]byte(liveGamesDoc))
	require.NoError(t, err)
	require.Zero(t, skipped)
	require.Len(t, games, 3)
	return games
}

func mustSchedule(t *testing.T) *Schedule {
	t.Helper()
	sched, err := DecodeSchedule([]byte(scheduleDoc))
	require.NoError(t, err)
	return &sched
}

func TestStripAltSuffix(t *testing.T) {
	assert.Equal(t, "ABC", StripAltSuffix("ABC_ALT"))
	assert.Equal(t, "ABC", StripAltSuffix("ABC_alt"))
	assert.Equal(t, "ABC", StripAltSuffix("ABC"))
	assert.Equal(t, "", StripAltSuffix(""))
	assert.Equal(t, "ALT", StripAltSuffix("ALT"))

	for _, id := range []string{"ABC", "ABC_ALT", "ABC_ALT_ALT", "x_Alt", "_ALT"} {
		once := StripAltSuffix(id)
		assert.Equal(t, once, StripAltSuffix(once), id)
	}
}

func TestDecodeGamesPreservesOrder(t *testing.T) {
	games := mustGames(t)
	assert.Equal(t, "Lakers @ Celtics", games[0].GameName)
	assert.Equal(t, "Alcaraz", games[2].Player1)

	outcomes := games[0].Markets[0].Outcomes
	require.Len(t, outcomes, 2)
	assert.Equal(t, "home", outcomes[0].Key)
	assert.Equal(t, "away", outcomes[1].Key)
}

func TestLookupResolvesFirstMatch(t *testing.T) {
	ix := NewIndex(mustGames(t), mustSchedule(t))

	res, ok := ix.Lookup("OUT_HOME").(Resolved)
	require.True(t, ok)
	assert.Equal(t, "m-spread", res.Info.MarketID)
	assert.Equal(t, "HOME_COVERS", res.Info.OutcomeType)
	assert.Equal(t, "Point Spread", res.Info.DisplayName)
	assert.Equal(t, "Celtics", res.Info.HomeTeam)
	assert.Equal(t, "basketball", res.Info.Sport)
	assert.Equal(t, "2025-05-01T23:00:00Z", res.Info.ScheduledDate)
}

func TestLookupMatchesAcrossAltSuffix(t *testing.T) {
	ix := NewIndex(mustGames(t), mustSchedule(t))

	res, ok := ix.Lookup("TEN_P1").(Resolved)
	require.True(t, ok)
	assert.Equal(t, "PLAYER_1", res.Info.OutcomeType)
	assert.Equal(t, "Sinner", res.Info.Player2)
	assert.Equal(t, "2025-05-02T23:00:00Z", res.Info.ScheduledDate)

	res, ok = ix.Lookup("TEN_P2_ALT").(Resolved)
	require.True(t, ok)
	assert.Equal(t, "PLAYER_2", res.Info.OutcomeType)
}

func TestLookupUnresolved(t *testing.T) {
	ix := NewIndex(mustGames(t), nil)

	res, ok := ix.Lookup("MISSING").(Unresolved)
	require.True(t, ok)
	assert.Equal(t, "MISSING", res.OutcomeID)

	_, ok = ix.Lookup("").(Unresolved)
	assert.True(t, ok)
}

func TestLookupWithoutScheduleLeavesDateEmpty(t *testing.T) {
	res, ok := NewIndex(mustGames(t), nil).Lookup("OUT_AWAY").(Resolved)
	require.True(t, ok)
	assert.Empty(t, res.Info.ScheduledDate)
}

func TestFind(t *testing.T) {
	info, err := Find(mustGames(t), "OUT_AWAY")
	require.NoError(t, err)
	assert.Equal(t, "AWAY_COVERS", info.OutcomeType)

	_, err = Find(mustGames(t), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeScheduleStringBodyAndMerge(t *testing.T) {
	first, err := DecodeSchedule([]byte(`{"body":"{\"a\":{\"game_date\":\"d1\",\"markets\":{\"m1\":1}},\"b\":{\"game_date\":\"d2\",\"markets\":{}}}"}`))
	require.NoError(t, err)
	require.Equal(t, 2, first.Len())

	second, err := DecodeSchedule([]byte(`{"a":{"game_date":"d3","markets":{"m9":1}},"c":{"game_date":1746124200}}`))
	require.NoError(t, err)

	var merged Schedule
	merged.Merge(first)
	merged.Merge(second)
	games := merged.Games()
	require.Len(t, games, 3)
	assert.Equal(t, "a", games[0].GameID)
	assert.Equal(t, "d3", games[0].GameDate)
	assert.Equal(t, []string{"m9"}, games[0].MarketIDs)
	assert.Equal(t, "1746124200", games[2].GameDate)
}

func TestDecodeGamesWithoutBody(t *testing.T) {
	games, _, err := DecodeGames([]byte(`{"message":"down"}`))
	require.NoError(t, err)
	assert.Empty(t, games)
}
