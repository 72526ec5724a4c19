package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/odds"
	"odds-arb-watcher/internal/pipeline"
)

func TestEncode(t *testing.T) {
	snap := &pipeline.Snapshot{
		CycleID: "cycle",
		Status:  pipeline.StatusUpdated,
		Records: []odds.Record{{Quote: odds.Quote{OutcomeID: "x", AmericanOdds: odds.NewAmerican(-110)}, Game: "G"}},
		Opportunities: []arbitrage.Opportunity{
			{Key: "k1", ProfitPercent: 3, IsArbitrage: true},
			{Key: "k2", ProfitPercent: -1},
		},
	}

	body, summary, err := Encode(snap, 1)
	require.NoError(t, err)

	back, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "cycle", back.CycleID)
	require.Len(t, back.Records, 1)
	v, ok := back.Records[0].AmericanOdds.Value()
	assert.True(t, ok)
	assert.Equal(t, -110, v)

	var s pipeline.Summary
	require.NoError(t, json.Unmarshal(summary, &s))
	assert.Equal(t, 2, s.Opportunities)
	assert.Equal(t, 1, s.Arbitrages)
	require.Len(t, s.Top, 1)
	assert.Equal(t, "k1", s.Top[0].Key)

	_, _, err = Encode(nil, 1)
	assert.Error(t, err)

	_, err = Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestNewRequiresReachableRedis(t *testing.T) {
	_, err := New(context.Background(), Options{}, zerolog.Nop())
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err = New(ctx, Options{Addr: "127.0.0.1:1"}, zerolog.Nop())
	assert.Error(t, err)

	var p *Publisher
	assert.NoError(t, p.Close())
}
