package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"odds-arb-watcher/internal/pipeline"
)

// ErrNoSnapshot is returned by Latest when nothing has been published yet.
var ErrNoSnapshot = errors.New("cache: no snapshot")

// Options parameterise the redis publisher.
type Options struct {
	Addr        string
	Password    string
	DB          int
	SnapshotKey string
	Channel     string
	SnapshotTTL time.Duration
	TopN        int
}

// Publisher stores the latest snapshot in redis and announces each cycle on
// a pub/sub channel.
type Publisher struct {
	opts   Options
	rdb    *redis.Client
	logger zerolog.Logger
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*Publisher, error) {
	if opts.Addr == "" {
		return nil, errors.New("cache: redis addr is required")
	}
	if opts.SnapshotKey == "" {
		opts.SnapshotKey = "arbwatcher:snapshot"
	}
	if opts.Channel == "" {
		opts.Channel = "arbwatcher:cycles"
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Publisher{
		opts:   opts,
		rdb:    rdb,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Publish writes the snapshot under the snapshot key and publishes its
// summary in one pipeline.
func (p *Publisher) Publish(ctx context.Context, snap *pipeline.Snapshot) error {
	body, summary, err := Encode(snap, p.opts.TopN)
	if err != nil {
		return err
	}

	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, p.opts.SnapshotKey, body, p.opts.SnapshotTTL)
		pipe.Publish(ctx, p.opts.Channel, summary)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: publish snapshot: %w", err)
	}
	p.logger.Debug().Str("cycle_id", snap.CycleID).Int("bytes", len(body)).Msg("snapshot published")
	return nil
}

// Latest reads back the stored snapshot.
func (p *Publisher) Latest(ctx context.Context) (*pipeline.Snapshot, error) {
	raw, err := p.rdb.Get(ctx, p.opts.SnapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get snapshot: %w", err)
	}
	return Decode(raw)
}

// Close closes the redis connection.
func (p *Publisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}

// Decode parses a stored snapshot body.
func Decode(body []byte) (*pipeline.Snapshot, error) {
	var snap pipeline.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Encode renders the stored snapshot and the announced summary.
func Encode(snap *pipeline.Snapshot, top int) (body, summary []byte, err error) {
	if snap == nil {
		return nil, nil, errors.New("cache: nil snapshot")
	}
	if body, err = json.Marshal(snap); err != nil {
		return nil, nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if summary, err = json.Marshal(pipeline.Summarize(snap, top)); err != nil {
		return nil, nil, fmt.Errorf("encode summary: %w", err)
	}
	return body, summary, nil
}
