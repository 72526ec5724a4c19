package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per refresh.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	SkipFirstRun bool
}

// Scheduler runs a job with a fixed delay between the end of one run and
// the start of the next, so runs never overlap.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick immediately and then after every interval until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	if s.opts.SkipFirstRun {
		if err := sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}

	for {
		at := time.Now().UTC()
		s.logger.Debug().Time("at", at).Msg("executing scheduled tick")
		if err := tick(ctx, at); err != nil {
			s.logger.Error().Err(err).Time("at", at).Msg("tick execution failed")
		}

		s.logger.Debug().Dur("delay", s.opts.Interval).Msg("waiting for next tick")
		if err := sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
