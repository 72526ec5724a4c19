package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunTicksImmediatelyThenRepeats(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var ticks atomic.Int32
	first := make(chan time.Duration, 1)
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			if ticks.Add(1) == 1 {
				first <- time.Since(start)
			}
			if ticks.Load() == 3 {
				cancel()
			}
			return errors.New("tick errors are logged, not fatal")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if d := <-first; d > 100*time.Millisecond {
		t.Fatalf("首次执行应立即开始, 延迟 %s", d)
	}
	if ticks.Load() != 3 {
		t.Fatalf("expected 3 ticks, got %d", ticks.Load())
	}
}

func TestRunNeverOverlaps(t *testing.T) {
	s := New(Options{Interval: time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var running, overlaps atomic.Int32
	_ = s.Run(ctx, func(context.Context, time.Time) error {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	if overlaps.Load() != 0 {
		t.Fatalf("ticks overlapped %d times", overlaps.Load())
	}
}

func TestRunCancelledDuringStartupDelay(t *testing.T) {
	s := New(Options{Interval: time.Second, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Run(ctx, func(context.Context, time.Time) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("cancelled scheduler must not tick: err=%v called=%v", err, called)
	}
}

func TestRunSkipFirstRunWaitsOneInterval(t *testing.T) {
	interval := 50 * time.Millisecond
	s := New(Options{Interval: interval, SkipFirstRun: true}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	first := make(chan time.Duration, 1)
	go func() {
		_ = s.Run(ctx, func(context.Context, time.Time) error {
			select {
			case first <- time.Since(start):
			default:
			}
			cancel()
			return nil
		})
	}()

	select {
	case d := <-first:
		if d < interval {
			t.Fatalf("跳过首次执行时应等待一个间隔, 实际 %s", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never ticked")
	}
}

func TestNewPanicsOnInvalidInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("non-positive interval should panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}
