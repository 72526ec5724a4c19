package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/cache"
	"odds-arb-watcher/internal/pipeline"
)

// Show prints recently persisted opportunities, or alerts with opts.Alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Cached {
		return a.showCached(ctx, opts, os.Stdout)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Fprintln(os.Stdout, "no alerts found")
			return nil
		}
		return renderAlerts(os.Stdout, alerts)
	}

	latest, err := store.LatestCycle(ctx)
	if err == nil {
		fmt.Fprintf(os.Stdout, "latest cycle %s at %s: %s, %d records, %d arbitrages\n",
			latest.ID, latest.CompletedAt.UTC().Format("2006-01-02 15:04:05"), latest.Status, latest.Records, latest.Arbitrages)
	}

	rows, err := store.ListRecentOpportunities(ctx, opts.Limit, opts.OnlyArbitrage)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no opportunities found")
		return nil
	}
	return renderStoredOpportunities(os.Stdout, rows)
}

// showCached prints the snapshot the running service last published to redis.
func (a *App) showCached(ctx context.Context, opts ShowOptions, out io.Writer) error {
	pub, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if pub == nil {
		return errors.New("redis not configured; cannot show cached snapshot")
	}
	defer pub.Close()

	snap, err := pub.Latest(ctx)
	if errors.Is(err, cache.ErrNoSnapshot) {
		fmt.Fprintln(out, "no cached snapshot")
		return nil
	}
	if err != nil {
		return err
	}
	return writeSnapshot(out, snap, opts)
}

func writeSnapshot(out io.Writer, snap *pipeline.Snapshot, opts ShowOptions) error {
	fmt.Fprintf(out, "cached cycle %s at %s: %s, %d records, %d arbitrages\n",
		snap.CycleID, snap.CompletedAt.UTC().Format("2006-01-02 15:04:05"), snap.Status, len(snap.Records), snap.Arbitrages())

	opps := snap.Opportunities
	if opts.OnlyArbitrage {
		opps = arbitrage.OnlyArbitrage(opps)
	}
	if opts.Limit > 0 && len(opps) > opts.Limit {
		opps = opps[:opts.Limit]
	}
	if len(opps) == 0 {
		fmt.Fprintln(out, "no opportunities found")
		return nil
	}
	return renderOpportunities(out, opps)
}
