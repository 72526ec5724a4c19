package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"odds-arb-watcher/internal/arbitrage"
	"odds-arb-watcher/internal/service"
)

// Once runs a single refresh cycle in the foreground and prints the ranked
// opportunities.
func (a *App) Once(ctx context.Context, opts OnceOptions) error {
	return a.once(ctx, opts, os.Stdout)
}

func (a *App) once(ctx context.Context, opts OnceOptions, out io.Writer) error {
	svcOpts := service.Options{
		Sources:    a.newSources().service(),
		Stages:     a.newStages(),
		LockKey:    a.Config.Scheduler.AdvisoryLockKey,
		SummaryTop: summaryTop,
	}

	if opts.Persist {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("database.dsn 未配置，无法持久化")
		}
		defer closeStore()
		svcOpts.Store = store
		svcOpts.Locker = store
	}

	snap, err := service.New(svcOpts, a.Logger).Refresh(ctx)
	if err != nil {
		return err
	}

	opps := snap.Opportunities
	if opts.OnlyArbitrage {
		opps = arbitrage.OnlyArbitrage(opps)
	}
	if opts.Limit > 0 && opts.Limit < len(opps) {
		opps = opps[:opts.Limit]
	}

	fmt.Fprintf(out, "%s  cycle=%s records=%d markets=%d arbitrages=%d\n",
		snap.Status, snap.CycleID, len(snap.Records), snap.Markets, snap.Arbitrages())
	if len(opps) == 0 {
		fmt.Fprintln(out, "no opportunities found")
		return nil
	}
	return renderOpportunities(out, opps)
}
