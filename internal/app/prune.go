package app

import (
	"context"
	"errors"
)

// Prune removes cycles, their opportunities, and alerts older than
// opts.Before.
func (a *App) Prune(ctx context.Context, opts PruneOptions) error {
	if opts.Before.IsZero() {
		return errors.New("prune cutoff 不能为空")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn 未配置，无法清理")
	}
	defer closeStore()

	res, err := store.PruneBefore(ctx, opts.Before.UTC())
	if err != nil {
		return err
	}

	a.Logger.Info().
		Time("before", opts.Before.UTC()).
		Int64("cycles", res.Cycles).
		Int64("opportunities", res.Opportunities).
		Int64("alerts", res.Alerts).
		Msg("清理完成")
	return nil
}
