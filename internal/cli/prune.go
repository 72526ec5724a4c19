package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"odds-arb-watcher/internal/app"
)

var (
	pruneBefore    string
	pruneOlderThan time.Duration
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete persisted cycles and alerts older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := pruneCutoff(pruneBefore, pruneOlderThan, time.Now())
		if err != nil {
			return err
		}
		return getApp().Prune(cmd.Context(), app.PruneOptions{Before: before})
	},
}

func pruneCutoff(before string, olderThan time.Duration, now time.Time) (time.Time, error) {
	switch {
	case before != "" && olderThan > 0:
		return time.Time{}, fmt.Errorf("--before and --older-than are mutually exclusive")
	case before != "":
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --before value: %w", err)
		}
		if t.After(now) {
			return time.Time{}, fmt.Errorf("--before must not be in the future")
		}
		return t, nil
	case olderThan > 0:
		return now.Add(-olderThan), nil
	}
	return time.Time{}, fmt.Errorf("one of --before or --older-than must be provided")
}

func init() {
	pruneCmd.Flags().StringVar(&pruneBefore, "before", "", "Cutoff timestamp (RFC3339, exclusive)")
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "Delete rows older than this duration, e.g. 168h")
}
