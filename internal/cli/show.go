package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"odds-arb-watcher/internal/app"
)

var (
	showLimit         int
	showOnlyArbitrage bool
	showAlerts        bool
	showCached        bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recently persisted opportunities or alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		if showAlerts && showCached {
			return fmt.Errorf("--alerts and --cached cannot be combined")
		}

		opts := app.ShowOptions{
			Limit:         showLimit,
			OnlyArbitrage: showOnlyArbitrage,
			Alerts:        showAlerts,
			Cached:        showCached,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showOnlyArbitrage, "only-arbitrage", false, "Show only true arbitrages")
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "Show sent alerts instead of opportunities")
	showCmd.Flags().BoolVar(&showCached, "cached", false, "Show the latest snapshot held in redis instead of the database")
}
