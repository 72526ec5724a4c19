package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"odds-arb-watcher/internal/app"
)

var (
	onceLimit         int
	onceOnlyArbitrage bool
	oncePersist       bool
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one refresh cycle and print the ranked opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		if onceLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}
		return getApp().Once(cmd.Context(), app.OnceOptions{
			Limit:         onceLimit,
			OnlyArbitrage: onceOnlyArbitrage,
			Persist:       oncePersist,
		})
	},
}

func init() {
	onceCmd.Flags().IntVar(&onceLimit, "limit", 20, "Number of opportunities to print (0 = all)")
	onceCmd.Flags().BoolVar(&onceOnlyArbitrage, "only-arbitrage", false, "Print only markets with a guaranteed profit")
	onceCmd.Flags().BoolVar(&oncePersist, "persist", false, "Store the cycle in the database")
}
