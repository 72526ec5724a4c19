package cli

import (
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <outcome-id>",
	Short: "Resolve an outcome id against the live game catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Lookup(cmd.Context(), args[0])
	},
}
