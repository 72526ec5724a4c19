package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"odds-arb-watcher/internal/app"
)

var simulateOpts app.SimulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一个两边盘口并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOpts.HomeOdds == 0 || simulateOpts.AwayOdds == 0 {
			return errors.New("--home 与 --away 必须为非零美式赔率")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateOpts)
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateOpts.HomeOdds, "home", 0, "主队美式赔率, 例如 150")
	simulateCmd.Flags().IntVar(&simulateOpts.AwayOdds, "away", 0, "客队美式赔率, 例如 -120")
	simulateCmd.Flags().StringVar(&simulateOpts.HomeBook, "home-book", "DRAFTKINGS", "主队报价的博彩公司")
	simulateCmd.Flags().StringVar(&simulateOpts.AwayBook, "away-book", "FANDUEL", "客队报价的博彩公司")
	simulateCmd.Flags().StringVar(&simulateOpts.Game, "game", "", "比赛名称")
	simulateCmd.Flags().Float64Var(&simulateOpts.Threshold, "threshold", 0, "覆盖配置中的利润阈值 (%)")
}
