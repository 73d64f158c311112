package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "papertrader - replay historical daily bars as a trading exercise",
	Long: `papertrader replays real A-share daily bars one day at a time. Each day
you buy, sell or skip without seeing the future; at the end the open
position is liquidated at the next close and the session is scored.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
