package cmd

import (
	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "AI trading assistant: paper trading, grid and DCA bots, price predictions",
	Long: `Assistant serves the paper trading API and runs the bot scheduler.

It also provides maintenance commands:
  - train a prediction model from stored candles
  - sync price history from Binance
  - seed a demo user and sample price history
  - export a user's paper trades as CSV

Configuration comes from configs/config.yml, a .env file and the environment.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "./configs", "directory holding config.yml")
}
