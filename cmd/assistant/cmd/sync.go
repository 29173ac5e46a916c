package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	syncSymbols   []string
	syncTimeframe string
	syncLimit     int
	syncPruneDays int
)

var syncCmd = &cobra.Command{
	Use:   "sync-prices",
	Short: "Fetch recent candles from Binance into price_history",
	Long: `Sync-prices downloads the newest klines for each symbol and stores the ones
not already present. Without --symbol the engine symbols from config are used.

Example:
  assistant sync-prices --symbol BTCUSDT --symbol ETHUSDT --timeframe 1h --limit 500`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringSliceVarP(&syncSymbols, "symbol", "s", nil, "symbol to sync (repeatable)")
	syncCmd.Flags().StringVarP(&syncTimeframe, "timeframe", "t", "", "kline interval (default engine.timeframe)")
	syncCmd.Flags().IntVarP(&syncLimit, "limit", "l", 0, "number of candles per symbol (default engine.sync_limit)")
	syncCmd.Flags().IntVar(&syncPruneDays, "prune-days", 0, "also delete candles older than this many days")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	symbols := syncSymbols
	if len(symbols) == 0 {
		symbols = a.cfg.Engine.Symbols
	}
	timeframe := syncTimeframe
	if timeframe == "" {
		timeframe = a.cfg.Engine.Timeframe
	}
	limit := syncLimit
	if limit <= 0 {
		limit = a.cfg.Engine.SyncLimit
	}

	ctx := context.Background()
	results, syncErr := a.prices.SyncAll(ctx, symbols, timeframe, limit)

	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%-10s fetched=%d inserted=%d duplicates=%d latest=%.2f\n",
			r.Symbol, r.Fetched, r.Inserted, r.Duplicates, r.LatestPrice)
	}

	if syncPruneDays > 0 {
		removed, err := a.prices.Prune(ctx, time.Now().AddDate(0, 0, -syncPruneDays))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pruned %d candles older than %d days\n", removed, syncPruneDays)
	}

	if syncErr != nil {
		return fmt.Errorf("sync failed for some symbols (%s): %w", strings.Join(symbols, ","), syncErr)
	}
	return nil
}
