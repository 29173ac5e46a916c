package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/prices"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	demoUsername = "testuser"
	demoEmail    = "test@example.com"
	demoPassword = "password123"
)

// seedMarkets are the sample series written by the seed command.
var seedMarkets = []struct {
	symbol string
	start  float64
}{
	{"BTCUSDT", 45000},
	{"ETHUSDT", 2500},
}

var seedCandles int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo user and sample hourly price history",
	Long: `Seed prepares a fresh database for local use: it registers the demo user
(testuser / password123) and writes synthetic hourly candles for BTCUSDT and
ETHUSDT ending at the current hour. Running it twice is harmless.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVarP(&seedCandles, "candles", "n", 500, "number of hourly candles per symbol")
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	user, err := ensureDemoUser(ctx, a)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Demo user %q (id %d), balance $%.2f\n", user.Username, user.ID, user.Balance)

	start := time.Now().Truncate(time.Hour).Add(-time.Duration(seedCandles-1) * time.Hour)
	for i, m := range seedMarkets {
		candles := prices.SampleCandles(m.symbol, m.start, seedCandles, start, int64(i+1))
		inserted, err := a.prices.Insert(ctx, candles)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", m.symbol, err)
		}
		fmt.Fprintf(out, "%-10s inserted %d of %d candles\n", m.symbol, inserted, len(candles))
	}
	return nil
}

func ensureDemoUser(ctx context.Context, a *app) (*models.User, error) {
	var existing models.User
	err := a.db.WithContext(ctx).Where("username = ?", demoUsername).First(&existing).Error
	if err == nil {
		a.logger.Info("Demo user already exists", zap.Uint("user_id", existing.ID))
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up demo user: %w", err)
	}
	return a.auth.Register(ctx, demoUsername, demoEmail, demoPassword)
}
