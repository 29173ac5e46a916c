package cmd

import (
	"context"
	"fmt"

	"ai-trading-assistant-go/internal/prediction"
	"ai-trading-assistant-go/internal/prices"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	trainSymbol   string
	trainInterval string
	trainLimit    int
	trainSync     bool
	trainEpochs   int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the direction model and write it to the models directory",
	Long: `Train fits the logistic-regression direction model on stored candles and
writes the artifact as YAML to prediction.models_dir.

With --sync (the default) the newest candles are fetched from Binance first.

Example:
  assistant train --symbol BTCUSDT --interval 1h --limit 1000`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVarP(&trainSymbol, "symbol", "s", "BTCUSDT", "symbol to train on")
	trainCmd.Flags().StringVarP(&trainInterval, "interval", "i", "1h", "candle interval")
	trainCmd.Flags().IntVarP(&trainLimit, "limit", "l", 1000, "number of candles to train on")
	trainCmd.Flags().BoolVar(&trainSync, "sync", true, "fetch the newest candles before training")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", prediction.DefaultTrainOptions.Epochs, "gradient descent epochs")
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	symbol := prices.Normalize(trainSymbol)

	if trainSync {
		if _, err := a.prices.Sync(ctx, symbol, trainInterval, trainLimit); err != nil {
			a.logger.Warn("Sync before training failed, using stored candles", zap.Error(err))
		}
	}

	opts := prediction.DefaultTrainOptions
	opts.Epochs = trainEpochs
	trainer := prediction.NewService(a.db, a.prices, a.cfg.Prediction.ModelsDir, trainInterval, a.logger)
	model, path, err := trainer.Train(ctx, symbol, trainLimit, opts)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model saved to %s\n", path)
	fmt.Fprintf(out, "  Samples: %d train / %d test\n", model.TrainSamples, model.TestSamples)
	fmt.Fprintf(out, "  Accuracy: %.1f%% train / %.1f%% test\n", model.TrainAccuracy*100, model.TestAccuracy*100)
	return nil
}
