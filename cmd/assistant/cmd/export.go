package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"ai-trading-assistant-go/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	exportUser string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export-trades",
	Short: "Write a user's paper trades as CSV",
	Long: `Export-trades writes every paper trade of a user, oldest first, as CSV.

Example:
  assistant export-trades --user testuser --out trades.csv`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportUser, "user", "u", "", "username whose trades to export")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file, - for stdout")
	_ = exportCmd.MarkFlagRequired("user")
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	var user models.User
	if err := a.db.WithContext(ctx).Where("username = ?", exportUser).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %q not found", exportUser)
		}
		return err
	}

	trades, err := a.paper.AllTrades(ctx, user.ID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if exportOut != "-" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("could not create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}

	if err := writeTradesCSV(w, trades); err != nil {
		return err
	}
	if exportOut != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d trades to %s\n", len(trades), exportOut)
	}
	return nil
}

var tradeCSVHeader = []string{"id", "time", "symbol", "side", "quantity", "price", "total"}

func writeTradesCSV(w io.Writer, trades []models.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeCSVHeader); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			strconv.FormatUint(uint64(t.ID), 10),
			t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			t.Symbol,
			t.Side,
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.Price, 'f', 2, 64),
			strconv.FormatFloat(t.TotalAmount, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
