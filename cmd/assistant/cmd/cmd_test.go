package cmd

import (
	"bytes"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWriteTradesCSV(t *testing.T) {
	// Arrange
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	trades := []models.Trade{
		{Model: gorm.Model{ID: 1, CreatedAt: at}, Symbol: "BTCUSDT", Side: "BUY", Quantity: 0.5, Price: 100, TotalAmount: 50},
		{Model: gorm.Model{ID: 2, CreatedAt: at.Add(time.Hour)}, Symbol: "BTCUSDT", Side: "SELL", Quantity: 0.2, Price: 120.5, TotalAmount: 24.1},
	}
	var buf bytes.Buffer

	// Act
	err := writeTradesCSV(&buf, trades)

	// Assert
	require.NoError(t, err)
	expected := "id,time,symbol,side,quantity,price,total\n" +
		"1,2024-03-01T12:30:00Z,BTCUSDT,BUY,0.5,100.00,50.00\n" +
		"2,2024-03-01T13:30:00Z,BTCUSDT,SELL,0.2,120.50,24.10\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteTradesCSV_Empty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeTradesCSV(&buf, nil))
	assert.Equal(t, "id,time,symbol,side,quantity,price,total\n", buf.String())
}

func TestVersionCommand(t *testing.T) {
	// Arrange
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	// Act
	err := rootCmd.Execute()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "assistant version "+version+"\n", out.String())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"serve", "train", "sync-prices", "seed", "export-trades", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
