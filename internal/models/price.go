package models

import "time"

// PriceHistory is one OHLCV candle.
type PriceHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Symbol    string    `gorm:"uniqueIndex:idx_price_symbol_ts;size:20;not null" json:"symbol"`
	Timestamp time.Time `gorm:"uniqueIndex:idx_price_symbol_ts;not null" json:"timestamp"`
	Open      float64   `json:"open_price"`
	High      float64   `json:"high_price"`
	Low       float64   `json:"low_price"`
	Close     float64   `json:"close_price"`
	Volume    float64   `json:"volume"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the historical table name.
func (PriceHistory) TableName() string {
	return "price_history"
}
