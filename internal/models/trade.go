package models

import "gorm.io/gorm"

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade represents a completed paper trade.
type Trade struct {
	gorm.Model
	UserID      uint    `gorm:"index;not null" json:"user_id"`
	Symbol      string  `gorm:"size:20;not null" json:"symbol"`
	Side        string  `gorm:"size:4;not null" json:"side"` // "BUY" or "SELL"
	Quantity    float64 `gorm:"not null" json:"quantity"`
	Price       float64 `gorm:"not null" json:"price"`
	TotalAmount float64 `gorm:"not null" json:"total_amount"`
}
