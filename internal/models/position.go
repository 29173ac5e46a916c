package models

import "time"

// Position is a paper holding of one symbol. There is at most one row per user and symbol.
type Position struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"uniqueIndex:idx_portfolio_user_symbol;not null" json:"user_id"`
	Symbol    string    `gorm:"uniqueIndex:idx_portfolio_user_symbol;size:20;not null" json:"symbol"`
	Quantity  float64   `gorm:"not null" json:"quantity"`
	AvgPrice  float64   `gorm:"not null" json:"avg_price"`
}

// TableName keeps the historical table name.
func (Position) TableName() string {
	return "portfolio"
}
