package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	GridTypeArithmetic = "ARITHMETIC"
	GridTypeGeometric  = "GEOMETRIC"
)

// GridBot places buy and sell levels inside a price range.
type GridBot struct {
	gorm.Model
	UserID            uint        `gorm:"index;not null" json:"user_id"`
	Symbol            string      `gorm:"size:20;not null" json:"symbol"`
	QuoteCurrency     string      `gorm:"size:10;not null" json:"quote_currency"`
	LowerPrice        float64     `gorm:"not null" json:"lower_price"`
	UpperPrice        float64     `gorm:"not null" json:"upper_price"`
	GridCount         int         `gorm:"not null" json:"grid_count"`
	GridType          string      `gorm:"size:10;not null" json:"grid_type"`
	Investment        float64     `gorm:"not null" json:"investment"`
	TrailingUp        bool        `json:"trailing_up"`
	GridTriggerPrice  *float64    `json:"grid_trigger_price"`
	TakeProfitPct     *float64    `json:"take_profit_pct"`
	StopLossPrice     *float64    `json:"stop_loss_price"`
	SellAllOnStop     bool        `json:"sell_all_on_stop"`
	ExchangeAccountID *uint       `json:"exchange_account_id"`
	IsActive          bool        `gorm:"index" json:"is_active"`
	Levels            []GridLevel `gorm:"constraint:OnDelete:CASCADE" json:"levels,omitempty"`
}

// GridLevel is a single price level of a grid bot.
type GridLevel struct {
	ID         uint       `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	GridBotID  uint       `gorm:"index;not null" json:"grid_bot_id"`
	LevelIndex int        `gorm:"not null" json:"level_index"`
	Price      float64    `gorm:"not null" json:"price"`
	Side       string     `gorm:"size:4;not null" json:"side"`
	IsFilled   bool       `json:"is_filled"`
	FilledAt   *time.Time `json:"filled_at"`
}
