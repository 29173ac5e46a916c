package models

import "time"

const (
	BotTypeGrid = "grid"
	BotTypeDCA  = "dca"

	OrderTypeBase       = "BASE"
	OrderTypeSafety     = "SAFETY"
	OrderTypeTakeProfit = "TAKE_PROFIT"
	OrderTypeStopLoss   = "STOP_LOSS"

	OrderStatusPending   = "PENDING"
	OrderStatusFilled    = "FILLED"
	OrderStatusCancelled = "CANCELLED"
)

// BotOrder is a planned order of a bot, such as a DCA safety order.
type BotOrder struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	BotType   string    `gorm:"index:idx_bot_orders_bot;size:10;not null" json:"bot_type"`
	BotID     uint      `gorm:"index:idx_bot_orders_bot;not null" json:"bot_id"`
	Sequence  int       `json:"sequence"`
	OrderType string    `gorm:"size:12;not null" json:"order_type"`
	Side      string    `gorm:"size:4;not null" json:"side"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	Status    string    `gorm:"size:10;not null" json:"status"`
}
