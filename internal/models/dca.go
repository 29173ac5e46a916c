package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TakeProfitFix   = "FIX"
	TakeProfitTrail = "TRAIL"
)

// DCABot buys (or sells) a fixed amount on a schedule, with optional safety orders.
type DCABot struct {
	gorm.Model
	UserID            uint       `gorm:"index;not null" json:"user_id"`
	Symbol            string     `gorm:"size:20;not null" json:"symbol"`
	Side              string     `gorm:"size:4;not null" json:"side"`
	BuyAmount         float64    `gorm:"not null" json:"buy_amount"`
	Interval          string     `gorm:"size:10;not null" json:"interval"`
	BaseOrderSize     float64    `gorm:"column:base_order_size" json:"base_order_size"`
	DCAOrderSize      float64    `gorm:"column:dca_order_size" json:"dca_order_size"`
	PriceDeviationPct float64    `gorm:"column:price_deviation_pct" json:"price_deviation_pct"`
	TakeProfitPct     *float64   `gorm:"column:take_profit_pct" json:"take_profit_pct"`
	TakeProfitType    string     `gorm:"column:take_profit_type;size:5" json:"take_profit_type"`
	MaxDCAOrders      int        `gorm:"column:max_dca_orders" json:"max_dca_orders"`
	StopLossPct       *float64   `gorm:"column:stop_loss_pct" json:"stop_loss_pct"`
	VolumeMultiplier  float64    `gorm:"column:volume_multiplier" json:"volume_multiplier"`
	StepMultiplier    float64    `gorm:"column:step_multiplier" json:"step_multiplier"`
	TriggerPrice      *float64   `gorm:"column:trigger_price" json:"trigger_price"`
	CooldownSeconds   int        `gorm:"column:cooldown_seconds" json:"cooldown_seconds"`
	RangeLower        *float64   `gorm:"column:range_lower" json:"range_lower"`
	RangeUpper        *float64   `gorm:"column:range_upper" json:"range_upper"`
	EndOnStop         bool       `gorm:"column:end_on_stop" json:"end_on_stop"`
	ExchangeAccountID *uint      `gorm:"column:exchange_account_id" json:"exchange_account_id"`
	IsActive          bool       `gorm:"index" json:"is_active"`
	LastRunAt         *time.Time `json:"last_run_at"`
	ExecutionCount    int        `json:"execution_count"`
}

// TableName keeps the historical table name.
func (DCABot) TableName() string {
	return "dca_bots"
}
