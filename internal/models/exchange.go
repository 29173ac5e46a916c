package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TradeStatusSimulated = "SIMULATED"
	TradeStatusFilled    = "FILLED"
	TradeStatusError     = "ERROR"
)

// ExchangeAccount holds API credentials for a linked exchange. The secret is stored encrypted.
type ExchangeAccount struct {
	gorm.Model
	UserID             uint   `gorm:"index;not null" json:"user_id"`
	ExchangeName       string `gorm:"size:20;not null" json:"exchange_name"`
	Label              string `gorm:"size:100" json:"label"`
	APIKey             string `gorm:"column:api_key;not null" json:"-"`
	APISecretEncrypted string `gorm:"column:api_secret_encrypted;not null" json:"-"`
	IsTestnet          bool   `json:"is_testnet"`
	IsActive           bool   `gorm:"index" json:"is_active"`
}

// ExchangeTradeLog is the audit record of every routed order, simulated or live.
type ExchangeTradeLog struct {
	gorm.Model
	UserID            uint           `gorm:"index;not null" json:"user_id"`
	ExchangeAccountID uint           `gorm:"index" json:"exchange_account_id"`
	Symbol            string         `gorm:"size:20;not null" json:"symbol"`
	Side              string         `gorm:"size:4;not null" json:"side"`
	Amount            float64        `json:"amount"`
	Price             float64        `json:"price"`
	TotalValue        float64        `json:"total_value"`
	Status            string         `gorm:"index;size:12;not null" json:"status"`
	ExchangeOrderID   string         `gorm:"size:64" json:"exchange_order_id"`
	RawResponse       datatypes.JSON `json:"raw_response"`
	TradeSource       string         `gorm:"index;size:64" json:"trade_source"`
	Fee               float64        `json:"fee"`
	FeeCurrency       string         `gorm:"size:10" json:"fee_currency"`
	ErrorMessage      string         `json:"error_message,omitempty"`
}
