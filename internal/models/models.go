package models

// All returns every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&PriceHistory{},
		&Prediction{},
		&Position{},
		&Trade{},
		&ExchangeAccount{},
		&ExchangeTradeLog{},
		&GridBot{},
		&GridLevel{},
		&DCABot{},
		&BotOrder{},
	}
}
