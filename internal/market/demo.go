package market

// Static data served when no CoinMarketCap key is configured.

var demoCoins = []Coin{
	{Rank: 1, Name: "Bitcoin", Symbol: "BTC", Price: 98500.00, MarketCap: 1950000000000, Volume24h: 45000000000, PercentChange1h: 0.5, PercentChange24h: 2.3, PercentChange7d: -1.2},
	{Rank: 2, Name: "Ethereum", Symbol: "ETH", Price: 3800.00, MarketCap: 450000000000, Volume24h: 20000000000, PercentChange1h: 0.3, PercentChange24h: 1.8, PercentChange7d: 3.5},
	{Rank: 3, Name: "Binance Coin", Symbol: "BNB", Price: 650.00, MarketCap: 95000000000, Volume24h: 2000000000, PercentChange1h: -0.2, PercentChange24h: 0.9, PercentChange7d: 5.2},
	{Rank: 4, Name: "Solana", Symbol: "SOL", Price: 230.00, MarketCap: 75000000000, Volume24h: 3500000000, PercentChange1h: 1.2, PercentChange24h: 5.6, PercentChange7d: 12.3},
	{Rank: 5, Name: "XRP", Symbol: "XRP", Price: 0.62, MarketCap: 35000000000, Volume24h: 1500000000, PercentChange1h: 0.1, PercentChange24h: -0.5, PercentChange7d: 2.1},
}

func demoQuote(symbol string) Quote {
	for _, c := range demoCoins {
		if c.Symbol == symbol {
			return Quote{Price: c.Price, PercentChange1h: c.PercentChange1h, PercentChange24h: c.PercentChange24h}
		}
	}
	return Quote{}
}

func floatPtr(v float64) *float64 { return &v }

var demoDetails = map[string]TokenDetails{
	"BTC": {
		Name:              "Bitcoin",
		Symbol:            "BTC",
		Price:             98500.00,
		MarketCap:         1950000000000,
		MarketCapRank:     1,
		Volume24h:         45000000000,
		PercentChange1h:   0.5,
		PercentChange24h:  2.3,
		PercentChange7d:   -1.2,
		PercentChange30d:  8.5,
		CirculatingSupply: 19000000,
		TotalSupply:       floatPtr(19000000),
		MaxSupply:         floatPtr(21000000),
		Description:       "Bitcoin is a decentralized digital currency without a central bank or administrator. It can be sent from user to user on the peer-to-peer bitcoin network.",
		Category:          "currency",
		Tags:              []string{"mineable", "pow", "sha-256"},
	},
	"ETH": {
		Name:              "Ethereum",
		Symbol:            "ETH",
		Price:             3800.00,
		MarketCap:         450000000000,
		MarketCapRank:     2,
		Volume24h:         20000000000,
		PercentChange1h:   0.3,
		PercentChange24h:  1.8,
		PercentChange7d:   3.5,
		PercentChange30d:  12.3,
		CirculatingSupply: 120000000,
		TotalSupply:       floatPtr(120000000),
		Description:       "Ethereum is a decentralized platform for applications that run exactly as programmed without any possibility of fraud or third party interference.",
		Category:          "smart-contract-platform",
		Tags:              []string{"smart-contracts", "ethereum-ecosystem", "pos"},
	},
}
