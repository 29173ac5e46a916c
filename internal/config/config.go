package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSecretKey is only meant for local development.
const DefaultSecretKey = "dev-secret-key-change-in-production"

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Logger     Logger     `mapstructure:"logger"`
	Trading    Trading    `mapstructure:"trading"`
	Binance    Binance    `mapstructure:"binance"`
	Market     Market     `mapstructure:"market"`
	Redis      Redis      `mapstructure:"redis"`
	Engine     Engine     `mapstructure:"engine"`
	Prediction Prediction `mapstructure:"prediction"`
	Security   Security   `mapstructure:"security"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port           int           `mapstructure:"port"`
	SecretKey      string        `mapstructure:"secret_key"`
	Debug          bool          `mapstructure:"debug"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client IP
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Trading holds paper trading and order routing settings.
type Trading struct {
	InitialBalance     float64 `mapstructure:"initial_balance"`
	LiveTradingEnabled bool    `mapstructure:"live_trading_enabled"`
	FallbackPrice      float64 `mapstructure:"fallback_price"`
}

// Binance holds the configuration for the public Binance market data client.
type Binance struct {
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Market holds the third-party market data settings.
type Market struct {
	CMCApiKey    string        `mapstructure:"cmc_api_key"`
	CMCBaseURL   string        `mapstructure:"cmc_base_url"`
	FearGreedURL string        `mapstructure:"fear_greed_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Redis holds the cache settings. An empty Addr disables caching.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Engine holds the bot scheduler settings.
type Engine struct {
	Enabled      bool     `mapstructure:"enabled"`
	TickInterval int      `mapstructure:"tick_interval"`
	Symbols      []string `mapstructure:"symbols"`
	Timeframe    string   `mapstructure:"timeframe"`
	SyncLimit    int      `mapstructure:"sync_limit"`
}

// Prediction holds model training and inference settings.
type Prediction struct {
	ModelsDir string `mapstructure:"models_dir"`
	Timeframe string `mapstructure:"timeframe"`
}

// Security holds the key used to encrypt exchange API secrets.
type Security struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

// LoadConfig reads configuration from an optional config file, a .env file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindLegacyEnv(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.secret_key", DefaultSecretKey)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_limit_burst", 50)
	v.SetDefault("server.token_ttl", 24*time.Hour)

	v.SetDefault("database.dsn", "trading_assistant.db")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("trading.initial_balance", 10000.0)
	v.SetDefault("trading.live_trading_enabled", false)
	v.SetDefault("trading.fallback_price", 45000.0)

	v.SetDefault("binance.rate_limit", 20)      // requests per second
	v.SetDefault("binance.rate_limit_burst", 5) // burst size

	v.SetDefault("market.cmc_base_url", "https://pro-api.coinmarketcap.com/v1")
	v.SetDefault("market.fear_greed_url", "https://api.alternative.me/fng/")
	v.SetDefault("market.timeout", 10*time.Second)

	v.SetDefault("engine.enabled", true)
	v.SetDefault("engine.tick_interval", 60)
	v.SetDefault("engine.symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("engine.timeframe", "1h")
	v.SetDefault("engine.sync_limit", 300)

	v.SetDefault("prediction.models_dir", "models")
	v.SetDefault("prediction.timeframe", "1h")
}

// bindLegacyEnv maps the flat environment variable names onto their config keys.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.secret_key", "SECRET_KEY", "SERVER_SECRET_KEY")
	_ = v.BindEnv("server.debug", "DEBUG", "SERVER_DEBUG")
	_ = v.BindEnv("database.dsn", "DATABASE_PATH", "DATABASE_DSN")
	_ = v.BindEnv("market.cmc_api_key", "CMC_API_KEY", "MARKET_CMC_API_KEY")
	_ = v.BindEnv("market.fear_greed_url", "FEAR_GREED_API_URL", "MARKET_FEAR_GREED_URL")
	_ = v.BindEnv("trading.live_trading_enabled", "LIVE_TRADING_ENABLED", "TRADING_LIVE_TRADING_ENABLED")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR", "REDIS_URL")
	_ = v.BindEnv("security.encryption_key", "ENCRYPTION_KEY", "SECURITY_ENCRYPTION_KEY")
}

// UsesDefaultSecret reports whether the server is running with the development secret.
func (c *Config) UsesDefaultSecret() bool {
	return c.Server.SecretKey == DefaultSecretKey
}
