// Package accounts manages linked exchange accounts and their encrypted credentials.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ai-trading-assistant-go/internal/exchange"
	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/secrets"
	"ai-trading-assistant-go/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound hides whether an account is missing, inactive or owned by someone else.
var ErrNotFound = errors.New("Exchange account not found or access denied")

const maskedKeyLength = 10

var stablecoins = map[string]bool{"USDT": true, "USDC": true, "BUSD": true, "FDUSD": true, "DAI": true}

// AddRequest holds the fields of a new exchange account.
type AddRequest struct {
	Exchange  string `json:"exchange_name"`
	Label     string `json:"account_label"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"is_testnet"`
}

// TestRequest tests either raw credentials or a stored account.
type TestRequest struct {
	AccountID *uint  `json:"account_id"`
	Exchange  string `json:"exchange_name"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"is_testnet"`
}

// Summary is the listing view of an account. It never carries the secret.
type Summary struct {
	ID           uint      `json:"id"`
	Exchange     string    `json:"exchange_name"`
	Label        string    `json:"account_label"`
	APIKeyMasked string    `json:"api_key_masked"`
	IsTestnet    bool      `json:"is_testnet"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account is a stored account with its decrypted secret.
type Account struct {
	models.ExchangeAccount
	APISecret string `json:"-"`
}

// Credentials returns the exchange credentials of the account.
func (a *Account) Credentials() exchange.Credentials {
	return exchange.Credentials{
		Exchange:  a.ExchangeName,
		APIKey:    a.APIKey,
		APISecret: a.APISecret,
		Testnet:   a.IsTestnet,
	}
}

// AssetBalance is one valued line of a live portfolio.
type AssetBalance struct {
	Asset    string  `json:"asset"`
	Free     float64 `json:"free"`
	Locked   float64 `json:"used"`
	Total    float64 `json:"total"`
	PriceUSD float64 `json:"price_usd"`
	ValueUSD float64 `json:"value_usd"`
}

// Portfolio is the live balance sheet of an exchange account.
type Portfolio struct {
	AccountID     uint           `json:"account_id"`
	Exchange      string         `json:"exchange"`
	Label         string         `json:"account_label"`
	IsTestnet     bool           `json:"is_testnet"`
	Balances      []AssetBalance `json:"balances"`
	TotalValueUSD float64        `json:"total_value_usd"`
}

// Service manages exchange accounts.
type Service struct {
	db        *gorm.DB
	encryptor *secrets.Encryptor
	factory   exchange.Factory
	logger    *zap.Logger
}

// NewService creates an accounts Service.
func NewService(db *gorm.DB, encryptor *secrets.Encryptor, factory exchange.Factory, logger *zap.Logger) *Service {
	return &Service{
		db:        db,
		encryptor: encryptor,
		factory:   factory,
		logger:    logger.Named("accounts"),
	}
}

// Add links a new account. The secret is encrypted before it is stored.
func (s *Service) Add(ctx context.Context, userID uint, req AddRequest) (*models.ExchangeAccount, error) {
	info, ok := exchange.Lookup(req.Exchange)
	if !ok {
		return nil, validation.Errorf("Invalid exchange. Must be one of: %s", strings.Join(exchange.Names(), ", "))
	}
	apiKey := strings.TrimSpace(req.APIKey)
	apiSecret := strings.TrimSpace(req.APISecret)
	if apiKey == "" || apiSecret == "" {
		return nil, validation.Errorf("API key and secret are required")
	}
	label := validation.Sanitize(req.Label, 100)
	if label == "" {
		label = info.Name + " Account"
	}

	encrypted, err := s.encryptor.Encrypt(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt api secret: %w", err)
	}

	account := &models.ExchangeAccount{
		UserID:             userID,
		ExchangeName:       info.ID,
		Label:              label,
		APIKey:             apiKey,
		APISecretEncrypted: encrypted,
		IsTestnet:          req.Testnet,
		IsActive:           true,
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create exchange account: %w", err)
	}

	s.logger.Info("Exchange account linked",
		zap.Uint("user_id", userID),
		zap.Uint("account_id", account.ID),
		zap.String("exchange", info.ID),
		zap.Bool("testnet", req.Testnet),
	)
	return account, nil
}

// List returns the user's accounts, newest first, with masked keys.
func (s *Service) List(ctx context.Context, userID uint, activeOnly bool) ([]Summary, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.ExchangeAccount
	if err := q.Order("created_at desc").Order("id desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list exchange accounts: %w", err)
	}

	out := make([]Summary, 0, len(rows))
	for _, a := range rows {
		out = append(out, Summary{
			ID:           a.ID,
			Exchange:     a.ExchangeName,
			Label:        a.Label,
			APIKeyMasked: MaskKey(a.APIKey),
			IsTestnet:    a.IsTestnet,
			IsActive:     a.IsActive,
			CreatedAt:    a.CreatedAt,
		})
	}
	return out, nil
}

// MaskKey keeps the first ten characters of an API key.
func MaskKey(key string) string {
	if len(key) <= maskedKeyLength {
		return key
	}
	return key[:maskedKeyLength] + "..."
}

// Get loads an active account owned by the user and decrypts its secret.
func (s *Service) Get(ctx context.Context, id, userID uint) (*Account, error) {
	var a models.ExchangeAccount
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange account: %w", err)
	}

	secret, err := s.encryptor.Decrypt(a.APISecretEncrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt api secret of account %d: %w", a.ID, err)
	}
	return &Account{ExchangeAccount: a, APISecret: secret}, nil
}

// Delete deactivates an account. Trade logs keep pointing at it.
func (s *Service) Delete(ctx context.Context, id, userID uint) error {
	res := s.db.WithContext(ctx).Model(&models.ExchangeAccount{}).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate exchange account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.logger.Info("Exchange account deactivated", zap.Uint("user_id", userID), zap.Uint("account_id", id))
	return nil
}

// Client returns a live client for an account.
func (s *Service) Client(ctx context.Context, id, userID uint) (exchange.Client, *Account, error) {
	account, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	client, err := s.factory.New(account.Credentials())
	if err != nil {
		return nil, account, err
	}
	return client, account, nil
}

// TestConnection checks a stored account when an id is given, raw credentials otherwise.
func (s *Service) TestConnection(ctx context.Context, userID uint, req TestRequest) (exchange.ConnectionResult, error) {
	creds := exchange.Credentials{
		Exchange:  req.Exchange,
		APIKey:    strings.TrimSpace(req.APIKey),
		APISecret: strings.TrimSpace(req.APISecret),
		Testnet:   req.Testnet,
	}
	if req.AccountID != nil {
		account, err := s.Get(ctx, *req.AccountID, userID)
		if err != nil {
			return exchange.ConnectionResult{}, err
		}
		creds = account.Credentials()
	} else if creds.Exchange == "" || creds.APIKey == "" || creds.APISecret == "" {
		return exchange.ConnectionResult{}, validation.Errorf("Exchange name, API key and secret are required")
	}

	res := exchange.CheckConnection(ctx, s.factory, creds)
	s.logger.Info("Exchange connection tested",
		zap.String("exchange", res.Exchange),
		zap.Bool("ok", res.OK),
		zap.String("error_type", res.ErrorType),
	)
	return res, nil
}

// Portfolio fetches live balances and values them in USD from ticker prices.
func (s *Service) Portfolio(ctx context.Context, id, userID uint) (*Portfolio, error) {
	client, account, err := s.Client(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	balances, err := client.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balances: %w", err)
	}
	tickers, err := client.TickerPrices(ctx)
	if err != nil {
		s.logger.Warn("Ticker prices unavailable, valuing stablecoins only", zap.Error(err))
		tickers = map[string]float64{}
	}

	p := &Portfolio{
		AccountID: account.ID,
		Exchange:  account.ExchangeName,
		Label:     account.Label,
		IsTestnet: account.IsTestnet,
		Balances:  make([]AssetBalance, 0, len(balances)),
	}
	for asset, b := range balances {
		price := USDPrice(asset, tickers)
		line := AssetBalance{
			Asset:    asset,
			Free:     b.Free,
			Locked:   b.Locked,
			Total:    b.Total,
			PriceUSD: price,
			ValueUSD: b.Total * price,
		}
		p.TotalValueUSD += line.ValueUSD
		p.Balances = append(p.Balances, line)
	}
	sort.Slice(p.Balances, func(i, j int) bool {
		if p.Balances[i].ValueUSD == p.Balances[j].ValueUSD {
			return p.Balances[i].Asset < p.Balances[j].Asset
		}
		return p.Balances[i].ValueUSD > p.Balances[j].ValueUSD
	})
	return p, nil
}

// USDPrice values one unit of asset. Stablecoins are worth 1, others use the USDT ticker.
func USDPrice(asset string, tickers map[string]float64) float64 {
	if stablecoins[asset] {
		return 1
	}
	return tickers[asset+"USDT"]
}
