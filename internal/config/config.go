// Package config loads and validates the watcher configuration.
package config

import (
	"fmt"
	"time"

	"filippo.io/edwards25519"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"github.com/spf13/viper"
)

// Config is the full configuration surface of the watcher.
type Config struct {
	// Chain and indexing
	RPCEndpoint  string
	HeliusAPIKey string

	// Monitored subject
	Wallet      string
	TokenMint   string
	TokenName   string
	TokenSymbol string

	// Liquidity pool vaults (token side / WSOL side)
	BaseVault  string
	QuoteVault string

	// Pricing
	CryptoCompareKey  string
	UseBirdeye        bool
	FirstRunPriceMode string // "historical_minute" or "historical_date"

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	BannerImagePath  string

	// Storage
	PostgresDSN string
	UseMemory   bool

	// Scheduling
	ScanInterval time.Duration
	InitialLimit int
	SteadyLimit  int

	// Observability
	MetricsAddr string
	LogJSON     bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present (secrets live there in development).
func Load() (*Config, error) {
	// Missing .env is fine; production supplies real environment variables.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SCAN_INTERVAL", "1m")
	v.SetDefault("SCAN_INITIAL_LIMIT", 100)
	v.SetDefault("SCAN_STEADY_LIMIT", 5)
	v.SetDefault("FIRST_RUN_PRICE_MODE", "historical_minute")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com")

	cfg := &Config{
		RPCEndpoint:       v.GetString("RPC_ENDPOINT"),
		HeliusAPIKey:      v.GetString("HELIUS_API_KEY"),
		Wallet:            v.GetString("WALLET_ADDRESS"),
		TokenMint:         v.GetString("TOKEN_MINT"),
		TokenName:         v.GetString("TOKEN_NAME"),
		TokenSymbol:       v.GetString("TOKEN_SYMBOL"),
		BaseVault:         v.GetString("BASE_VAULT"),
		QuoteVault:        v.GetString("QUOTE_VAULT"),
		CryptoCompareKey:  v.GetString("CRYPTOCOMPARE_API_KEY"),
		UseBirdeye:        v.GetBool("USE_BIRDEYE"),
		FirstRunPriceMode: v.GetString("FIRST_RUN_PRICE_MODE"),
		TelegramBotToken:  v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    v.GetString("TELEGRAM_CHAT_ID"),
		BannerImagePath:   v.GetString("BANNER_IMAGE_PATH"),
		PostgresDSN:       v.GetString("POSTGRES_DSN"),
		UseMemory:         v.GetBool("USE_MEMORY_STORE"),
		ScanInterval:      v.GetDuration("SCAN_INTERVAL"),
		InitialLimit:      v.GetInt("SCAN_INITIAL_LIMIT"),
		SteadyLimit:       v.GetInt("SCAN_STEADY_LIMIT"),
		MetricsAddr:       v.GetString("METRICS_ADDR"),
		LogJSON:           v.GetBool("LOG_JSON"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and address shapes.
func (c *Config) Validate() error {
	if c.HeliusAPIKey == "" {
		return fmt.Errorf("HELIUS_API_KEY is required")
	}
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set USE_MEMORY_STORE for in-memory storage)")
	}

	// The monitored wallet is a user keypair, so its public key must be a
	// valid ed25519 curve point. Token vaults are usually PDAs and may be
	// off-curve, so they only get the shape check.
	if err := ValidateWalletAddress(c.Wallet); err != nil {
		return fmt.Errorf("WALLET_ADDRESS: %w", err)
	}
	for name, addr := range map[string]string{
		"TOKEN_MINT":  c.TokenMint,
		"BASE_VAULT":  c.BaseVault,
		"QUOTE_VAULT": c.QuoteVault,
	} {
		if err := ValidateAddress(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.FirstRunPriceMode != "historical_minute" && c.FirstRunPriceMode != "historical_date" {
		return fmt.Errorf("FIRST_RUN_PRICE_MODE must be historical_minute or historical_date, got %q", c.FirstRunPriceMode)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive")
	}
	if c.InitialLimit <= 0 || c.SteadyLimit <= 0 {
		return fmt.Errorf("scan limits must be positive")
	}

	return nil
}

// ValidateAddress checks that addr is a base58-encoded 32-byte public key.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address is empty")
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("invalid base58: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("decoded address is %d bytes, want 32", len(decoded))
	}
	return nil
}

// ValidateWalletAddress additionally requires the key to be an on-curve
// ed25519 point.
func ValidateWalletAddress(addr string) error {
	if err := ValidateAddress(addr); err != nil {
		return err
	}
	decoded, _ := base58.Decode(addr)
	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return fmt.Errorf("address is not an ed25519 curve point")
	}
	return nil
}
