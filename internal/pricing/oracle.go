// Package pricing derives SOL and token USD prices with layered fallbacks.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"solana-transfer-watch/internal/solana"
)

// Mode selects how the native SOL price is derived.
type Mode string

const (
	// ModeLiveSpot fetches the current spot price.
	ModeLiveSpot Mode = "live"
	// ModeHistoricalByDate fetches a day-granularity historical price,
	// cached per calendar date.
	ModeHistoricalByDate Mode = "historical_date"
	// ModeHistoricalByMinute fetches a minute-granularity historical price.
	ModeHistoricalByMinute Mode = "historical_minute"
)

// Fallback constants used when every price source fails. A missing price
// must never block persistence of the underlying transfer.
const (
	FallbackSolPrice   = 150.0
	FallbackTokenPrice = 0.000036
)

const lamportsPerSol = 1e9

// ErrNoReserves signals that the pool vaults exist but hold no reserves,
// so no pool-derived price can be computed. Callers treat this as a soft
// failure.
var ErrNoReserves = errors.New("pool vaults have no reserves")

// Default price API hosts.
const (
	DefaultCoinGeckoURL     = "https://api.coingecko.com"
	DefaultCryptoCompareURL = "https://min-api.cryptocompare.com"
	DefaultBirdeyeURL       = "https://public-api.birdeye.so"
)

// Oracle computes SOL/USD and pool-derived token/USD prices.
type Oracle struct {
	http *resty.Client
	rpc  solana.RPCClient

	coinGeckoURL     string
	cryptoCompareURL string
	cryptoCompareKey string
	birdeyeURL       string
	useBirdeye       bool

	tokenMint  string // monitored token mint, for the Birdeye spot lookup
	baseVault  string // pool vault holding the monitored token
	quoteVault string // pool vault holding wrapped SOL

	mu        sync.Mutex
	dateCache map[string]float64 // SOL/USD by DD-MM-YYYY; never evicted

	logger *logrus.Logger
}

// Options contains configuration for creating an Oracle.
type Options struct {
	RPC              solana.RPCClient
	TokenMint        string
	BaseVault        string // token side of the pool
	QuoteVault       string // WSOL side of the pool
	CryptoCompareKey string
	UseBirdeye       bool
	CoinGeckoURL     string // defaults to the public API
	CryptoCompareURL string
	BirdeyeURL       string
	Timeout          time.Duration
	Logger           *logrus.Logger
}

// NewOracle creates a price oracle.
func NewOracle(opts Options) *Oracle {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	o := &Oracle{
		http:             resty.New().SetTimeout(timeout),
		rpc:              opts.RPC,
		coinGeckoURL:     opts.CoinGeckoURL,
		cryptoCompareURL: opts.CryptoCompareURL,
		cryptoCompareKey: opts.CryptoCompareKey,
		birdeyeURL:       opts.BirdeyeURL,
		useBirdeye:       opts.UseBirdeye,
		tokenMint:        opts.TokenMint,
		baseVault:        opts.BaseVault,
		quoteVault:       opts.QuoteVault,
		dateCache:        make(map[string]float64),
		logger:           logger,
	}
	if o.coinGeckoURL == "" {
		o.coinGeckoURL = DefaultCoinGeckoURL
	}
	if o.cryptoCompareURL == "" {
		o.cryptoCompareURL = DefaultCryptoCompareURL
	}
	if o.birdeyeURL == "" {
		o.birdeyeURL = DefaultBirdeyeURL
	}
	return o
}

// NativePrice returns the SOL/USD price for the given mode. ts is the
// transfer's unix-seconds timestamp and is only consulted by the historical
// modes. Failures never propagate: every mode degrades to FallbackSolPrice.
func (o *Oracle) NativePrice(ctx context.Context, mode Mode, ts int64) float64 {
	switch mode {
	case ModeHistoricalByDate:
		return o.historicalByDate(ctx, ts)
	case ModeHistoricalByMinute:
		return o.historicalByMinute(ctx, ts)
	default:
		return o.liveSpot(ctx)
	}
}

// liveSpot fetches the current SOL spot price from CoinGecko.
func (o *Oracle) liveSpot(ctx context.Context) float64 {
	var result map[string]map[string]float64

	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           "solana",
			"vs_currencies": "usd",
		}).
		SetResult(&result).
		Get(o.coinGeckoURL + "/api/v3/simple/price")
	if err != nil || resp.IsError() {
		o.logger.WithError(err).Warn("live SOL price lookup failed, using fallback")
		return FallbackSolPrice
	}

	price := result["solana"]["usd"]
	if price == 0 {
		o.logger.Warn("live SOL price response empty, using fallback")
		return FallbackSolPrice
	}

	o.logger.WithField("price", price).Debug("SOL spot price fetched")
	return price
}

// historicalByDate fetches the SOL price for ts's calendar date from
// CoinGecko's history endpoint, caching per date. Historical prices are
// immutable, so cache entries never expire.
func (o *Oracle) historicalByDate(ctx context.Context, ts int64) float64 {
	date := FormatDate(ts)

	o.mu.Lock()
	cached, ok := o.dateCache[date]
	o.mu.Unlock()
	if ok {
		o.logger.WithFields(logrus.Fields{"date": date, "price": cached}).
			Debug("SOL price served from date cache")
		return cached
	}

	var result struct {
		MarketData struct {
			CurrentPrice map[string]float64 `json:"current_price"`
		} `json:"market_data"`
	}

	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParam("date", date).
		SetResult(&result).
		Get(o.coinGeckoURL + "/api/v3/coins/solana/history")
	if err != nil || resp.IsError() {
		o.logger.WithError(err).WithField("date", date).
			Warn("historical SOL price lookup failed, using fallback")
		return FallbackSolPrice
	}

	price := result.MarketData.CurrentPrice["usd"]
	if price == 0 {
		o.logger.WithField("date", date).Warn("historical SOL price empty, using fallback")
		return FallbackSolPrice
	}

	o.mu.Lock()
	o.dateCache[date] = price
	o.mu.Unlock()

	return price
}

// historicalByMinute fetches the SOL closing price for ts's minute from
// CryptoCompare. No caching: each transfer timestamp gets its own sample.
func (o *Oracle) historicalByMinute(ctx context.Context, ts int64) float64 {
	var result struct {
		Data struct {
			Data []struct {
				Close float64 `json:"close"`
			} `json:"Data"`
		} `json:"Data"`
	}

	req := o.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"fsym":  "SOL",
			"tsym":  "USD",
			"limit": "1",
			"toTs":  fmt.Sprintf("%d", ts),
		}).
		SetResult(&result)
	if o.cryptoCompareKey != "" {
		req.SetHeader("Authorization", "Apikey "+o.cryptoCompareKey)
	}

	resp, err := req.Get(o.cryptoCompareURL + "/data/v2/histominute")
	if err != nil || resp.IsError() {
		o.logger.WithError(err).WithField("ts", ts).
			Warn("minute SOL price lookup failed, using fallback")
		return FallbackSolPrice
	}

	if len(result.Data.Data) == 0 || result.Data.Data[0].Close == 0 {
		o.logger.WithField("ts", ts).Warn("minute SOL price empty, using fallback")
		return FallbackSolPrice
	}

	return result.Data.Data[0].Close
}

// TokenPrice derives the monitored token's USD price. When the Birdeye spot
// source is enabled it is consulted first; any error or zero result falls
// through to the pool-derived price (quote reserve / base reserve) * solUSD.
// Returns ErrNoReserves when either vault reads as empty.
func (o *Oracle) TokenPrice(ctx context.Context, solUSD float64) (float64, error) {
	if o.useBirdeye {
		if price, err := o.birdeyeSpot(ctx); err == nil && price > 0 {
			return price, nil
		}
	}
	return o.poolPrice(ctx, solUSD)
}

// birdeyeSpot fetches the token's spot price by mint address.
func (o *Oracle) birdeyeSpot(ctx context.Context) (float64, error) {
	var result struct {
		Data struct {
			Price float64 `json:"price"`
		} `json:"data"`
	}

	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParam("address", o.tokenMint).
		SetResult(&result).
		Get(o.birdeyeURL + "/public/price")
	if err != nil {
		return 0, fmt.Errorf("birdeye price request: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("birdeye price: status %d", resp.StatusCode())
	}

	if result.Data.Price == 0 {
		o.logger.Debug("birdeye returned zero price, falling back to pool price")
	}
	return result.Data.Price, nil
}

// poolPrice reads both pool vaults and derives the token price from their
// reserve ratio.
func (o *Oracle) poolPrice(ctx context.Context, solUSD float64) (float64, error) {
	quote, err := o.vaultReserve(ctx, o.quoteVault)
	if err != nil {
		return 0, fmt.Errorf("read quote vault: %w", err)
	}

	base, err := o.vaultReserve(ctx, o.baseVault)
	if err != nil {
		return 0, fmt.Errorf("read base vault: %w", err)
	}

	if quote == 0 || base == 0 {
		o.logger.WithFields(logrus.Fields{"quote": quote, "base": base}).
			Warn("pool vaults exist but no reserves found")
		return 0, ErrNoReserves
	}

	priceInSol := quote / base
	priceUSD := priceInSol * solUSD

	o.logger.WithFields(logrus.Fields{
		"price_usd":     priceUSD,
		"base_reserve":  base,
		"quote_reserve": quote,
	}).Debug("pool-derived token price computed")

	return priceUSD, nil
}

// vaultReserve reads an SPL token account and returns its decimals-adjusted
// reserve.
func (o *Oracle) vaultReserve(ctx context.Context, vault string) (float64, error) {
	info, err := o.rpc.GetAccountInfo(ctx, vault)
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, fmt.Errorf("vault account %s not found", vault)
	}

	amount, err := solana.ParseTokenAccountAmount(info.Data)
	if err != nil {
		return 0, err
	}

	return float64(amount) / lamportsPerSol, nil
}

// FormatDate renders a unix-seconds timestamp as DD-MM-YYYY in local time,
// the format CoinGecko's history endpoint expects.
func FormatDate(ts int64) string {
	return time.Unix(ts, 0).Format("02-01-2006")
}
