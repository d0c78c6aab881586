package pricing

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-transfer-watch/internal/solana"
)

type fakeRPC struct {
	accounts map[string]*solana.AccountInfo
	err      error
	calls    int
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[pubkey], nil
}

func (f *fakeRPC) GetTokenAccountsByOwner(_ context.Context, _, _ string) ([]solana.TokenAccount, error) {
	return nil, nil
}

// tokenAccountData builds a base64 SPL token account with the given raw
// amount at the standard layout offset.
func tokenAccountData(amount uint64) string {
	buf := make([]byte, 72)
	binary.LittleEndian.PutUint64(buf[64:], amount)
	return base64.StdEncoding.EncodeToString(buf)
}

func testOracle(t *testing.T, opts Options) *Oracle {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	opts.Logger = logger
	opts.Timeout = 5 * time.Second
	return NewOracle(opts)
}

func TestNativePrice_LiveSpot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/simple/price", r.URL.Path)
		assert.Equal(t, "solana", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"solana":{"usd":172.5}}`)
	}))
	defer srv.Close()

	o := testOracle(t, Options{CoinGeckoURL: srv.URL})

	price := o.NativePrice(context.Background(), ModeLiveSpot, 0)
	assert.Equal(t, 172.5, price)
}

func TestNativePrice_LiveSpotFailureFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	o := testOracle(t, Options{CoinGeckoURL: srv.URL})

	price := o.NativePrice(context.Background(), ModeLiveSpot, 0)
	assert.Equal(t, FallbackSolPrice, price)
}

func TestNativePrice_LiveSpotEmptyBodyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	o := testOracle(t, Options{CoinGeckoURL: srv.URL})

	price := o.NativePrice(context.Background(), ModeLiveSpot, 0)
	assert.Equal(t, FallbackSolPrice, price)
}

func TestNativePrice_HistoricalByDateCachesPerDate(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		assert.Equal(t, "/api/v3/coins/solana/history", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("date"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"market_data":{"current_price":{"usd":98.7}}}`)
	}))
	defer srv.Close()

	o := testOracle(t, Options{CoinGeckoURL: srv.URL})
	ctx := context.Background()

	ts := int64(1700000000)
	first := o.NativePrice(ctx, ModeHistoricalByDate, ts)
	// A second timestamp on the same calendar date must hit the cache.
	second := o.NativePrice(ctx, ModeHistoricalByDate, ts+60)

	assert.Equal(t, 98.7, first)
	assert.Equal(t, 98.7, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestNativePrice_HistoricalByDateFailureNotCached(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := testOracle(t, Options{CoinGeckoURL: srv.URL})
	ctx := context.Background()

	ts := int64(1700000000)
	assert.Equal(t, FallbackSolPrice, o.NativePrice(ctx, ModeHistoricalByDate, ts))
	assert.Equal(t, FallbackSolPrice, o.NativePrice(ctx, ModeHistoricalByDate, ts))
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits), "fallbacks must not poison the cache")
}

func TestNativePrice_HistoricalByMinute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/v2/histominute", r.URL.Path)
		assert.Equal(t, "SOL", r.URL.Query().Get("fsym"))
		assert.Equal(t, "USD", r.URL.Query().Get("tsym"))
		assert.Equal(t, "1700000000", r.URL.Query().Get("toTs"))
		assert.Equal(t, "Apikey secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"Data":{"Data":[{"close":101.25}]}}`)
	}))
	defer srv.Close()

	o := testOracle(t, Options{
		CryptoCompareURL: srv.URL,
		CryptoCompareKey: "secret",
	})

	price := o.NativePrice(context.Background(), ModeHistoricalByMinute, 1700000000)
	assert.Equal(t, 101.25, price)
}

func TestNativePrice_HistoricalByMinuteEmptySeriesFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"Data":{"Data":[]}}`)
	}))
	defer srv.Close()

	o := testOracle(t, Options{CryptoCompareURL: srv.URL})

	price := o.NativePrice(context.Background(), ModeHistoricalByMinute, 1700000000)
	assert.Equal(t, FallbackSolPrice, price)
}

func TestTokenPrice_PoolDerived(t *testing.T) {
	rpc := &fakeRPC{accounts: map[string]*solana.AccountInfo{
		"QUOTE": {Data: tokenAccountData(5_000_000_000)},         // 5 WSOL
		"BASE":  {Data: tokenAccountData(1_000_000_000_000_000)}, // 1M tokens
	}}

	o := testOracle(t, Options{
		RPC:        rpc,
		BaseVault:  "BASE",
		QuoteVault: "QUOTE",
	})

	price, err := o.TokenPrice(context.Background(), 200)
	require.NoError(t, err)

	// (5 / 1_000_000) SOL per token * 200 USD per SOL
	assert.InDelta(t, 0.001, price, 1e-12)
}

func TestTokenPrice_ZeroReserves(t *testing.T) {
	rpc := &fakeRPC{accounts: map[string]*solana.AccountInfo{
		"QUOTE": {Data: tokenAccountData(0)},
		"BASE":  {Data: tokenAccountData(1_000_000_000)},
	}}

	o := testOracle(t, Options{
		RPC:        rpc,
		BaseVault:  "BASE",
		QuoteVault: "QUOTE",
	})

	_, err := o.TokenPrice(context.Background(), 200)
	require.ErrorIs(t, err, ErrNoReserves)
}

func TestTokenPrice_MissingVault(t *testing.T) {
	rpc := &fakeRPC{accounts: map[string]*solana.AccountInfo{}}

	o := testOracle(t, Options{
		RPC:        rpc,
		BaseVault:  "BASE",
		QuoteVault: "QUOTE",
	})

	_, err := o.TokenPrice(context.Background(), 200)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoReserves)
}

func TestTokenPrice_BirdeyePreferred(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/public/price", r.URL.Path)
		assert.Equal(t, "MINT", r.URL.Query().Get("address"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"price":0.00005}}`)
	}))
	defer srv.Close()

	rpc := &fakeRPC{}
	o := testOracle(t, Options{
		RPC:        rpc,
		TokenMint:  "MINT",
		UseBirdeye: true,
		BirdeyeURL: srv.URL,
	})

	price, err := o.TokenPrice(context.Background(), 200)
	require.NoError(t, err)
	assert.Equal(t, 0.00005, price)
	assert.Zero(t, rpc.calls, "spot hit must skip the pool read")
}

func TestTokenPrice_BirdeyeZeroFallsBackToPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"price":0}}`)
	}))
	defer srv.Close()

	rpc := &fakeRPC{accounts: map[string]*solana.AccountInfo{
		"QUOTE": {Data: tokenAccountData(2_000_000_000)},
		"BASE":  {Data: tokenAccountData(1_000_000_000_000)},
	}}

	o := testOracle(t, Options{
		RPC:        rpc,
		TokenMint:  "MINT",
		UseBirdeye: true,
		BirdeyeURL: srv.URL,
		BaseVault:  "BASE",
		QuoteVault: "QUOTE",
	})

	price, err := o.TokenPrice(context.Background(), 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, price, 1e-12)
	assert.Equal(t, 2, rpc.calls)
}

func TestFormatDate(t *testing.T) {
	ts := int64(1700000000)
	d := time.Unix(ts, 0)
	want := fmt.Sprintf("%02d-%02d-%04d", d.Day(), d.Month(), d.Year())
	assert.Equal(t, want, FormatDate(ts))
}
