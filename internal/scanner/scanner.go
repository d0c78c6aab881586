// Package scanner drives the scan-dedup-enrich-notify pipeline.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"solana-transfer-watch/internal/domain"
	"solana-transfer-watch/internal/helius"
	"solana-transfer-watch/internal/observability"
	"solana-transfer-watch/internal/pricing"
	"solana-transfer-watch/internal/storage"
)

// Default pacing delays between outbound calls. The third-party APIs are
// rate limited; fixed sleeps are the crude limiter the pipeline relies on.
const (
	DefaultFirstRunPriceDelay = 2 * time.Second
	DefaultLivePriceDelay     = 1 * time.Second
	DefaultPoolPriceDelay     = 300 * time.Millisecond
	DefaultSubEntryDelay      = 500 * time.Millisecond
)

// Default page sizes for the indexing API.
const (
	DefaultInitialLimit = 100
	DefaultSteadyLimit  = 5
)

// TransactionSource fetches candidate transactions from the indexing service.
type TransactionSource interface {
	TransferTransactions(ctx context.Context, address string, limit int) ([]helius.EnrichedTransaction, error)
}

// PriceSource derives SOL and token USD prices.
type PriceSource interface {
	NativePrice(ctx context.Context, mode pricing.Mode, ts int64) float64
	TokenPrice(ctx context.Context, solUSD float64) (float64, error)
}

// BalanceSource reads the monitored wallet's current token balance.
type BalanceSource interface {
	Balance(ctx context.Context, wallet string) float64
}

// Notifier delivers an alert for a newly persisted transfer.
type Notifier interface {
	Notify(ctx context.Context, t *domain.Transfer) error
}

// Scanner runs one scan cycle at a time over the monitored wallet.
//
// Scanner is not safe for concurrent cycles: firstRun, limit and the price
// cache are mutated only by its own cycle, and the scheduling caller must
// wait for a cycle to finish before starting the next one.
type Scanner struct {
	source   TransactionSource
	store    storage.TransferStore
	prices   PriceSource
	balances BalanceSource
	notifier Notifier
	metrics  *observability.Metrics
	logger   *logrus.Logger

	wallet string
	mint   string

	firstRunMode pricing.Mode

	firstRunPriceDelay time.Duration
	livePriceDelay     time.Duration
	poolPriceDelay     time.Duration
	subEntryDelay      time.Duration

	steadyLimit int

	// Cycle state, initialized at process start and mutated only by Scan.
	firstRun bool
	limit    int
}

// Options contains configuration for creating a Scanner.
type Options struct {
	Source   TransactionSource
	Store    storage.TransferStore
	Prices   PriceSource
	Balances BalanceSource
	Notifier Notifier
	Metrics  *observability.Metrics
	Logger   *logrus.Logger

	Wallet string // monitored wallet address
	Mint   string // monitored token mint

	// FirstRunMode selects the historical pricing mode used on the very
	// first cycle after process start. Subsequent cycles use live spot.
	FirstRunMode pricing.Mode

	// InitialLimit is the page size for the first cycle; SteadyLimit is
	// the narrowed page size used afterwards.
	InitialLimit int
	SteadyLimit  int

	FirstRunPriceDelay time.Duration
	LivePriceDelay     time.Duration
	PoolPriceDelay     time.Duration
	SubEntryDelay      time.Duration
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	firstRunMode := opts.FirstRunMode
	if firstRunMode == "" {
		firstRunMode = pricing.ModeHistoricalByMinute
	}

	initialLimit := opts.InitialLimit
	if initialLimit == 0 {
		initialLimit = DefaultInitialLimit
	}
	steadyLimit := opts.SteadyLimit
	if steadyLimit == 0 {
		steadyLimit = DefaultSteadyLimit
	}

	s := &Scanner{
		source:             opts.Source,
		store:              opts.Store,
		prices:             opts.Prices,
		balances:           opts.Balances,
		notifier:           opts.Notifier,
		metrics:            opts.Metrics,
		logger:             logger,
		wallet:             opts.Wallet,
		mint:               opts.Mint,
		firstRunMode:       firstRunMode,
		firstRunPriceDelay: opts.FirstRunPriceDelay,
		livePriceDelay:     opts.LivePriceDelay,
		poolPriceDelay:     opts.PoolPriceDelay,
		subEntryDelay:      opts.SubEntryDelay,
		steadyLimit:        steadyLimit,
		firstRun:           true,
		limit:              initialLimit,
	}

	if opts.FirstRunPriceDelay == 0 {
		s.firstRunPriceDelay = DefaultFirstRunPriceDelay
	}
	if opts.LivePriceDelay == 0 {
		s.livePriceDelay = DefaultLivePriceDelay
	}
	if opts.PoolPriceDelay == 0 {
		s.poolPriceDelay = DefaultPoolPriceDelay
	}
	if opts.SubEntryDelay == 0 {
		s.subEntryDelay = DefaultSubEntryDelay
	}

	return s
}

// ScanResult summarizes one scan cycle.
type ScanResult struct {
	Fetched   int // candidate transactions returned by the indexing API
	Skipped   int // transactions already recorded
	Persisted int // transfers newly persisted this cycle
	Notified  int // notifications delivered this cycle
}

// Scan runs one cycle: fetch candidates, filter to the monitored token and
// wallet, dedup by signature, enrich with prices and balance, persist, and
// notify for fresh inserts only.
//
// A fetch failure aborts the cycle (logged, returned); every later failure
// is soft: the affected transfer is simply retried on a future cycle.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	var result ScanResult
	start := time.Now()

	s.logger.WithField("limit", s.limit).Info("scanning transactions")

	txs, err := s.source.TransferTransactions(ctx, s.wallet, s.limit)
	if err != nil {
		s.logger.WithError(err).Error("transaction scan failed")
		if s.metrics != nil {
			s.metrics.ScanCyclesTotal.WithLabelValues("error").Inc()
		}
		return result, fmt.Errorf("fetch transactions: %w", err)
	}

	result.Fetched = len(txs)
	if s.metrics != nil {
		s.metrics.TransactionsFetched.Add(float64(len(txs)))
	}

	if len(txs) == 0 {
		s.logger.Info("no transfer transactions found")
		return result, nil
	}

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.processTransaction(ctx, tx, &result)
	}

	// Steady state: narrow the page size and switch to live pricing.
	s.limit = s.steadyLimit
	s.firstRun = false

	if s.metrics != nil {
		s.metrics.ScanCyclesTotal.WithLabelValues("ok").Inc()
		s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
		s.metrics.LastSuccessfulScan.SetToCurrentTime()
	}

	s.logger.WithFields(logrus.Fields{
		"fetched":   result.Fetched,
		"skipped":   result.Skipped,
		"persisted": result.Persisted,
		"notified":  result.Notified,
	}).Info("scan cycle complete")

	return result, nil
}

// processTransaction handles one candidate transaction.
func (s *Scanner) processTransaction(ctx context.Context, tx helius.EnrichedTransaction, result *ScanResult) {
	exists, err := s.store.Exists(ctx, tx.Signature)
	if err != nil {
		// Treated as not-yet-persisted; the unique constraint still
		// protects against a double insert below.
		s.logger.WithError(err).WithField("signature", tx.Signature).
			Error("dedup check failed")
		if s.metrics != nil {
			s.metrics.StoreErrors.Inc()
		}
	}
	if exists {
		result.Skipped++
		if s.metrics != nil {
			s.metrics.TransfersSkipped.Inc()
		}
		s.logger.WithField("signature", tx.Signature).Debug("skipping already recorded tx")
		return
	}

	for _, transfer := range tx.TokenTransfers {
		if transfer.Mint != s.mint {
			continue
		}

		if transfer.FromUserAccount == s.wallet || transfer.ToUserAccount == s.wallet {
			s.processTransfer(ctx, tx, transfer, result)
		}

		s.sleep(ctx, s.subEntryDelay)
	}
}

// processTransfer enriches, persists and notifies one qualifying movement.
func (s *Scanner) processTransfer(ctx context.Context, tx helius.EnrichedTransaction, transfer helius.TokenTransfer, result *ScanResult) {
	var solPrice float64
	if s.firstRun {
		solPrice = s.prices.NativePrice(ctx, s.firstRunMode, tx.Timestamp)
		if s.metrics != nil {
			s.metrics.PriceLookups.WithLabelValues(string(s.firstRunMode)).Inc()
		}
		s.sleep(ctx, s.firstRunPriceDelay)
	} else {
		solPrice = s.prices.NativePrice(ctx, pricing.ModeLiveSpot, tx.Timestamp)
		if s.metrics != nil {
			s.metrics.PriceLookups.WithLabelValues(string(pricing.ModeLiveSpot)).Inc()
		}
		s.sleep(ctx, s.livePriceDelay)
	}

	tokenPrice, err := s.prices.TokenPrice(ctx, solPrice)
	if err != nil {
		s.logger.WithError(err).Warn("token price unavailable, using fallback")
		if s.metrics != nil {
			s.metrics.PriceFallbacks.WithLabelValues("token").Inc()
		}
		tokenPrice = pricing.FallbackTokenPrice
	}
	s.sleep(ctx, s.poolPriceDelay)

	walletBalance := s.balances.Balance(ctx, s.wallet)

	record := &domain.Transfer{
		Signature:           tx.Signature,
		FromAddress:         transfer.FromUserAccount,
		ToAddress:           transfer.ToUserAccount,
		Amount:              transfer.TokenAmount,
		Timestamp:           tx.Timestamp,
		WalletBalanceAtTime: walletBalance,
		SolPrice:            solPrice,
		TokenPrice:          tokenPrice,
	}

	err = s.store.Insert(ctx, record)
	switch {
	case err == nil:
		result.Persisted++
		if s.metrics != nil {
			s.metrics.TransfersPersisted.Inc()
		}
		s.logger.WithFields(logrus.Fields{
			"signature": record.Signature,
			"amount":    record.Amount,
			"side":      record.Side(s.wallet),
		}).Info("new transfer saved")

		s.notify(ctx, record, result)

	case errors.Is(err, storage.ErrDuplicateKey):
		// Raced with another insert of the same signature; the row is
		// already persisted and was (or will be) notified exactly once.
		s.logger.WithField("signature", record.Signature).
			Debug("transfer already recorded, notification suppressed")

	default:
		// Not persisted; the same signature is retried on a later cycle.
		s.logger.WithError(err).WithField("signature", record.Signature).
			Error("persist transfer failed")
		if s.metrics != nil {
			s.metrics.StoreErrors.Inc()
		}
	}
}

// notify delivers the alert for a freshly persisted transfer. Failures are
// logged and swallowed.
func (s *Scanner) notify(ctx context.Context, record *domain.Transfer, result *ScanResult) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.Notify(ctx, record); err != nil {
		s.logger.WithError(err).WithField("signature", record.Signature).
			Error("notification delivery failed")
		if s.metrics != nil {
			s.metrics.NotificationErrors.Inc()
		}
		return
	}

	result.Notified++
	if s.metrics != nil {
		s.metrics.NotificationsSent.Inc()
	}
}

// sleep pauses between outbound calls, aborting early on context cancel.
func (s *Scanner) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
