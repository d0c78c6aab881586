package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"solana-transfer-watch/internal/balance"
	"solana-transfer-watch/internal/config"
	"solana-transfer-watch/internal/helius"
	"solana-transfer-watch/internal/notify"
	"solana-transfer-watch/internal/observability"
	"solana-transfer-watch/internal/pricing"
	"solana-transfer-watch/internal/scanner"
	"solana-transfer-watch/internal/solana"
	"solana-transfer-watch/internal/storage"
	"solana-transfer-watch/internal/storage/memory"
	"solana-transfer-watch/internal/storage/migrations"
	pgstore "solana-transfer-watch/internal/storage/postgres"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.LogJSON {
		logger.SetFormatter(new(logrus.JSONFormatter))
	}

	metrics := observability.NewMetrics("")

	// Metrics server
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Infof("starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Infof("received signal %v, initiating graceful shutdown", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Infof("received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, cfg, metrics)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("error: %v", err)
	}

	logger.Info("shutdown complete")
}

// run wires the pipeline and drives scan cycles on a fixed cadence.
func run(ctx context.Context, logger *logrus.Logger, cfg *config.Config, metrics *observability.Metrics) error {
	var store storage.TransferStore = memory.NewTransferStore()

	if !cfg.UseMemory {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}

		store = pgstore.NewTransferStore(pool)
	}

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)

	oracle := pricing.NewOracle(pricing.Options{
		RPC:              rpc,
		TokenMint:        cfg.TokenMint,
		BaseVault:        cfg.BaseVault,
		QuoteVault:       cfg.QuoteVault,
		CryptoCompareKey: cfg.CryptoCompareKey,
		UseBirdeye:       cfg.UseBirdeye,
		Logger:           logger,
	})

	probe := balance.NewProbe(rpc, cfg.TokenMint, logger)

	dispatcher := notify.NewDispatcher(notify.Options{
		BotToken:    cfg.TelegramBotToken,
		ChatID:      cfg.TelegramChatID,
		Wallet:      cfg.Wallet,
		TokenName:   cfg.TokenName,
		TokenSymbol: cfg.TokenSymbol,
		BannerPath:  cfg.BannerImagePath,
		Logger:      logger,
	})

	firstRunMode := pricing.ModeHistoricalByMinute
	if cfg.FirstRunPriceMode == "historical_date" {
		firstRunMode = pricing.ModeHistoricalByDate
	}

	sc := scanner.New(scanner.Options{
		Source:       helius.NewClient(cfg.HeliusAPIKey),
		Store:        store,
		Prices:       oracle,
		Balances:     probe,
		Notifier:     dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		Wallet:       cfg.Wallet,
		Mint:         cfg.TokenMint,
		FirstRunMode: firstRunMode,
		InitialLimit: cfg.InitialLimit,
		SteadyLimit:  cfg.SteadyLimit,
	})

	logger.WithFields(logrus.Fields{
		"wallet":   cfg.Wallet,
		"mint":     cfg.TokenMint,
		"interval": cfg.ScanInterval,
	}).Info("starting transfer watcher")

	ticker := time.NewTicker(cfg.ScanInterval)
	defer ticker.Stop()

	// Cycles run synchronously in this loop, so they can never overlap;
	// ticks that fire during a slow cycle coalesce into one.
	for {
		if _, err := sc.Scan(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
