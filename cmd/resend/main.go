// Command resend re-delivers the notification for every stored transfer.
// Useful after changing the alert format or recreating the Telegram chat.
package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"solana-transfer-watch/internal/config"
	"solana-transfer-watch/internal/notify"
	pgstore "solana-transfer-watch/internal/storage/postgres"
)

// Small delay between messages to stay under Telegram's rate limit.
const resendDelay = 500 * time.Millisecond

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewTransferStore(pool)

	dispatcher := notify.NewDispatcher(notify.Options{
		BotToken:    cfg.TelegramBotToken,
		ChatID:      cfg.TelegramChatID,
		Wallet:      cfg.Wallet,
		TokenName:   cfg.TokenName,
		TokenSymbol: cfg.TokenSymbol,
		BannerPath:  cfg.BannerImagePath,
		Logger:      logger,
	})

	transfers, err := store.GetAll(ctx)
	if err != nil {
		logger.Fatalf("read transfers: %v", err)
	}

	logger.Infof("resending %d notifications", len(transfers))

	for _, t := range transfers {
		logger.WithField("signature", t.Signature).Info("resending notification")
		if err := dispatcher.Notify(ctx, t); err != nil {
			logger.WithError(err).WithField("signature", t.Signature).
				Error("resend failed")
		}
		time.Sleep(resendDelay)
	}

	logger.Info("all notifications resent")
}
