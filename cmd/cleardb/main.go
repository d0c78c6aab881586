// Command cleardb wipes the transfers table. Administrative use only:
// every wiped signature will be re-processed and re-notified on the next
// scan cycle that still sees it.
package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"solana-transfer-watch/internal/config"
	pgstore "solana-transfer-watch/internal/storage/postgres"
)

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

	n, err := store.DeleteAll(ctx)
	if err != nil {
		logger.Fatalf("clear transfers: %v", err)
	}

	logger.Infof("deleted %d transfers", n)
}
