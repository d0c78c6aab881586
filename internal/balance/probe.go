// Package balance reads the monitored wallet's current token holdings.
package balance

import (
	"context"

	"github.com/sirupsen/logrus"

	"solana-transfer-watch/internal/solana"
)

// Probe fetches a wallet's current balance of one token mint.
//
// The balance is sampled at call time, not reconstructed at any historical
// block. For transfers discovered well after the fact the value may differ
// from the true balance at transfer time.
type Probe struct {
	rpc    solana.RPCClient
	mint   string
	logger *logrus.Logger
}

// NewProbe creates a balance probe for the given token mint.
func NewProbe(rpc solana.RPCClient, mint string, logger *logrus.Logger) *Probe {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Probe{rpc: rpc, mint: mint, logger: logger}
}

// Balance returns the wallet's current holding of the configured mint.
// Returns 0 on any failure; a missing balance never blocks the pipeline.
func (p *Probe) Balance(ctx context.Context, wallet string) float64 {
	accounts, err := p.rpc.GetTokenAccountsByOwner(ctx, wallet, solana.TokenProgramID)
	if err != nil {
		p.logger.WithError(err).WithField("wallet", wallet).
			Warn("balance lookup failed")
		return 0
	}

	for _, acc := range accounts {
		if acc.Mint == p.mint {
			return acc.UIAmount
		}
	}
	return 0
}
