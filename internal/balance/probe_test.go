package balance

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"solana-transfer-watch/internal/solana"
)

type fakeRPC struct {
	accounts []solana.TokenAccount
	err      error
	program  string
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, _ string) (*solana.AccountInfo, error) {
	return nil, nil
}

func (f *fakeRPC) GetTokenAccountsByOwner(_ context.Context, _, programID string) ([]solana.TokenAccount, error) {
	f.program = programID
	return f.accounts, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestBalance_ReturnsMatchingMint(t *testing.T) {
	rpc := &fakeRPC{accounts: []solana.TokenAccount{
		{Mint: "OTHER", UIAmount: 999},
		{Mint: "MINT", UIAmount: 123456.78},
	}}

	p := NewProbe(rpc, "MINT", quietLogger())

	got := p.Balance(context.Background(), "WALLET")
	assert.Equal(t, 123456.78, got)
	assert.Equal(t, solana.TokenProgramID, rpc.program)
}

func TestBalance_NoMatchingAccount(t *testing.T) {
	rpc := &fakeRPC{accounts: []solana.TokenAccount{
		{Mint: "OTHER", UIAmount: 999},
	}}

	p := NewProbe(rpc, "MINT", quietLogger())

	assert.Zero(t, p.Balance(context.Background(), "WALLET"))
}

func TestBalance_RPCFailureReturnsZero(t *testing.T) {
	rpc := &fakeRPC{err: errors.New("rpc unavailable")}

	p := NewProbe(rpc, "MINT", quietLogger())

	assert.Zero(t, p.Balance(context.Background(), "WALLET"))
}
