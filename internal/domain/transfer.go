package domain

// Transfer represents a single observed token transfer touching the
// monitored wallet. Corresponds to the transfers table in PostgreSQL.
// A Transfer is written exactly once and never mutated afterwards.
type Transfer struct {
	Signature           string  // Solana transaction signature, primary key
	FromAddress         string  // sending counterparty
	ToAddress           string  // receiving counterparty
	Amount              float64 // token quantity moved (ui amount)
	Timestamp           int64   // ledger-confirmed time, unix seconds
	WalletBalanceAtTime float64 // monitored wallet's token balance sampled at enrichment time
	SolPrice            float64 // SOL/USD price associated with the transfer
	TokenPrice          float64 // derived token/USD price at enrichment time
	CreatedAt           int64   // record creation timestamp (unix seconds)
}

// Transfer side constants.
const (
	SideSell = "sell"
	SideBuy  = "buy"
)

// Side classifies the transfer relative to the monitored wallet:
// the wallet sending tokens is a sell, the wallet receiving is a buy.
func (t *Transfer) Side(wallet string) string {
	if t.FromAddress == wallet {
		return SideSell
	}
	return SideBuy
}

// USDValue is the transfer amount priced at the recorded token price.
func (t *Transfer) USDValue() float64 {
	return t.Amount * t.TokenPrice
}
