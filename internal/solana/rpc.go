package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by this service.
type RPCClient interface {
	// GetAccountInfo retrieves raw account info by public key.
	// Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenAccountsByOwner retrieves parsed SPL token accounts owned by
	// a wallet under the given token program.
	GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenAccount, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// TokenAccount is a jsonParsed SPL token account.
type TokenAccount struct {
	Pubkey   string  // token account address
	Mint     string  // token mint
	Owner    string  // owning wallet
	UIAmount float64 // balance adjusted for decimals
}

// TokenProgramID is the SPL Token program.
const TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
