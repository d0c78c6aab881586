package storage

import (
	"context"

	"solana-transfer-watch/internal/domain"
)

// TransferStore provides access to transfers storage.
//
// Insert and Exists must be safe to call concurrently; uniqueness of the
// signature column is enforced by the store, not by the caller.
type TransferStore interface {
	// Insert adds a new transfer. Returns ErrDuplicateKey if a row with
	// the same signature already exists (no write occurs in that case).
	Insert(ctx context.Context, t *domain.Transfer) error

	// Exists reports whether a transfer with the given signature is recorded.
	Exists(ctx context.Context, signature string) (bool, error)

	// GetBySignature retrieves a transfer by signature. Returns ErrNotFound
	// if it does not exist.
	GetBySignature(ctx context.Context, signature string) (*domain.Transfer, error)

	// GetAll retrieves all recorded transfers, ordered by timestamp ASC.
	GetAll(ctx context.Context) ([]*domain.Transfer, error)

	// DeleteAll removes every recorded transfer and returns the number of
	// rows deleted. Administrative use only.
	DeleteAll(ctx context.Context) (int64, error)
}
