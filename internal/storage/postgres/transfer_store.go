package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-transfer-watch/internal/domain"
	"solana-transfer-watch/internal/storage"
)

// TransferStore implements storage.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *Pool
}

// NewTransferStore creates a new TransferStore.
func NewTransferStore(pool *Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransferStore = (*TransferStore)(nil)

// Insert adds a new transfer. Returns ErrDuplicateKey if the signature exists.
func (s *TransferStore) Insert(ctx context.Context, t *domain.Transfer) error {
	if t == nil || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transfers (
			signature, from_address, to_address, amount, timestamp,
			wallet_balance_at_time, sol_price, token_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Signature,
		t.FromAddress,
		t.ToAddress,
		t.Amount,
		t.Timestamp,
		t.WalletBalanceAtTime,
		t.SolPrice,
		t.TokenPrice,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// Exists reports whether a transfer with the given signature is recorded.
func (s *TransferStore) Exists(ctx context.Context, signature string) (bool, error) {
	query := `SELECT 1 FROM transfers WHERE signature = $1`

	var one int
	err := s.pool.QueryRow(ctx, query, signature).Scan(&one)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("check transfer exists: %w", err)
	}
	return true, nil
}

// GetBySignature retrieves a transfer by signature. Returns ErrNotFound if absent.
func (s *TransferStore) GetBySignature(ctx context.Context, signature string) (*domain.Transfer, error) {
	query := `
		SELECT signature, from_address, to_address, amount, timestamp,
		       wallet_balance_at_time, sol_price, token_price,
		       EXTRACT(EPOCH FROM created_at)::BIGINT
		FROM transfers
		WHERE signature = $1
	`

	var t domain.Transfer
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&t.Signature,
		&t.FromAddress,
		&t.ToAddress,
		&t.Amount,
		&t.Timestamp,
		&t.WalletBalanceAtTime,
		&t.SolPrice,
		&t.TokenPrice,
		&t.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transfer by signature: %w", err)
	}
	return &t, nil
}

// GetAll retrieves all recorded transfers, ordered by timestamp ASC.
func (s *TransferStore) GetAll(ctx context.Context) ([]*domain.Transfer, error) {
	query := `
		SELECT signature, from_address, to_address, amount, timestamp,
		       wallet_balance_at_time, sol_price, token_price,
		       EXTRACT(EPOCH FROM created_at)::BIGINT
		FROM transfers
		ORDER BY timestamp ASC, signature ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all transfers: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// DeleteAll removes every recorded transfer.
func (s *TransferStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transfers`)
	if err != nil {
		return 0, fmt.Errorf("delete all transfers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanTransfers scans multiple rows into a slice of Transfer.
func scanTransfers(rows pgx.Rows) ([]*domain.Transfer, error) {
	var transfers []*domain.Transfer

	for rows.Next() {
		var t domain.Transfer

		err := rows.Scan(
			&t.Signature,
			&t.FromAddress,
			&t.ToAddress,
			&t.Amount,
			&t.Timestamp,
			&t.WalletBalanceAtTime,
			&t.SolPrice,
			&t.TokenPrice,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer row: %w", err)
		}

		transfers = append(transfers, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer rows: %w", err)
	}

	return transfers, nil
}
