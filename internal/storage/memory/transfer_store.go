package memory

import (
	"context"
	"sort"
	"sync"

	"solana-transfer-watch/internal/domain"
	"solana-transfer-watch/internal/storage"
)

// TransferStore is an in-memory implementation of storage.TransferStore.
type TransferStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transfer // keyed by signature
}

// NewTransferStore creates a new in-memory transfer store.
func NewTransferStore() *TransferStore {
	return &TransferStore{
		data: make(map[string]*domain.Transfer),
	}
}

// Insert adds a new transfer. Returns ErrDuplicateKey if the signature exists.
func (s *TransferStore) Insert(_ context.Context, t *domain.Transfer) error {
	if t == nil || t.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.Signature] = &copy
	return nil
}

// Exists reports whether a transfer with the given signature is recorded.
func (s *TransferStore) Exists(_ context.Context, signature string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[signature]
	return ok, nil
}

// GetBySignature retrieves a transfer by signature. Returns ErrNotFound if absent.
func (s *TransferStore) GetBySignature(_ context.Context, signature string) (*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[signature]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// GetAll retrieves all recorded transfers, ordered by timestamp ASC.
func (s *TransferStore) GetAll(_ context.Context) ([]*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Transfer, 0, len(s.data))
	for _, t := range s.data {
		copy := *t
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].Signature < result[j].Signature
	})

	return result, nil
}

// DeleteAll removes every recorded transfer.
func (s *TransferStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.data))
	s.data = make(map[string]*domain.Transfer)
	return n, nil
}

var _ storage.TransferStore = (*TransferStore)(nil)
