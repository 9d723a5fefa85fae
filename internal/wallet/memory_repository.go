package wallet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cryptolab/exchange/internal/ledger"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Wallet)}
}

func (r *memoryRepository) Create(_ context.Context, wallet Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[wallet.Address]; exists {
		return fmt.Errorf("%w: %s", ErrWalletExists, wallet.Address)
	}
	r.storage[wallet.Address] = wallet
	return nil
}

func (r *memoryRepository) Get(_ context.Context, address string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.storage[address]
	if !ok {
		return Wallet{}, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, address)
	}
	return wallet, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Wallet, error) {
	r.mu.RLock()
	out := make([]Wallet, 0, len(r.storage))
	for _, w := range r.storage {
		out = append(out, w)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}
