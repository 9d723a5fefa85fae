package ledger

import (
	"fmt"
	"sync"
)

// account holds the balance of one wallet. Fields must not be read or
// written without mu held.
type account struct {
	mu      sync.Mutex
	balance Balance
	version uint64
}

// BalanceStore owns per-wallet balances and is their only mutator.
// Writes to one address are serialized by that account's lock; writes to
// disjoint addresses run concurrently.
type BalanceStore struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

// NewBalanceStore creates an empty store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{accounts: make(map[string]*account)}
}

// Create registers an all-zero balance for address. It is a no-op when the
// account already exists.
func (s *BalanceStore) Create(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[address]; !exists {
		s.accounts[address] = &account{balance: NewBalance()}
	}
}

// Exists reports whether address has an account.
func (s *BalanceStore) Exists(address string) bool {
	_, ok := s.lookup(address)
	return ok
}

// Get returns a copy of the balance and its version.
func (s *BalanceStore) Get(address string) (Balance, uint64, error) {
	acc, ok := s.lookup(address)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrWalletNotFound, address)
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance.Clone(), acc.version, nil
}

// ApplyDelta changes every field in delta or none of them.
func (s *BalanceStore) ApplyDelta(address string, delta Delta) (Balance, error) {
	out, err := s.ApplyDeltas(map[string]Delta{address: delta}, nil)
	if err != nil {
		return nil, err
	}
	return out[address], nil
}

// ApplyDeltas applies deltas to several accounts as one unit. Locks are taken
// in sorted address order. commit, when set, runs while the locks are held
// and after every new balance has been validated; returning an error from it
// discards the update.
func (s *BalanceStore) ApplyDeltas(deltas map[string]Delta, commit func(map[string]Balance) error) (map[string]Balance, error) {
	addrs := sortedAddresses(deltas)
	accs := make([]*account, len(addrs))
	for i, a := range addrs {
		acc, ok := s.lookup(a)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, a)
		}
		accs[i] = acc
	}

	for _, acc := range accs {
		acc.mu.Lock()
	}
	defer func() {
		for i := len(accs) - 1; i >= 0; i-- {
			accs[i].mu.Unlock()
		}
	}()

	next := make(map[string]Balance, len(addrs))
	for i, a := range addrs {
		b, err := deltas[a].apply(a, accs[i].balance)
		if err != nil {
			return nil, err
		}
		next[a] = b
	}

	if commit != nil {
		if err := commit(next); err != nil {
			return nil, err
		}
	}

	out := make(map[string]Balance, len(addrs))
	for i, a := range addrs {
		accs[i].balance = next[a]
		accs[i].version++
		out[a] = next[a].Clone()
	}
	return out, nil
}

// restore overwrites a balance during journal replay.
func (s *BalanceStore) restore(address string, b Balance) {
	s.Create(address)
	acc, _ := s.lookup(address)
	acc.mu.Lock()
	acc.balance = b.Clone()
	acc.version++
	acc.mu.Unlock()
}

func (s *BalanceStore) lookup(address string) (*account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[address]
	return acc, ok
}
