package ledger

import (
	"context"
	"errors"
	"fmt"
)

// InMemory is a concurrency-safe ledger composed of a BalanceStore and a
// History. Mutations and their records are committed under the same locks.
type InMemory struct {
	balances *BalanceStore
	history  *History
	journal  Journal
}

// Option configures an InMemory ledger.
type Option func(*InMemory)

// WithJournal records every account, append and commit to j.
func WithJournal(j Journal) Option {
	return func(l *InMemory) {
		l.journal = j
	}
}

// NewInMemory creates an empty in-process ledger.
func NewInMemory(opts ...Option) *InMemory {
	l := &InMemory{
		balances: NewBalanceStore(),
		history:  NewHistory(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *InMemory) EnsureAccount(_ context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if l.balances.Exists(address) {
		return nil
	}
	if l.journal != nil {
		if err := l.journal.Record(JournalEntry{Kind: entryAccount, Address: address}); err != nil {
			return fmt.Errorf("journal account: %w", err)
		}
	}
	l.balances.Create(address)
	return nil
}

func (l *InMemory) AccountExists(_ context.Context, address string) (bool, error) {
	return l.balances.Exists(address), nil
}

func (l *InMemory) Balance(_ context.Context, address string) (Balance, error) {
	b, _, err := l.balances.Get(address)
	return b, err
}

func (l *InMemory) ApplyDelta(_ context.Context, address string, delta Delta) (Balance, error) {
	if l.journal == nil {
		return l.balances.ApplyDelta(address, delta)
	}
	out, err := l.balances.ApplyDeltas(map[string]Delta{address: delta}, func(next map[string]Balance) error {
		return l.journal.Record(JournalEntry{Kind: entryBalance, Balances: next})
	})
	if err != nil {
		return nil, err
	}
	return out[address], nil
}

func (l *InMemory) Append(_ context.Context, tx Transaction) (Transaction, error) {
	return l.history.appendWith(tx, l.journalRecord(entryAppend, nil))
}

func (l *InMemory) Transactions(_ context.Context, address string) ([]Transaction, error) {
	if !l.balances.Exists(address) {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, address)
	}
	return l.history.List(address), nil
}

// Commit applies posting.Deltas and appends posting.Record while holding the
// locks of every touched account. A duplicate record id leaves balances
// untouched and returns the stored record with ErrDuplicateTransaction.
func (l *InMemory) Commit(_ context.Context, posting Posting) (Receipt, error) {
	if len(posting.Deltas) == 0 {
		return Receipt{}, fmt.Errorf("posting has no deltas")
	}

	var (
		committed Transaction
		existing  Transaction
	)
	balances, err := l.balances.ApplyDeltas(posting.Deltas, func(next map[string]Balance) error {
		tx, err := l.history.appendWith(posting.Record, l.journalRecord(entryCommit, next))
		if err != nil {
			if errors.Is(err, ErrDuplicateTransaction) {
				existing = tx
			}
			return err
		}
		committed = tx
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return Receipt{Transaction: existing}, err
		}
		return Receipt{}, err
	}
	return Receipt{Transaction: committed, Balances: balances}, nil
}

// Restore rebuilds accounts, balances and history from a journal. It is
// meant to run once, before the ledger serves requests.
func (l *InMemory) Restore(j Journal) (int, error) {
	entries, err := j.Entries()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		switch e.Kind {
		case entryAccount:
			l.balances.Create(e.Address)
		case entryBalance, entryCommit, entryAppend:
			for addr, b := range e.Balances {
				l.balances.restore(addr, b)
			}
			if e.Transaction != nil {
				l.history.restore(*e.Transaction)
			}
		default:
			return 0, fmt.Errorf("unknown journal entry kind %q", e.Kind)
		}
	}
	return len(entries), nil
}

func (l *InMemory) journalRecord(kind string, balances map[string]Balance) func(Transaction) error {
	if l.journal == nil {
		return nil
	}
	return func(tx Transaction) error {
		if err := l.journal.Record(JournalEntry{Kind: kind, Transaction: &tx, Balances: balances}); err != nil {
			return fmt.Errorf("journal %s: %w", kind, err)
		}
		return nil
	}
}
