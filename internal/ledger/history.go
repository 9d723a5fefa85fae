package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// History is the append-only record of completed operations, keyed by wallet.
type History struct {
	mu        sync.RWMutex
	seq       uint64
	byID      map[string]Transaction
	byAddress map[string][]string
	now       func() time.Time
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		byID:      make(map[string]Transaction),
		byAddress: make(map[string][]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Append stores tx and returns it with its assigned id, sequence and
// timestamp. Appending an id that is already present stores nothing and
// returns the existing record with ErrDuplicateTransaction.
func (h *History) Append(tx Transaction) (Transaction, error) {
	return h.appendWith(tx, nil)
}

// appendWith runs before on the prepared record and stores it only when
// before succeeds.
func (h *History) appendWith(tx Transaction, before func(Transaction) error) (Transaction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.check(tx); err != nil {
		return h.byID[tx.ID], err
	}
	tx = h.prepare(tx)
	if before != nil {
		if err := before(tx); err != nil {
			return Transaction{}, err
		}
	}
	h.store(tx)
	return tx, nil
}

// List returns the records of address, most recent first.
func (h *History) List(address string) []Transaction {
	h.mu.RLock()
	ids := h.byAddress[address]
	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, h.byID[id])
	}
	h.mu.RUnlock()
	SortNewestFirst(out)
	return out
}

// Len returns the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

func (h *History) check(tx Transaction) error {
	if tx.ID == "" {
		return nil
	}
	if _, exists := h.byID[tx.ID]; exists {
		return ErrDuplicateTransaction
	}
	return nil
}

// prepare fills in the id, timestamp, status and next sequence of tx
// without storing it. mu must be held.
func (h *History) prepare(tx Transaction) Transaction {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = h.now()
	}
	if tx.Status == "" {
		tx.Status = StatusCompleted
	}
	tx.Seq = h.seq + 1
	return tx
}

// store indexes a prepared record. mu must be held.
func (h *History) store(tx Transaction) {
	h.seq = tx.Seq
	h.byID[tx.ID] = tx
	for _, a := range tx.Addresses() {
		h.byAddress[a] = append(h.byAddress[a], tx.ID)
	}
}

// restore re-inserts a journaled record keeping its original sequence.
func (h *History) restore(tx Transaction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.byID[tx.ID]; exists {
		return
	}
	seq := h.seq
	h.store(tx)
	if seq > h.seq {
		h.seq = seq
	}
}
