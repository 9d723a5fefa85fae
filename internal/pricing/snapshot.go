package pricing

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
)

// Snapshot is an immutable set of fiat prices taken at one point in time.
type Snapshot struct {
	Prices    map[ledger.Symbol]decimal.Decimal `json:"prices"`
	Timestamp time.Time                         `json:"timestamp"`
	Source    string                            `json:"source,omitempty"`
}

// PriceOf returns the price of sym, or ErrPriceUnavailable when the symbol is
// missing from the snapshot or not positive.
func (s Snapshot) PriceOf(sym ledger.Symbol) (decimal.Decimal, error) {
	p, ok := s.Prices[sym]
	if !ok || !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ledger.ErrPriceUnavailable, sym)
	}
	return p, nil
}

func (s Snapshot) clone() Snapshot {
	prices := make(map[ledger.Symbol]decimal.Decimal, len(s.Prices))
	for k, v := range s.Prices {
		prices[k] = v
	}
	s.Prices = prices
	return s
}

// Cache holds the latest snapshot. Update swaps in a private copy, so readers
// never lock and never observe a half-written snapshot. Readers may see a
// snapshot up to one refresh interval old.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Update replaces the current snapshot.
func (c *Cache) Update(s Snapshot) {
	next := s.clone()
	if next.Timestamp.IsZero() {
		next.Timestamp = time.Now().UTC()
	}
	c.current.Store(&next)
}

// Latest returns the current snapshot and whether one has been stored.
func (c *Cache) Latest() (Snapshot, bool) {
	s := c.current.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Snapshot returns the current snapshot or ErrPriceUnavailable.
func (c *Cache) Snapshot() (Snapshot, error) {
	s, ok := c.Latest()
	if !ok {
		return Snapshot{}, ledger.ErrPriceUnavailable
	}
	return s, nil
}
