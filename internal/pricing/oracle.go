package pricing

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/notification"
)

const (
	// DefaultRefreshInterval is how often the oracle refreshes prices.
	DefaultRefreshInterval = 30 * time.Second
	sourceFallback         = "fallback"
)

// FallbackSnapshot returns the fixed prices published when the feed is down.
func FallbackSnapshot(at time.Time) Snapshot {
	return Snapshot{
		Prices: map[ledger.Symbol]decimal.Decimal{
			ledger.BTC:   decimal.NewFromInt(3245678),
			ledger.ETH:   decimal.NewFromInt(178432),
			ledger.MATIC: decimal.RequireFromString("68.45"),
			ledger.BNB:   decimal.NewFromInt(24567),
		},
		Timestamp: at,
		Source:    sourceFallback,
	}
}

// Mirror copies snapshots to a shared store so other instances can read them.
type Mirror interface {
	Publish(ctx context.Context, s Snapshot) error
}

// OracleConfig tunes the refresh loop.
type OracleConfig struct {
	Interval time.Duration
	Fallback bool
}

// Oracle periodically refreshes the price cache, rebuilds the synthetic order
// books and announces each new snapshot.
type Oracle struct {
	fetcher  Fetcher
	cache    *Cache
	books    *OrderBooks
	notifier notification.Notifier
	mirror   Mirror
	logger   *slog.Logger
	cfg      OracleConfig

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewOracle wires an oracle. notifier and mirror may be nil.
func NewOracle(fetcher Fetcher, cache *Cache, books *OrderBooks, notifier notification.Notifier, mirror Mirror, logger *slog.Logger, cfg OracleConfig) *Oracle {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	seed := uint64(time.Now().UnixNano())
	return &Oracle{
		fetcher:  fetcher,
		cache:    cache,
		books:    books,
		notifier: notifier,
		mirror:   mirror,
		logger:   logger,
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(seed, seed>>1)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Refresh fetches one snapshot and publishes it. When the fetch fails and
// fallback is enabled the fixed fallback prices are published instead.
func (o *Oracle) Refresh(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap, err := o.fetcher.Fetch(ctx)
	if err != nil {
		if !o.cfg.Fallback {
			o.logger.Warn("price refresh failed", "error", err)
			return Snapshot{}, err
		}
		o.logger.Warn("price refresh failed, using fallback prices", "error", err)
		snap = FallbackSnapshot(o.now())
	}

	o.cache.Update(snap)
	for _, sym := range ledger.CryptoSymbols {
		if p, err := snap.PriceOf(sym); err == nil {
			o.books.Put(BuildOrderBook(sym, p, o.rng, snap.Timestamp))
		}
	}

	if o.mirror != nil {
		if err := o.mirror.Publish(ctx, snap); err != nil {
			o.logger.Warn("price mirror failed", "error", err)
		}
	}
	notification.Notify(ctx, o.notifier, o.logger, notification.Message{
		Kind: notification.KindPrices,
		Data: snap,
	})
	o.logger.Debug("prices refreshed", "source", snap.Source, "symbols", len(snap.Prices))
	return snap, nil
}

// Run refreshes immediately and then on every interval until ctx is done.
func (o *Oracle) Run(ctx context.Context) error {
	o.Refresh(ctx) // nolint:errcheck

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.Refresh(ctx) // nolint:errcheck
		}
	}
}

// Cache exposes the snapshot cache the oracle writes to.
func (o *Oracle) Cache() *Cache {
	return o.cache
}

// OrderBooks exposes the order books the oracle maintains.
func (o *Oracle) OrderBooks() *OrderBooks {
	return o.books
}
