package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/logging"
	"github.com/cryptolab/exchange/internal/notification"
)

func TestCache_EmptyReportsUnavailable(t *testing.T) {
	c := NewCache()
	_, ok := c.Latest()
	assert.False(t, ok)
	_, err := c.Snapshot()
	assert.ErrorIs(t, err, ledger.ErrPriceUnavailable)
}

func TestCache_UpdateCopiesPrices(t *testing.T) {
	c := NewCache()
	prices := map[ledger.Symbol]decimal.Decimal{ledger.BTC: decimal.NewFromInt(100)}
	c.Update(Snapshot{Prices: prices})

	prices[ledger.BTC] = decimal.NewFromInt(1)

	snap, err := c.Snapshot()
	require.NoError(t, err)
	p, err := snap.PriceOf(ledger.BTC)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromInt(100)))
	assert.False(t, snap.Timestamp.IsZero())

	_, err = snap.PriceOf(ledger.ETH)
	assert.ErrorIs(t, err, ledger.ErrPriceUnavailable)
}

func TestCache_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			v := decimal.NewFromInt(int64(i))
			c.Update(Snapshot{Prices: map[ledger.Symbol]decimal.Decimal{ledger.BTC: v, ledger.ETH: v}})
		}(i)
		go func() {
			defer wg.Done()
			if snap, ok := c.Latest(); ok {
				if !snap.Prices[ledger.BTC].Equal(snap.Prices[ledger.ETH]) {
					t.Errorf("torn snapshot: %v", snap.Prices)
				}
			}
		}()
	}
	wg.Wait()
}

func TestBuildOrderBook(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	book := BuildOrderBook(ledger.BTC, decimal.NewFromInt(100000), rng, time.Unix(0, 0))

	require.Len(t, book.Bids, 10)
	require.Len(t, book.Asks, 10)
	assert.True(t, book.Bids[0].Price.Equal(decimal.NewFromInt(99900)), "got %s", book.Bids[0].Price)
	assert.True(t, book.Asks[0].Price.Equal(decimal.NewFromInt(100100)), "got %s", book.Asks[0].Price)
	assert.True(t, book.Bids[9].Price.Equal(decimal.NewFromInt(99000)))
	assert.True(t, book.Asks[9].Price.Equal(decimal.NewFromInt(101000)))

	lo, hi := decimal.RequireFromString("0.1"), decimal.RequireFromString("0.6")
	for i, lvl := range append(book.Bids, book.Asks...) {
		assert.True(t, lvl.Amount.GreaterThanOrEqual(lo) && lvl.Amount.LessThan(hi), "level %d amount %s", i, lvl.Amount)
	}
	for i := 1; i < 10; i++ {
		assert.True(t, book.Bids[i-1].Price.GreaterThan(book.Bids[i].Price))
		assert.True(t, book.Asks[i-1].Price.LessThan(book.Asks[i].Price))
	}
}

func TestCoinGeckoFetcher_ParsesPrices(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"bitcoin":{"inr":3000000},"ethereum":{"inr":150000.5},"binancecoin":{"inr":24000}}`)
	}))
	defer srv.Close()

	snap, err := NewCoinGeckoFetcher(srv.URL+"/", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ids=bitcoin,ethereum,polygon,binancecoin&vs_currencies=inr", gotQuery)
	assert.True(t, snap.Prices[ledger.ETH].Equal(decimal.RequireFromString("150000.5")))
	_, hasMatic := snap.Prices[ledger.MATIC]
	assert.False(t, hasMatic, "missing ids are left out of the snapshot")
	assert.Equal(t, sourceCoinGecko, snap.Source)
}

func TestCoinGeckoFetcher_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewCoinGeckoFetcher(srv.URL, time.Second).Fetch(context.Background())
	assert.Error(t, err)
}

type stubFetcher struct {
	snap Snapshot
	err  error
}

func (f stubFetcher) Fetch(context.Context) (Snapshot, error) { return f.snap, f.err }

func TestOracle_RefreshPublishesSnapshot(t *testing.T) {
	hub := notification.NewHub(4)
	sub := hub.Subscribe()
	fetcher := stubFetcher{snap: Snapshot{
		Prices:    map[ledger.Symbol]decimal.Decimal{ledger.BTC: decimal.NewFromInt(1000)},
		Timestamp: time.Now().UTC(),
	}}
	o := NewOracle(fetcher, NewCache(), NewOrderBooks(), hub, nil, logging.Discard(), OracleConfig{})

	_, err := o.Refresh(context.Background())
	require.NoError(t, err)

	snap, ok := o.Cache().Latest()
	require.True(t, ok)
	assert.True(t, snap.Prices[ledger.BTC].Equal(decimal.NewFromInt(1000)))
	_, ok = o.OrderBooks().Get(ledger.BTC)
	assert.True(t, ok)
	_, ok = o.OrderBooks().Get(ledger.ETH)
	assert.False(t, ok)
	assert.Equal(t, notification.KindPrices, (<-sub).Kind)
}

func TestOracle_FallbackOnFetchError(t *testing.T) {
	o := NewOracle(stubFetcher{err: errors.New("offline")}, NewCache(), NewOrderBooks(), nil, nil, logging.Discard(), OracleConfig{Fallback: true})

	snap, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sourceFallback, snap.Source)
	assert.True(t, snap.Prices[ledger.MATIC].Equal(decimal.RequireFromString("68.45")))
}

func TestOracle_NoFallbackKeepsPreviousSnapshot(t *testing.T) {
	cache := NewCache()
	cache.Update(Snapshot{Prices: map[ledger.Symbol]decimal.Decimal{ledger.BTC: decimal.NewFromInt(5)}})
	o := NewOracle(stubFetcher{err: errors.New("offline")}, cache, NewOrderBooks(), nil, nil, logging.Discard(), OracleConfig{})

	_, err := o.Refresh(context.Background())
	assert.Error(t, err)
	snap, _ := cache.Latest()
	assert.True(t, snap.Prices[ledger.BTC].Equal(decimal.NewFromInt(5)))
}

func TestOracle_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	o := NewOracle(stubFetcher{err: errors.New("offline")}, NewCache(), NewOrderBooks(), nil, nil, logging.Discard(),
		OracleConfig{Interval: 10 * time.Millisecond, Fallback: true})

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := o.Cache().Latest()
		return ok
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("oracle did not stop")
	}
}

func TestRedisMirror_PublishAndWarm(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	m := NewRedisMirror(client, "", time.Minute)
	ctx := context.Background()

	_, ok, err := m.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Publish(ctx, FallbackSnapshot(time.Now().UTC())))
	assert.True(t, mr.Exists(DefaultMirrorKey))

	cache := NewCache()
	warmed, err := m.Warm(ctx, cache)
	require.NoError(t, err)
	assert.True(t, warmed)
	snap, _ := cache.Latest()
	assert.True(t, snap.Prices[ledger.BNB].Equal(decimal.NewFromInt(24567)))

	warmed, err = m.Warm(ctx, cache)
	require.NoError(t, err)
	assert.False(t, warmed, "a populated cache is not overwritten")
}
