package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
)

const (
	// DefaultCoinGeckoURL is the public CoinGecko API base.
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"
	defaultFetchTimeout = 10 * time.Second
	coinGeckoQuote      = "inr"
	sourceCoinGecko     = "coingecko"
)

// coinGeckoIDs maps ledger symbols to CoinGecko asset ids, in request order.
var coinGeckoIDs = []struct {
	symbol ledger.Symbol
	id     string
}{
	{ledger.BTC, "bitcoin"},
	{ledger.ETH, "ethereum"},
	{ledger.MATIC, "polygon"},
	{ledger.BNB, "binancecoin"},
}

// Fetcher retrieves a fresh price snapshot from an external source.
type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// CoinGeckoFetcher reads INR prices from the CoinGecko simple price endpoint.
type CoinGeckoFetcher struct {
	BaseURL string
	Timeout time.Duration
	now     func() time.Time
}

// NewCoinGeckoFetcher builds a fetcher; an empty baseURL selects the public API.
func NewCoinGeckoFetcher(baseURL string, timeout time.Duration) *CoinGeckoFetcher {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &CoinGeckoFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Fetch requests the latest prices. Symbols absent from the response are
// left out of the snapshot rather than priced at zero.
func (f *CoinGeckoFetcher) Fetch(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	ids := make([]string, 0, len(coinGeckoIDs))
	for _, c := range coinGeckoIDs {
		ids = append(ids, c.id)
	}
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", f.BaseURL, strings.Join(ids, ","), coinGeckoQuote)

	agent := fiber.Get(url).Timeout(f.Timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return Snapshot{}, fmt.Errorf("fetch prices: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return Snapshot{}, fmt.Errorf("fetch prices: status %d", code)
	}

	var raw map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode prices: %w", err)
	}

	snap := Snapshot{
		Prices:    make(map[ledger.Symbol]decimal.Decimal, len(coinGeckoIDs)),
		Timestamp: f.now(),
		Source:    sourceCoinGecko,
	}
	for _, c := range coinGeckoIDs {
		if p, ok := raw[c.id][coinGeckoQuote]; ok && p.IsPositive() {
			snap.Prices[c.symbol] = p
		}
	}
	if len(snap.Prices) == 0 {
		return Snapshot{}, fmt.Errorf("fetch prices: empty response")
	}
	return snap, nil
}
