package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/logging"
	"github.com/cryptolab/exchange/internal/notification"
	"github.com/cryptolab/exchange/internal/pricing"
)

const addr = "0x00000000000000000000000000000000000000aa"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
	return nil
}

func newService(t *testing.T, fiat string, prices map[ledger.Symbol]decimal.Decimal) (*Service, *ledger.InMemory, *recordingNotifier) {
	t.Helper()
	led := ledger.NewInMemory()
	require.NoError(t, led.EnsureAccount(context.Background(), addr))
	ledger.SeedBalance(led, addr, ledger.Balance{ledger.Fiat: dec(fiat)})

	cache := pricing.NewCache()
	if prices != nil {
		cache.Update(pricing.Snapshot{Prices: prices})
	}
	notifier := &recordingNotifier{}
	return NewService(led, cache, notifier, logging.Discard()), led, notifier
}

func btcAt(price string) map[ledger.Symbol]decimal.Decimal {
	return map[ledger.Symbol]decimal.Decimal{ledger.BTC: dec(price)}
}

func TestBuy_FeeAndTaxArithmetic(t *testing.T) {
	svc, led, notifier := newService(t, "10000", btcAt("3000000"))

	tx, err := svc.Buy(context.Background(), BuyInput{Address: addr, Symbol: ledger.BTC, FiatAmount: dec("1000"), WithholdTax: true})
	require.NoError(t, err)

	want := dec("1000").Div(dec("3000000"))
	assert.Equal(t, ledger.TxBuy, tx.Type)
	assert.True(t, tx.Amount.Equal(want), "asset amount %s", tx.Amount)
	assert.True(t, tx.Fee.Equal(dec("1")))
	assert.True(t, tx.Tax.Equal(dec("10")))
	assert.True(t, tx.FiatAmount.Equal(dec("1000")))
	assert.True(t, tx.Price.Equal(dec("3000000")))

	bal, err := led.Balance(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, bal.Of(ledger.Fiat).Equal(dec("8989")), "fiat %s", bal.Of(ledger.Fiat))
	assert.True(t, bal.Of(ledger.BTC).Equal(want))

	require.Len(t, notifier.msgs, 2)
	assert.Equal(t, notification.KindBalanceChanged, notifier.msgs[0].Kind)
	assert.Equal(t, notification.KindTransaction, notifier.msgs[1].Kind)
}

func TestBuy_WithoutTax(t *testing.T) {
	svc, led, _ := newService(t, "10000", btcAt("3000000"))

	tx, err := svc.Buy(context.Background(), BuyInput{Address: addr, Symbol: ledger.BTC, FiatAmount: dec("1000")})
	require.NoError(t, err)
	assert.True(t, tx.Tax.IsZero())

	bal, _ := led.Balance(context.Background(), addr)
	assert.True(t, bal.Of(ledger.Fiat).Equal(dec("8999")))
}

func TestSell_CreditsNetProceeds(t *testing.T) {
	svc, led, _ := newService(t, "0", btcAt("2000000"))
	ledger.SeedBalance(led, addr, ledger.Balance{ledger.BTC: dec("0.5")})

	tx, err := svc.Sell(context.Background(), SellInput{Address: addr, Symbol: ledger.BTC, AssetAmount: dec("0.1"), WithholdTax: true})
	require.NoError(t, err)

	// gross 200000, fee 200, tax 2000
	assert.True(t, tx.FiatAmount.Equal(dec("197800")), "net %s", tx.FiatAmount)
	assert.True(t, tx.Fee.Equal(dec("200")))
	assert.True(t, tx.Tax.Equal(dec("2000")))

	bal, _ := led.Balance(context.Background(), addr)
	assert.True(t, bal.Of(ledger.Fiat).Equal(dec("197800")))
	assert.True(t, bal.Of(ledger.BTC).Equal(dec("0.4")))
}

func TestOrders_ValidationFailuresDoNotMutate(t *testing.T) {
	cases := []struct {
		name   string
		prices map[ledger.Symbol]decimal.Decimal
		in     BuyInput
		want   error
	}{
		{"zero amount", btcAt("100"), BuyInput{Address: addr, Symbol: ledger.BTC, FiatAmount: decimal.Zero}, ledger.ErrInvalidAmount},
		{"negative amount", btcAt("100"), BuyInput{Address: addr, Symbol: ledger.BTC, FiatAmount: dec("-5")}, ledger.ErrInvalidAmount},
		{"unknown symbol", btcAt("100"), BuyInput{Address: addr, Symbol: "DOGE", FiatAmount: dec("5")}, ledger.ErrInvalidSymbol},
		{"fiat not tradable", btcAt("100"), BuyInput{Address: addr, Symbol: ledger.Fiat, FiatAmount: dec("5")}, ledger.ErrInvalidSymbol},
		{"unknown wallet", btcAt("100"), BuyInput{Address: "0xnope", Symbol: ledger.BTC, FiatAmount: dec("5")}, ledger.ErrWalletNotFound},
		{"no snapshot", nil, BuyInput{Address: addr, Symbol: ledger.BTC, FiatAmount: dec("5")}, ledger.ErrPriceUnavailable},
		{"symbol not priced", btcAt("100"), BuyInput{Address: addr, Symbol: ledger.ETH, FiatAmount: dec("5")}, ledger.ErrPriceUnavailable},
		{"insufficient fiat", btcAt("100"), BuyInput{Address: addr, Symbol: ledger.BTC, FiatAmount: dec("1000")}, ledger.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, led, notifier := newService(t, "100", tc.prices)

			_, err := svc.Buy(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)

			bal, _ := led.Balance(context.Background(), addr)
			assert.True(t, bal.Of(ledger.Fiat).Equal(dec("100")))
			assert.True(t, bal.Of(ledger.BTC).IsZero())
			txs, _ := led.Transactions(context.Background(), addr)
			assert.Empty(t, txs)
			assert.Empty(t, notifier.msgs)
		})
	}
}

func TestSell_InsufficientAsset(t *testing.T) {
	svc, led, _ := newService(t, "100", btcAt("100"))

	_, err := svc.Sell(context.Background(), SellInput{Address: addr, Symbol: ledger.BTC, AssetAmount: dec("1")})
	var insufficient *ledger.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, ledger.BTC, insufficient.Symbol)

	bal, _ := led.Balance(context.Background(), addr)
	assert.True(t, bal.Of(ledger.Fiat).Equal(dec("100")))
}

func TestBuy_ConcurrentExhaustion(t *testing.T) {
	svc, led, _ := newService(t, "1500", btcAt("1000"))

	var (
		wg      sync.WaitGroup
		errs    = make([]error, 2)
		results = make([]ledger.Transaction, 2)
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Buy(context.Background(), BuyInput{Address: addr, Symbol: ledger.BTC, FiatAmount: dec("1000")})
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	bal, _ := led.Balance(context.Background(), addr)
	assert.True(t, bal.Of(ledger.Fiat).Equal(dec("499")), "fiat %s", bal.Of(ledger.Fiat))
	assert.True(t, bal.Of(ledger.BTC).Equal(dec("1")))
}

func TestBuy_ClientTxIDIsIdempotent(t *testing.T) {
	svc, led, _ := newService(t, "10000", btcAt("1000"))
	in := BuyInput{Address: addr, Symbol: ledger.BTC, FiatAmount: dec("1000"), ClientTxID: "order-1"}

	first, err := svc.Buy(context.Background(), in)
	require.NoError(t, err)
	again, err := svc.Buy(context.Background(), in)
	assert.ErrorIs(t, err, ledger.ErrDuplicateTransaction)
	assert.Equal(t, first.ID, again.ID)

	bal, _ := led.Balance(context.Background(), addr)
	assert.True(t, bal.Of(ledger.Fiat).Equal(dec("8999")))
}
