package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/logging"
	"github.com/cryptolab/exchange/internal/notification"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
)

type testNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *testNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
	return nil
}

func setup(t *testing.T, notifier notification.Notifier) (*Service, *ledger.InMemory) {
	t.Helper()
	led := ledger.NewInMemory()
	for _, a := range []string{alice, bob} {
		if err := led.EnsureAccount(context.Background(), a); err != nil {
			t.Fatalf("ensure account: %v", err)
		}
	}
	return NewService(led, notifier, logging.Discard()), led
}

func balanceOf(t *testing.T, led ledger.Ledger, address string) ledger.Balance {
	t.Helper()
	b, err := led.Balance(context.Background(), address)
	if err != nil {
		t.Fatalf("balance %s: %v", address, err)
	}
	return b
}

func TestSendSuccess(t *testing.T) {
	notifier := &testNotifier{}
	svc, led := setup(t, notifier)
	ledger.SeedBalance(led, alice, ledger.Balance{ledger.ETH: decimal.NewFromInt(3), ledger.Fiat: decimal.NewFromInt(50)})

	tx, err := svc.Send(context.Background(), SendInput{FromAddress: alice, ToAddress: bob, Symbol: ledger.ETH, Amount: decimal.RequireFromString("1.25")})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if tx.Type != ledger.TxSend || tx.ToAddress != bob || tx.WalletAddress != alice {
		t.Fatalf("unexpected record: %+v", tx)
	}

	a, b := balanceOf(t, led, alice), balanceOf(t, led, bob)
	if !a.Of(ledger.ETH).Equal(decimal.RequireFromString("1.75")) || !b.Of(ledger.ETH).Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("unexpected balances: %v %v", a, b)
	}
	if !a.Of(ledger.Fiat).Equal(decimal.NewFromInt(50)) || !b.Of(ledger.Fiat).IsZero() {
		t.Fatalf("send must not touch other symbols: %v %v", a, b)
	}

	for _, addr := range []string{alice, bob} {
		txs, _ := led.Transactions(context.Background(), addr)
		if len(txs) != 1 || txs[0].ID != tx.ID {
			t.Fatalf("expected the send under %s, got %+v", addr, txs)
		}
	}

	if len(notifier.msgs) != 3 {
		t.Fatalf("expected two balance and one transaction notification, got %d", len(notifier.msgs))
	}
}

func TestSendFailures(t *testing.T) {
	cases := []struct {
		name  string
		input SendInput
		want  error
	}{
		{"zero amount", SendInput{FromAddress: alice, ToAddress: bob, Symbol: ledger.BTC}, ledger.ErrInvalidAmount},
		{"bad symbol", SendInput{FromAddress: alice, ToAddress: bob, Symbol: "XRP", Amount: decimal.NewFromInt(1)}, ledger.ErrInvalidSymbol},
		{"self", SendInput{FromAddress: alice, ToAddress: alice, Symbol: ledger.BTC, Amount: decimal.NewFromInt(1)}, ledger.ErrSelfTransfer},
		{"unknown sender", SendInput{FromAddress: "0xghost", ToAddress: bob, Symbol: ledger.BTC, Amount: decimal.NewFromInt(1)}, ledger.ErrWalletNotFound},
		{"unknown recipient", SendInput{FromAddress: alice, ToAddress: "0xghost", Symbol: ledger.BTC, Amount: decimal.NewFromInt(1)}, ledger.ErrRecipientNotFound},
		{"insufficient", SendInput{FromAddress: alice, ToAddress: bob, Symbol: ledger.BTC, Amount: decimal.NewFromInt(2)}, ledger.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, led := setup(t, nil)
			ledger.SeedBalance(led, alice, ledger.Balance{ledger.BTC: decimal.NewFromInt(1)})

			if _, err := svc.Send(context.Background(), tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !balanceOf(t, led, alice).Of(ledger.BTC).Equal(decimal.NewFromInt(1)) {
				t.Fatal("failed send changed the sender balance")
			}
			if !balanceOf(t, led, bob).Of(ledger.BTC).IsZero() {
				t.Fatal("failed send changed the recipient balance")
			}
		})
	}
}

func TestSendOppositeDirectionsConcurrently(t *testing.T) {
	svc, led := setup(t, nil)
	ledger.SeedBalance(led, alice, ledger.Balance{ledger.BTC: decimal.NewFromInt(10)})
	ledger.SeedBalance(led, bob, ledger.Balance{ledger.BTC: decimal.NewFromInt(10)})

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := alice, bob
			if i%2 == 0 {
				from, to = bob, alice
			}
			_, err := svc.Send(context.Background(), SendInput{
				FromAddress: from,
				ToAddress:   to,
				Symbol:      ledger.BTC,
				Amount:      decimal.RequireFromString("0.1"),
				ClientTxID:  fmt.Sprintf("send-%d", i),
			})
			if err != nil && !errors.Is(err, ledger.ErrInsufficientFunds) {
				t.Errorf("send %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	total := balanceOf(t, led, alice).Of(ledger.BTC).Add(balanceOf(t, led, bob).Of(ledger.BTC))
	if !total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("BTC not conserved, total=%s", total)
	}
}
