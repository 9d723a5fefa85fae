//go:build integration

package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptolab/exchange/internal/infra"
)

func newPostgresLedger(t *testing.T) *PostgresLedger {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := infra.NewPostgresPool(ctx, url, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, infra.EnsureSchema(ctx, pool))
	return NewPostgresLedger(pool)
}

func TestPostgresLedger_ReadBackMatchesReceipt(t *testing.T) {
	l := newPostgresLedger(t)
	ctx := context.Background()
	addr := "0x" + uuid.NewString()[:8] + "00000000000000000000000000000000"

	require.NoError(t, l.EnsureAccount(ctx, addr))
	_, err := l.ApplyDelta(ctx, addr, Delta{BTC: dec("1")})
	require.NoError(t, err)

	// 0.123456789 BTC at 5432101.987654321 gives a fee with more than
	// eighteen fractional digits.
	amount := dec("0.123456789")
	price := dec("5432101.987654321")
	gross := amount.Mul(price)
	fee := gross.Mul(dec("0.001"))
	tax := gross.Mul(dec("0.01"))
	net := gross.Sub(fee).Sub(tax)
	require.Greater(t, -fee.Exponent(), int32(18))

	receipt, err := l.Commit(ctx, Posting{
		Deltas: map[string]Delta{addr: {BTC: amount.Neg(), Fiat: net}},
		Record: Transaction{
			ID:            uuid.NewString(),
			Type:          TxSell,
			WalletAddress: addr,
			Symbol:        BTC,
			Amount:        amount,
			FiatAmount:    &net,
			Price:         &price,
			Fee:           &fee,
			Tax:           &tax,
			Timestamp:     time.Now().UTC().Truncate(time.Microsecond),
			Status:        StatusCompleted,
		},
	})
	require.NoError(t, err)

	bal, err := l.Balance(ctx, addr)
	require.NoError(t, err)
	assert.True(t, bal[Fiat].Equal(receipt.Balances[addr][Fiat]), "fiat %s vs receipt %s", bal[Fiat], receipt.Balances[addr][Fiat])
	assert.True(t, bal[Fiat].Equal(net))

	txs, err := l.Transactions(ctx, addr)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Fee.Equal(fee), "fee %s vs %s", txs[0].Fee, fee)
	assert.True(t, txs[0].Tax.Equal(tax))
	assert.True(t, txs[0].FiatAmount.Equal(net))
}
