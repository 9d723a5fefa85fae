package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger persists balances and transactions in PostgreSQL. Account
// rows are locked FOR UPDATE in sorted address order, so a commit holds the
// same per-address serialization as the in-memory store.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account and its zero balances exist.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO ledger_accounts (address, version, created_at) VALUES ($1, 0, $2)
        ON CONFLICT (address) DO NOTHING`, address, time.Now().UTC()); err != nil {
		return err
	}
	for _, s := range Symbols {
		if _, err := tx.Exec(ctx, `INSERT INTO ledger_balances (address, symbol, amount) VALUES ($1, $2, 0)
            ON CONFLICT (address, symbol) DO NOTHING`, address, string(s)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// AccountExists reports whether the address has an account row.
func (l *PostgresLedger) AccountExists(ctx context.Context, address string) (bool, error) {
	var exists bool
	err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE address = $1)`, address).Scan(&exists)
	return exists, err
}

// Balance returns the balance of every supported symbol.
func (l *PostgresLedger) Balance(ctx context.Context, address string) (Balance, error) {
	exists, err := l.AccountExists(ctx, address)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, address)
	}
	return balanceFor(ctx, l.db, address)
}

// ApplyDelta changes every field in delta or none of them.
func (l *PostgresLedger) ApplyDelta(ctx context.Context, address string, delta Delta) (Balance, error) {
	var out Balance
	err := l.inTx(ctx, map[string]Delta{address: delta}, func(tx pgx.Tx, next map[string]Balance) error {
		out = next[address]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Append inserts a record. A record whose id already exists is not inserted
// again; the stored copy is returned with ErrDuplicateTransaction.
func (l *PostgresLedger) Append(ctx context.Context, rec Transaction) (Transaction, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	stored, err := insertTransaction(ctx, tx, rec)
	if err != nil {
		return stored, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return stored, nil
}

// Transactions lists the records of address, most recent first.
func (l *PostgresLedger) Transactions(ctx context.Context, address string) ([]Transaction, error) {
	exists, err := l.AccountExists(ctx, address)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, address)
	}
	rows, err := l.db.Query(ctx, selectTransactions+`
        WHERE wallet_address = $1 OR to_address = $1
        ORDER BY created_at DESC, seq DESC`, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Commit applies the deltas and inserts the record inside one database transaction.
func (l *PostgresLedger) Commit(ctx context.Context, posting Posting) (Receipt, error) {
	if len(posting.Deltas) == 0 {
		return Receipt{}, fmt.Errorf("posting has no deltas")
	}
	var receipt Receipt
	err := l.inTx(ctx, posting.Deltas, func(tx pgx.Tx, next map[string]Balance) error {
		stored, err := insertTransaction(ctx, tx, posting.Record)
		if err != nil {
			receipt.Transaction = stored
			return err
		}
		receipt = Receipt{Transaction: stored, Balances: next}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return Receipt{Transaction: receipt.Transaction}, err
		}
		return Receipt{}, err
	}
	return receipt, nil
}

// inTx locks the accounts of deltas, validates the new balances, runs fn and
// writes the balances back before committing.
func (l *PostgresLedger) inTx(ctx context.Context, deltas map[string]Delta, fn func(pgx.Tx, map[string]Balance) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	addrs := sortedAddresses(deltas)
	next := make(map[string]Balance, len(addrs))
	for _, a := range addrs {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT address FROM ledger_accounts WHERE address = $1 FOR UPDATE`, a).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrWalletNotFound, a)
			}
			return err
		}
		current, err := balanceFor(ctx, tx, a)
		if err != nil {
			return err
		}
		updated, err := deltas[a].apply(a, current)
		if err != nil {
			return err
		}
		next[a] = updated
	}

	if err := fn(tx, next); err != nil {
		return err
	}

	for _, a := range addrs {
		for s := range deltas[a] {
			if _, err := tx.Exec(ctx, `UPDATE ledger_balances SET amount = $3::numeric WHERE address = $1 AND symbol = $2`,
				a, string(s), next[a][s].String()); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE ledger_accounts SET version = version + 1 WHERE address = $1`, a); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func balanceFor(ctx context.Context, q querier, address string) (Balance, error) {
	rows, err := q.Query(ctx, `SELECT symbol, amount::text FROM ledger_balances WHERE address = $1`, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	b := NewBalance()
	for rows.Next() {
		var symbol, amount string
		if err := rows.Scan(&symbol, &amount); err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("decode %s balance: %w", symbol, err)
		}
		b[Symbol(symbol)] = d
	}
	return b, rows.Err()
}

const selectTransactions = `SELECT id, seq, type, wallet_address, COALESCE(to_address, ''), COALESCE(symbol, ''),
        amount::text, fiat_amount::text, price::text, fee::text, tax::text,
        COALESCE(reference, ''), status, created_at
        FROM ledger_transactions`

func insertTransaction(ctx context.Context, tx pgx.Tx, rec Transaction) (Transaction, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusCompleted
	}

	var seq int64
	err := tx.QueryRow(ctx, `INSERT INTO ledger_transactions
        (id, type, wallet_address, to_address, symbol, amount, fiat_amount, price, fee, tax, reference, status, created_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric, NULLIF($11, ''), $12, $13)
        ON CONFLICT (id) DO NOTHING
        RETURNING seq`,
		rec.ID, string(rec.Type), rec.WalletAddress, rec.ToAddress, string(rec.Symbol), rec.Amount.String(),
		numericArg(rec.FiatAmount), numericArg(rec.Price), numericArg(rec.Fee), numericArg(rec.Tax),
		rec.Reference, string(rec.Status), rec.Timestamp.UTC()).Scan(&seq)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, err
		}
		existing, lookupErr := scanTransaction(tx.QueryRow(ctx, selectTransactions+` WHERE id = $1`, rec.ID))
		if lookupErr != nil {
			return Transaction{}, lookupErr
		}
		return existing, ErrDuplicateTransaction
	}
	rec.Seq = uint64(seq)
	return rec, nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t                      Transaction
		seq                    int64
		txType, symbol, status string
		amount                 string
		fiat, price, fee, tax  *string
		createdAt              time.Time
	)
	if err := row.Scan(&t.ID, &seq, &txType, &t.WalletAddress, &t.ToAddress, &symbol,
		&amount, &fiat, &price, &fee, &tax, &t.Reference, &status, &createdAt); err != nil {
		return Transaction{}, err
	}
	t.Seq = uint64(seq)
	t.Type = TxType(txType)
	t.Symbol = Symbol(symbol)
	t.Status = TxStatus(status)
	t.Timestamp = createdAt.UTC()

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return Transaction{}, fmt.Errorf("decode amount: %w", err)
	}
	for _, f := range []struct {
		raw *string
		dst **decimal.Decimal
	}{{fiat, &t.FiatAmount}, {price, &t.Price}, {fee, &t.Fee}, {tax, &t.Tax}} {
		if f.raw == nil {
			continue
		}
		d, err := decimal.NewFromString(*f.raw)
		if err != nil {
			return Transaction{}, fmt.Errorf("decode numeric column: %w", err)
		}
		*f.dst = &d
	}
	return t, nil
}

func numericArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
