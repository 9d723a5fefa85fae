package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
    address TEXT PRIMARY KEY,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_balances (
    address TEXT NOT NULL REFERENCES ledger_accounts (address),
    symbol TEXT NOT NULL,
    amount NUMERIC NOT NULL DEFAULT 0 CHECK (amount >= 0),
    PRIMARY KEY (address, symbol)
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
    id TEXT PRIMARY KEY,
    seq BIGSERIAL NOT NULL UNIQUE,
    type TEXT NOT NULL,
    wallet_address TEXT NOT NULL,
    to_address TEXT,
    symbol TEXT,
    amount NUMERIC NOT NULL,
    fiat_amount NUMERIC,
    price NUMERIC,
    fee NUMERIC,
    tax NUMERIC,
    reference TEXT,
    status TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_transactions_wallet ON ledger_transactions (wallet_address, seq DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_transactions_to ON ledger_transactions (to_address, seq DESC) WHERE to_address IS NOT NULL;

CREATE TABLE IF NOT EXISTS wallets (
    address TEXT PRIMARY KEY,
    encrypted_key BYTEA NOT NULL,
    salt BYTEA NOT NULL,
    nonce BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the ledger and wallet tables when they do not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if db == nil {
		return fmt.Errorf("database pool is required")
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
