package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cryptolab/exchange/internal/ledger"
)

// Repository persists wallet metadata.
type Repository interface {
	Create(ctx context.Context, wallet Wallet) error
	Get(ctx context.Context, address string) (Wallet, error)
	List(ctx context.Context) ([]Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, wallet Wallet) error {
	_, err := r.db.Exec(ctx, `INSERT INTO wallets (address, encrypted_key, salt, nonce, created_at)
        VALUES ($1, $2, $3, $4, $5)`, wallet.Address, wallet.EncryptedKey, wallet.Salt, wallet.Nonce, wallet.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrWalletExists, wallet.Address)
	}
	return err
}

// Get fetches wallet metadata by address.
func (r *PostgresRepository) Get(ctx context.Context, address string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT address, encrypted_key, salt, nonce, created_at
        FROM wallets WHERE address = $1`, address)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, address)
	}
	return w, err
}

// List returns every wallet, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, `SELECT address, encrypted_key, salt, nonce, created_at
        FROM wallets ORDER BY created_at, address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var createdAt time.Time
	if err := row.Scan(&w.Address, &w.EncryptedKey, &w.Salt, &w.Nonce, &createdAt); err != nil {
		return Wallet{}, err
	}
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
