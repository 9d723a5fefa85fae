package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cryptolab/exchange/internal/ledger"
)

// Service is the custody stub: it creates key pairs, keeps them sealed and
// opens the matching ledger account for every new address.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger ledger.Ledger, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create generates a key, seals it under passphrase, opens its ledger account
// and stores the wallet.
func (s *Service) Create(ctx context.Context, passphrase string) (Wallet, error) {
	if len(passphrase) < MinPassphraseLength {
		return Wallet{}, ErrWeakPassphrase
	}

	key, err := generateKey()
	if err != nil {
		return Wallet{}, err
	}
	sealed, salt, nonce, err := seal(key, passphrase)
	if err != nil {
		return Wallet{}, err
	}

	wallet := Wallet{
		Address:      AddressOf(key),
		EncryptedKey: sealed,
		Salt:         salt,
		Nonce:        nonce,
		CreatedAt:    s.now(),
	}
	// A custody record never exists without its ledger account.
	if err := s.ledger.EnsureAccount(ctx, wallet.Address); err != nil {
		return Wallet{}, fmt.Errorf("open ledger account: %w", err)
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}

	s.logger.Info("wallet created", slog.String("address", wallet.Address))
	return wallet, nil
}

// Register opens a ledger account for an address whose keys are held
// elsewhere. Registering a known address is a no-op.
func (s *Service) Register(ctx context.Context, address string) error {
	if !ValidAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return s.ledger.EnsureAccount(ctx, address)
}

// Unlock returns the private key of address when passphrase is correct.
func (s *Service) Unlock(ctx context.Context, address, passphrase string) ([]byte, error) {
	wallet, err := s.repo.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	return open(wallet.EncryptedKey, wallet.Salt, wallet.Nonce, passphrase)
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, address string) (Wallet, error) {
	return s.repo.Get(ctx, address)
}

// List returns every custodial wallet.
func (s *Service) List(ctx context.Context) ([]Wallet, error) {
	return s.repo.List(ctx)
}
