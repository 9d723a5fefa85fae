package wallet

import (
	"errors"
	"time"
)

var (
	// ErrWeakPassphrase is returned when a passphrase is shorter than MinPassphraseLength.
	ErrWeakPassphrase = errors.New("passphrase must be at least 8 characters")
	// ErrInvalidPassphrase is returned when a sealed key cannot be opened.
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	// ErrInvalidAddress is returned for strings that are not 0x-prefixed 20-byte hex.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrWalletExists is returned when an address is already registered.
	ErrWalletExists = errors.New("wallet already exists")
)

// Wallet is a custodial key pair record. The private key is stored sealed
// under a passphrase-derived key and is never serialized.
type Wallet struct {
	Address      string    `json:"address"`
	EncryptedKey []byte    `json:"-"`
	Salt         []byte    `json:"-"`
	Nonce        []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
