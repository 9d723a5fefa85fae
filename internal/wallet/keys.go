package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/sha3"
)

const (
	// MinPassphraseLength is the shortest passphrase accepted for sealing keys.
	MinPassphraseLength = 8

	keySize   = 32
	saltSize  = 16
	nonceSize = 24
	scryptN   = 1 << 15
	scryptR   = 8
	scryptP   = 1
)

// AddressOf derives the 0x-prefixed address of a private key from the last
// 20 bytes of its Keccak-256 hash.
func AddressOf(key []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(key)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:])
}

// ValidAddress reports whether s looks like a wallet address.
func ValidAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

func generateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func deriveKey(passphrase string, salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	var out [keySize]byte
	copy(out[:], raw)
	return &out, nil
}

// seal encrypts key under passphrase and returns ciphertext, salt and nonce.
func seal(key []byte, passphrase string) (sealed, salt, nonce []byte, err error) {
	salt = make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, nil, fmt.Errorf("generate salt: %w", err)
	}
	var n [nonceSize]byte
	if _, err := rand.Read(n[:]); err != nil {
		return nil, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	secret, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, nil, nil, err
	}
	return secretbox.Seal(nil, key, &n, secret), salt, n[:], nil
}

// open reverses seal. A wrong passphrase yields ErrInvalidPassphrase.
func open(sealed, salt, nonce []byte, passphrase string) ([]byte, error) {
	if len(nonce) != nonceSize {
		return nil, fmt.Errorf("corrupt nonce")
	}
	secret, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	var n [nonceSize]byte
	copy(n[:], nonce)
	key, ok := secretbox.Open(nil, sealed, &n, secret)
	if !ok {
		return nil, ErrInvalidPassphrase
	}
	return key, nil
}
