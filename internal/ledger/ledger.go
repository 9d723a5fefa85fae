package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidSymbol is returned when an asset symbol is not supported.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrPriceUnavailable is returned when no price snapshot has been received
	// yet, or the requested symbol is missing from it.
	ErrPriceUnavailable = errors.New("price data not available")

	// ErrInsufficientFunds occurs when a posting would drive a balance below zero.
	// Concrete failures are reported as *InsufficientFundsError.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound indicates the address has no ledger account.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrRecipientNotFound indicates the target of a transfer has no ledger account.
	ErrRecipientNotFound = errors.New("recipient wallet not found")

	// ErrSelfTransfer is returned when sender and recipient are the same wallet.
	ErrSelfTransfer = errors.New("cannot send to the same wallet")

	// ErrDuplicateTransaction indicates a record with the same identifier is
	// already in the ledger; the stored record is returned alongside it.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

// InsufficientFundsError names the first symbol that would go negative.
type InsufficientFundsError struct {
	Address   string
	Symbol    Symbol
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s balance: have %s need %s", e.Symbol, e.Available.String(), e.Required.String())
}

// Is lets errors.Is match the ErrInsufficientFunds sentinel.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Symbol identifies an asset held in a wallet.
type Symbol string

const (
	// Fiat is the single fiat denomination of the exchange.
	Fiat  Symbol = "INR"
	BTC   Symbol = "BTC"
	ETH   Symbol = "ETH"
	MATIC Symbol = "MATIC"
	BNB   Symbol = "BNB"
)

// CryptoSymbols lists the tradable crypto assets.
var CryptoSymbols = []Symbol{BTC, ETH, MATIC, BNB}

// Symbols is the canonical order used for balance checks and serialization.
var Symbols = []Symbol{Fiat, BTC, ETH, MATIC, BNB}

// ParseSymbol validates s against the supported symbols.
func ParseSymbol(s string) (Symbol, error) {
	sym := Symbol(s)
	if !sym.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	return sym, nil
}

// Valid reports whether the symbol is held in balances.
func (s Symbol) Valid() bool {
	for _, known := range Symbols {
		if s == known {
			return true
		}
	}
	return false
}

// Crypto reports whether the symbol is a tradable crypto asset.
func (s Symbol) Crypto() bool {
	return s != Fiat && s.Valid()
}

// Balance maps every supported symbol to a non-negative amount.
type Balance map[Symbol]decimal.Decimal

// NewBalance returns an all-zero balance.
func NewBalance() Balance {
	b := make(Balance, len(Symbols))
	for _, s := range Symbols {
		b[s] = decimal.Zero
	}
	return b
}

// Of returns the amount held for a symbol.
func (b Balance) Of(s Symbol) decimal.Decimal {
	return b[s]
}

// Clone returns a deep copy that is safe to hand to callers.
func (b Balance) Clone() Balance {
	out := NewBalance()
	for s, v := range b {
		out[s] = v
	}
	return out
}

// Delta is a set of signed changes applied atomically to one balance.
type Delta map[Symbol]decimal.Decimal

// apply computes the balance that results from d without mutating b.
func (d Delta) apply(address string, b Balance) (Balance, error) {
	for s := range d {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
		}
	}
	next := b.Clone()
	for _, s := range Symbols {
		change, ok := d[s]
		if !ok {
			continue
		}
		updated := next[s].Add(change)
		if updated.IsNegative() {
			return nil, &InsufficientFundsError{
				Address:   address,
				Symbol:    s,
				Available: next[s],
				Required:  change.Neg(),
			}
		}
		next[s] = updated
	}
	return next, nil
}

// TxType enumerates the ledger operations.
type TxType string

const (
	TxBuy      TxType = "BUY"
	TxSell     TxType = "SELL"
	TxSend     TxType = "SEND"
	TxDeposit  TxType = "DEPOSIT"
	TxWithdraw TxType = "WITHDRAW"
)

// TxStatus is the lifecycle state of a record.
type TxStatus string

const (
	StatusPending   TxStatus = "PENDING"
	StatusCompleted TxStatus = "COMPLETED"
	StatusFailed    TxStatus = "FAILED"
)

// Transaction is an immutable record of a completed operation.
type Transaction struct {
	ID            string           `json:"id"`
	Seq           uint64           `json:"seq"`
	Type          TxType           `json:"type"`
	WalletAddress string           `json:"walletAddress"`
	Symbol        Symbol           `json:"symbol,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	FiatAmount    *decimal.Decimal `json:"inrAmount,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Fee           *decimal.Decimal `json:"fee,omitempty"`
	Tax           *decimal.Decimal `json:"tds,omitempty"`
	ToAddress     string           `json:"toAddress,omitempty"`
	Reference     string           `json:"reference,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
	Status        TxStatus         `json:"status"`
}

// Addresses returns the wallets a record belongs to.
func (t Transaction) Addresses() []string {
	if t.ToAddress != "" && t.ToAddress != t.WalletAddress {
		return []string{t.WalletAddress, t.ToAddress}
	}
	return []string{t.WalletAddress}
}

// Posting couples balance deltas with the record that describes them.
type Posting struct {
	Deltas map[string]Delta
	Record Transaction
}

// Receipt is the outcome of a committed posting.
type Receipt struct {
	Transaction Transaction
	Balances    map[string]Balance
}

// Ledger defines the contract implemented by ledger backends (in-memory, Postgres).
type Ledger interface {
	EnsureAccount(ctx context.Context, address string) error
	AccountExists(ctx context.Context, address string) (bool, error)
	Balance(ctx context.Context, address string) (Balance, error)
	ApplyDelta(ctx context.Context, address string, delta Delta) (Balance, error)
	Append(ctx context.Context, tx Transaction) (Transaction, error)
	Transactions(ctx context.Context, address string) ([]Transaction, error)
	// Commit applies every delta and appends the record as one unit.
	Commit(ctx context.Context, posting Posting) (Receipt, error)
}

// SortNewestFirst orders records by timestamp descending, then sequence descending.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.After(txs[j].Timestamp)
		}
		return txs[i].Seq > txs[j].Seq
	})
}

func sortedAddresses(deltas map[string]Delta) []string {
	addrs := make([]string, 0, len(deltas))
	for a := range deltas {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	return addrs
}

// Ptr returns a pointer to a copy of d, for optional record fields.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
