package portfolio

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/pricing"
)

var hundred = decimal.NewFromInt(100)

// PriceSource returns the last known price snapshot.
type PriceSource interface {
	Latest() (pricing.Snapshot, bool)
}

// Portfolio is a derived valuation of one wallet.
type Portfolio struct {
	WalletAddress string               `json:"walletAddress"`
	Balances      ledger.Balance       `json:"balances"`
	TotalValue    decimal.Decimal      `json:"totalValue"`
	Invested      decimal.Decimal      `json:"invested"`
	PnL           decimal.Decimal      `json:"pnl"`
	PnLPercentage decimal.Decimal      `json:"pnlPercentage"`
	Transactions  []ledger.Transaction `json:"transactions"`
}

// Service values wallets at snapshot prices. It never mutates state.
type Service struct {
	ledger ledger.Ledger
	prices PriceSource
}

// NewService constructs a portfolio service.
func NewService(l ledger.Ledger, prices PriceSource) *Service {
	return &Service{ledger: l, prices: prices}
}

// Balance returns the wallet balance.
func (s *Service) Balance(ctx context.Context, address string) (ledger.Balance, error) {
	return s.ledger.Balance(ctx, address)
}

// Transactions returns the wallet history, most recent first.
func (s *Service) Transactions(ctx context.Context, address string) ([]ledger.Transaction, error) {
	return s.ledger.Transactions(ctx, address)
}

// Portfolio values the wallet. Symbols without a price, or every symbol when
// no snapshot exists yet, count as zero.
func (s *Service) Portfolio(ctx context.Context, address string) (Portfolio, error) {
	balance, err := s.ledger.Balance(ctx, address)
	if err != nil {
		return Portfolio{}, err
	}
	txs, err := s.ledger.Transactions(ctx, address)
	if err != nil {
		return Portfolio{}, err
	}
	if txs == nil {
		txs = []ledger.Transaction{}
	}

	snap, _ := s.prices.Latest()
	total := Value(balance, snap)
	invested := Invested(txs, address)
	// A wallet funded without any recorded trade has no cost basis to compare
	// against, so it reports no gain.
	pnl, pct := decimal.Zero, decimal.Zero
	if len(txs) > 0 {
		pnl = total.Sub(invested)
		if invested.IsPositive() {
			pct = pnl.Div(invested).Mul(hundred)
		}
	}

	return Portfolio{
		WalletAddress: address,
		Balances:      balance,
		TotalValue:    total,
		Invested:      invested,
		PnL:           pnl,
		PnLPercentage: pct,
		Transactions:  txs,
	}, nil
}

// Value returns fiat plus every crypto balance at its snapshot price.
func Value(b ledger.Balance, snap pricing.Snapshot) decimal.Decimal {
	total := b.Of(ledger.Fiat)
	for _, sym := range ledger.CryptoSymbols {
		if p, ok := snap.Prices[sym]; ok {
			total = total.Add(b.Of(sym).Mul(p))
		}
	}
	return total
}

// Invested sums fiat amount, fee and tax over the BUY records of address.
func Invested(txs []ledger.Transaction, address string) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Type != ledger.TxBuy || tx.WalletAddress != address {
			continue
		}
		for _, part := range []*decimal.Decimal{tx.FiatAmount, tx.Fee, tx.Tax} {
			if part != nil {
				sum = sum.Add(*part)
			}
		}
	}
	return sum
}
