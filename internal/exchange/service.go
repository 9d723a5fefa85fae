package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/notification"
	"github.com/cryptolab/exchange/internal/pricing"
)

var (
	// TakerFeeRate is charged on the fiat side of every order.
	TakerFeeRate = decimal.RequireFromString("0.001")
	// TaxRate is withheld on the fiat side when the order asks for it.
	TaxRate = decimal.RequireFromString("0.01")
)

// PriceSource returns the last known price snapshot. Prices may be up to one
// refresh interval old; orders execute at the snapshot price, not a live quote.
type PriceSource interface {
	Snapshot() (pricing.Snapshot, error)
}

// Service executes market orders against the ledger at snapshot prices.
type Service struct {
	ledger   ledger.Ledger
	prices   PriceSource
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs an order execution service.
func NewService(l ledger.Ledger, prices PriceSource, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{ledger: l, prices: prices, notifier: notifier, logger: logger}
}

// BuyInput spends FiatAmount (before fee and tax) on Symbol.
type BuyInput struct {
	Address     string
	Symbol      ledger.Symbol
	FiatAmount  decimal.Decimal
	WithholdTax bool
	ClientTxID  string
}

// SellInput sells AssetAmount of Symbol for fiat.
type SellInput struct {
	Address     string
	Symbol      ledger.Symbol
	AssetAmount decimal.Decimal
	WithholdTax bool
	ClientTxID  string
}

// Quote is the arithmetic of one order at a fixed price.
type Quote struct {
	Price       decimal.Decimal
	AssetAmount decimal.Decimal
	FiatAmount  decimal.Decimal
	Fee         decimal.Decimal
	Tax         decimal.Decimal
	// FiatTotal is the fiat debited on a buy or credited on a sell.
	FiatTotal decimal.Decimal
}

// QuoteBuy prices a buy of fiat worth of an asset.
func QuoteBuy(fiat, price decimal.Decimal, withholdTax bool) Quote {
	fee := fiat.Mul(TakerFeeRate)
	tax := decimal.Zero
	if withholdTax {
		tax = fiat.Mul(TaxRate)
	}
	return Quote{
		Price:       price,
		AssetAmount: fiat.Div(price),
		FiatAmount:  fiat,
		Fee:         fee,
		Tax:         tax,
		FiatTotal:   fiat.Add(fee).Add(tax),
	}
}

// QuoteSell prices a sale of asset units.
func QuoteSell(asset, price decimal.Decimal, withholdTax bool) Quote {
	gross := asset.Mul(price)
	fee := gross.Mul(TakerFeeRate)
	tax := decimal.Zero
	if withholdTax {
		tax = gross.Mul(TaxRate)
	}
	return Quote{
		Price:       price,
		AssetAmount: asset,
		FiatAmount:  gross,
		Fee:         fee,
		Tax:         tax,
		FiatTotal:   gross.Sub(fee).Sub(tax),
	}
}

// Buy debits fiat amount plus fee and tax and credits the asset bought at
// the snapshot price.
func (s *Service) Buy(ctx context.Context, in BuyInput) (ledger.Transaction, error) {
	price, err := s.validate(ctx, in.Address, in.Symbol, in.FiatAmount)
	if err != nil {
		return ledger.Transaction{}, err
	}

	q := QuoteBuy(in.FiatAmount, price, in.WithholdTax)
	receipt, err := s.ledger.Commit(ctx, ledger.Posting{
		Deltas: map[string]ledger.Delta{
			in.Address: {ledger.Fiat: q.FiatTotal.Neg(), in.Symbol: q.AssetAmount},
		},
		Record: ledger.Transaction{
			ID:            in.ClientTxID,
			Type:          ledger.TxBuy,
			WalletAddress: in.Address,
			Symbol:        in.Symbol,
			Amount:        q.AssetAmount,
			FiatAmount:    ledger.Ptr(q.FiatAmount),
			Price:         ledger.Ptr(q.Price),
			Fee:           ledger.Ptr(q.Fee),
			Tax:           ledger.Ptr(q.Tax),
		},
	})
	if err != nil {
		return receipt.Transaction, fmt.Errorf("buy %s: %w", in.Symbol, err)
	}

	s.logger.Info("order executed",
		slog.String("type", string(ledger.TxBuy)),
		slog.String("address", in.Address),
		slog.String("symbol", string(in.Symbol)),
		slog.String("amount", q.AssetAmount.String()),
		slog.String("price", price.String()),
	)
	notification.NotifyReceipt(ctx, s.notifier, s.logger, receipt)
	return receipt.Transaction, nil
}

// Sell debits the asset and credits the proceeds net of fee and tax.
func (s *Service) Sell(ctx context.Context, in SellInput) (ledger.Transaction, error) {
	price, err := s.validate(ctx, in.Address, in.Symbol, in.AssetAmount)
	if err != nil {
		return ledger.Transaction{}, err
	}

	q := QuoteSell(in.AssetAmount, price, in.WithholdTax)
	receipt, err := s.ledger.Commit(ctx, ledger.Posting{
		Deltas: map[string]ledger.Delta{
			in.Address: {in.Symbol: q.AssetAmount.Neg(), ledger.Fiat: q.FiatTotal},
		},
		Record: ledger.Transaction{
			ID:            in.ClientTxID,
			Type:          ledger.TxSell,
			WalletAddress: in.Address,
			Symbol:        in.Symbol,
			Amount:        q.AssetAmount,
			FiatAmount:    ledger.Ptr(q.FiatTotal),
			Price:         ledger.Ptr(q.Price),
			Fee:           ledger.Ptr(q.Fee),
			Tax:           ledger.Ptr(q.Tax),
		},
	})
	if err != nil {
		return receipt.Transaction, fmt.Errorf("sell %s: %w", in.Symbol, err)
	}

	s.logger.Info("order executed",
		slog.String("type", string(ledger.TxSell)),
		slog.String("address", in.Address),
		slog.String("symbol", string(in.Symbol)),
		slog.String("amount", q.AssetAmount.String()),
		slog.String("price", price.String()),
	)
	notification.NotifyReceipt(ctx, s.notifier, s.logger, receipt)
	return receipt.Transaction, nil
}

// validate runs every pre-mutation check and returns the single price the
// order will execute at.
func (s *Service) validate(ctx context.Context, address string, sym ledger.Symbol, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ledger.ErrInvalidAmount
	}
	if !sym.Crypto() {
		return decimal.Zero, fmt.Errorf("%w: %q", ledger.ErrInvalidSymbol, sym)
	}
	exists, err := s.ledger.AccountExists(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	if !exists {
		return decimal.Zero, fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, address)
	}
	snap, err := s.prices.Snapshot()
	if err != nil {
		return decimal.Zero, err
	}
	return snap.PriceOf(sym)
}
