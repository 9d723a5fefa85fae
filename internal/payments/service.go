package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/notification"
)

// Service moves assets between wallets.
type Service struct {
	ledger   ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a transfer service.
func NewService(l ledger.Ledger, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{ledger: l, notifier: notifier, logger: logger}
}

// SendInput captures the data needed to move an asset between wallets.
type SendInput struct {
	FromAddress string
	ToAddress   string
	Symbol      ledger.Symbol
	Amount      decimal.Decimal
	ClientTxID  string
}

// Send debits the sender and credits the recipient in one commit and records
// a single SEND referencing both wallets.
func (s *Service) Send(ctx context.Context, input SendInput) (ledger.Transaction, error) {
	if !input.Amount.IsPositive() {
		return ledger.Transaction{}, ledger.ErrInvalidAmount
	}
	if !input.Symbol.Valid() {
		return ledger.Transaction{}, fmt.Errorf("%w: %q", ledger.ErrInvalidSymbol, input.Symbol)
	}
	if input.FromAddress == input.ToAddress {
		return ledger.Transaction{}, ledger.ErrSelfTransfer
	}
	if err := s.requireAccount(ctx, input.FromAddress, ledger.ErrWalletNotFound); err != nil {
		return ledger.Transaction{}, err
	}
	if err := s.requireAccount(ctx, input.ToAddress, ledger.ErrRecipientNotFound); err != nil {
		return ledger.Transaction{}, err
	}

	receipt, err := s.ledger.Commit(ctx, ledger.Posting{
		Deltas: map[string]ledger.Delta{
			input.FromAddress: {input.Symbol: input.Amount.Neg()},
			input.ToAddress:   {input.Symbol: input.Amount},
		},
		Record: ledger.Transaction{
			ID:            input.ClientTxID,
			Type:          ledger.TxSend,
			WalletAddress: input.FromAddress,
			ToAddress:     input.ToAddress,
			Symbol:        input.Symbol,
			Amount:        input.Amount,
		},
	})
	if err != nil {
		return receipt.Transaction, fmt.Errorf("send %s: %w", input.Symbol, err)
	}

	s.logger.Info("transfer completed",
		slog.String("from", input.FromAddress),
		slog.String("to", input.ToAddress),
		slog.String("symbol", string(input.Symbol)),
		slog.String("amount", input.Amount.String()),
	)
	notification.NotifyReceipt(ctx, s.notifier, s.logger, receipt)
	return receipt.Transaction, nil
}

func (s *Service) requireAccount(ctx context.Context, address string, missing error) error {
	exists, err := s.ledger.AccountExists(ctx, address)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", missing, address)
	}
	return nil
}
