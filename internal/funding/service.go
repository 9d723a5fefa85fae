package funding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/notification"
)

// Service coordinates fiat deposits and withdrawals using the ledger and a banking rail.
type Service struct {
	ledger   ledger.Ledger
	rail     Rail
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService prepares a funding service. A nil rail selects StaticRail.
func NewService(ledgerBackend ledger.Ledger, rail Rail, notifier notification.Notifier, logger *slog.Logger) *Service {
	if rail == nil {
		rail = StaticRail{}
	}
	return &Service{ledger: ledgerBackend, rail: rail, notifier: notifier, logger: logger}
}

// DepositInput captures a fiat top-up.
type DepositInput struct {
	Address    string
	Amount     decimal.Decimal
	ClientTxID string
}

// WithdrawInput captures a fiat payout.
type WithdrawInput struct {
	Address    string
	Amount     decimal.Decimal
	ClientTxID string
}

// Deposit authorizes and credits fiat into the wallet.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (ledger.Transaction, error) {
	if err := s.validate(ctx, input.Address, input.Amount); err != nil {
		return ledger.Transaction{}, err
	}

	decision, err := s.rail.AuthorizeDeposit(ctx, RailRequest{Address: input.Address, Amount: input.Amount})
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("authorize deposit: %w", err)
	}

	return s.commit(ctx, ledger.TxDeposit, input.Address, input.Amount, input.ClientTxID, decision)
}

// Withdraw authorizes and debits fiat from the wallet. A withdrawal larger
// than the fiat balance fails with ErrInsufficientFunds and changes nothing.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (ledger.Transaction, error) {
	if err := s.validate(ctx, input.Address, input.Amount); err != nil {
		return ledger.Transaction{}, err
	}

	decision, err := s.rail.AuthorizeWithdrawal(ctx, RailRequest{Address: input.Address, Amount: input.Amount})
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("authorize withdrawal: %w", err)
	}

	return s.commit(ctx, ledger.TxWithdraw, input.Address, input.Amount.Neg(), input.ClientTxID, decision)
}

func (s *Service) validate(ctx context.Context, address string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	exists, err := s.ledger.AccountExists(ctx, address)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ledger.ErrWalletNotFound, address)
	}
	return nil
}

// commit applies the signed fiat change and records it with the rail reference.
func (s *Service) commit(ctx context.Context, kind ledger.TxType, address string, change decimal.Decimal, clientTxID string, decision RailDecision) (ledger.Transaction, error) {
	amount := change.Abs()
	receipt, err := s.ledger.Commit(ctx, ledger.Posting{
		Deltas: map[string]ledger.Delta{address: {ledger.Fiat: change}},
		Record: ledger.Transaction{
			ID:            clientTxID,
			Type:          kind,
			WalletAddress: address,
			Symbol:        ledger.Fiat,
			Amount:        amount,
			FiatAmount:    ledger.Ptr(amount),
			Reference:     decision.Reference,
		},
	})
	if err != nil {
		return receipt.Transaction, fmt.Errorf("%s: %w", kind, err)
	}

	s.logger.Info("funding completed",
		slog.String("type", string(kind)),
		slog.String("address", address),
		slog.String("amount", amount.String()),
		slog.String("rail_reference", decision.Reference),
	)
	notification.NotifyReceipt(ctx, s.notifier, s.logger, receipt)
	return receipt.Transaction, nil
}
