package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cryptolab/exchange/internal/ledger"
)

const (
	// KindBalanceChanged is sent after a wallet balance changes.
	KindBalanceChanged = "balance_changed"
	// KindTransaction is sent after a transaction record is appended.
	KindTransaction = "transaction"
	// KindPrices is sent after every price refresh.
	KindPrices = "prices"
)

// Message describes a notification payload. Destination is the wallet
// address the event concerns and is empty for broadcast kinds.
type Message struct {
	Kind        string `json:"type"`
	Destination string `json:"address,omitempty"`
	Body        string `json:"message,omitempty"`
	Data        any    `json:"data,omitempty"`
}

// Notifier delivers notifications to downstream systems. Implementations
// must not block the caller on slow consumers.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Debug("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

// Multi delivers every message to each notifier in order.
type Multi []Notifier

// Send calls every notifier and joins their errors.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notify sends message and logs delivery failures. Engines call it after a
// commit so a failing transport never reverses a ledger change.
func Notify(ctx context.Context, n Notifier, logger *slog.Logger, message Message) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, message); err != nil && logger != nil {
		logger.Warn("notification failed", "kind", message.Kind, "destination", message.Destination, "error", err)
	}
}

// NotifyReceipt announces a committed posting: one balance_changed message per
// touched wallet followed by one transaction message.
func NotifyReceipt(ctx context.Context, n Notifier, logger *slog.Logger, receipt ledger.Receipt) {
	if n == nil {
		return
	}
	tx := receipt.Transaction
	for _, address := range tx.Addresses() {
		balance, ok := receipt.Balances[address]
		if !ok {
			continue
		}
		Notify(ctx, n, logger, Message{
			Kind:        KindBalanceChanged,
			Destination: address,
			Data:        balance,
		})
	}
	Notify(ctx, n, logger, Message{
		Kind:        KindTransaction,
		Destination: tx.WalletAddress,
		Body:        fmt.Sprintf("%s %s %s completed", tx.Type, tx.Amount.String(), tx.Symbol),
		Data:        tx,
	})
}
