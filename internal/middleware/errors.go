package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/wallet"
)

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidSymbol),
		errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, wallet.ErrWeakPassphrase),
		errors.Is(err, wallet.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, wallet.ErrInvalidPassphrase):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrRecipientNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateTransaction),
		errors.Is(err, wallet.ErrWalletExists):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders errors returned by handlers as {"message": ...}.
// Internal failures are logged and their detail withheld from the client.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.String("request_id", RequestIDFrom(c)), slog.Any("error", err))
			message = "internal error"
		}
		body := fiber.Map{"message": message}
		var insufficient *ledger.InsufficientFundsError
		if errors.As(err, &insufficient) {
			body["symbol"] = insufficient.Symbol
			body["available"] = insufficient.Available
			body["required"] = insufficient.Required
		}
		return c.Status(status).JSON(body)
	}
}
