package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/logging"
	"github.com/cryptolab/exchange/internal/wallet"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("buy: %w", ledger.ErrInvalidSymbol), http.StatusBadRequest},
		{ledger.ErrSelfTransfer, http.StatusBadRequest},
		{wallet.ErrWeakPassphrase, http.StatusBadRequest},
		{fmt.Errorf("x: %w", ledger.ErrWalletNotFound), http.StatusNotFound},
		{ledger.ErrRecipientNotFound, http.StatusNotFound},
		{ledger.ErrDuplicateTransaction, http.StatusConflict},
		{&ledger.InsufficientFundsError{Symbol: ledger.Fiat}, http.StatusUnprocessableEntity},
		{ledger.ErrPriceUnavailable, http.StatusServiceUnavailable},
		{wallet.ErrInvalidPassphrase, http.StatusUnauthorized},
		{fiber.NewError(http.StatusTooManyRequests, "slow"), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), "error %v", tc.err)
	}
}

func TestErrorHandler_RendersInsufficientFunds(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return fmt.Errorf("withdraw: %w", &ledger.InsufficientFundsError{
			Symbol:    ledger.Fiat,
			Available: decimal.NewFromInt(5),
			Required:  decimal.NewFromInt(10),
		})
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("database exploded")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "INR", body["symbol"])
	assert.Equal(t, "5", body["available"])

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "internal error", body["message"])
}
