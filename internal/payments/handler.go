package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sendRequest struct {
	FromAddr   string          `json:"fromAddr"`
	ToAddr     string          `json:"toAddr"`
	Symbol     string          `json:"symbol"`
	Amount     decimal.Decimal `json:"amount"`
	ClientTxID string          `json:"clientTxId"`
}

// Send processes a wallet-to-wallet transfer.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.Send(c.UserContext(), SendInput{
		FromAddress: req.FromAddr,
		ToAddress:   req.ToAddr,
		Symbol:      ledger.Symbol(req.Symbol),
		Amount:      req.Amount,
		ClientTxID:  req.ClientTxID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(tx)
}
