package exchange

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptolab/exchange/internal/ledger"
)

// Handler exposes order endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an order handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type buyRequest struct {
	Addr       string          `json:"addr"`
	Symbol     string          `json:"symbol"`
	InrAmount  decimal.Decimal `json:"inrAmount"`
	ClientTxID string          `json:"clientTxId"`
}

type sellRequest struct {
	Addr         string          `json:"addr"`
	Symbol       string          `json:"symbol"`
	CryptoAmount decimal.Decimal `json:"cryptoAmount"`
	ClientTxID   string          `json:"clientTxId"`
}

// Buy places a market buy. Tax is withheld unless includeTds=false.
func (h *Handler) Buy(c *fiber.Ctx) error {
	var req buyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Buy(c.UserContext(), BuyInput{
		Address:     req.Addr,
		Symbol:      ledger.Symbol(req.Symbol),
		FiatAmount:  req.InrAmount,
		WithholdTax: c.QueryBool("includeTds", true),
		ClientTxID:  req.ClientTxID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Sell places a market sell. Tax is withheld unless includeTds=false.
func (h *Handler) Sell(c *fiber.Ctx) error {
	var req sellRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Sell(c.UserContext(), SellInput{
		Address:     req.Addr,
		Symbol:      ledger.Symbol(req.Symbol),
		AssetAmount: req.CryptoAmount,
		WithholdTax: c.QueryBool("includeTds", true),
		ClientTxID:  req.ClientTxID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(tx)
}
