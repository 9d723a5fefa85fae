package portfolio

import (
	"github.com/gofiber/fiber/v2"
)

// Handler exposes read-only wallet views.
type Handler struct {
	service *Service
}

// NewHandler constructs a portfolio handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Portfolio returns the valuation of :address.
func (h *Handler) Portfolio(c *fiber.Ctx) error {
	p, err := h.service.Portfolio(c.UserContext(), c.Params("address"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// Balance returns the balance of :address.
func (h *Handler) Balance(c *fiber.Ctx) error {
	address := c.Params("address")
	b, err := h.service.Balance(c.UserContext(), address)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"walletAddress": address, "balances": b})
}

// Transactions returns the history of :address, most recent first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	txs, err := h.service.Transactions(c.UserContext(), c.Params("address"))
	if err != nil {
		return err
	}
	if txs == nil {
		return c.JSON([]any{})
	}
	return c.JSON(txs)
}
