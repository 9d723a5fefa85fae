package funding

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes HTTP endpoints for fiat funding flows.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Deposit credits fiat to a wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.Deposit(c.UserContext(), DepositInput{
		Address:    req.Addr,
		Amount:     req.InrAmount,
		ClientTxID: req.ClientTxID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(tx)
}

// Withdraw debits fiat from a wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		Address:    req.Addr,
		Amount:     req.InrAmount,
		ClientTxID: req.ClientTxID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(tx)
}
