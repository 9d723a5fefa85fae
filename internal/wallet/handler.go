package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Passphrase string `json:"passphrase"`
}

type registerRequest struct {
	Address string `json:"address"`
}

// Create provisions a custodial wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	wallet, err := h.service.Create(c.UserContext(), req.Passphrase)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(wallet)
}

// Register opens a ledger account for an externally created address.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.service.Register(c.UserContext(), req.Address); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"address": req.Address})
}

// List returns all custodial wallets.
func (h *Handler) List(c *fiber.Ctx) error {
	wallets, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(wallets)
}
