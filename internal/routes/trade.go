package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cryptolab/exchange/internal/exchange"
)

// RegisterTradeRoutes wires market buy and sell orders.
func RegisterTradeRoutes(r fiber.Router, h *exchange.Handler) {
	r.Post("/buy", h.Buy)
	r.Post("/sell", h.Sell)
}
