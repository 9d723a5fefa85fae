package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cryptolab/exchange/internal/portfolio"
	"github.com/cryptolab/exchange/internal/wallet"
)

// RegisterWalletRoutes wires account creation and the read-only wallet views.
func RegisterWalletRoutes(r fiber.Router, wallets *wallet.Handler, views *portfolio.Handler) {
	r.Post("/wallets", wallets.Create)
	r.Get("/wallets", wallets.List)
	r.Post("/accounts", wallets.Register)
	r.Get("/wallets/:address/balance", views.Balance)
	r.Get("/wallets/:address/transactions", views.Transactions)
	r.Get("/portfolio/:address", views.Portfolio)
}
