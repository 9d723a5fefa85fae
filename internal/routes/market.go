package routes

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/pricing"
)

// RegisterMarketRoutes exposes the latest price snapshot and synthetic order books.
func RegisterMarketRoutes(r fiber.Router, prices *pricing.Cache, books *pricing.OrderBooks) {
	r.Get("/prices/live", func(c *fiber.Ctx) error {
		snap, err := prices.Snapshot()
		if err != nil {
			return err
		}
		return c.JSON(snap)
	})

	r.Get("/orderbook/:symbol", func(c *fiber.Ctx) error {
		sym := ledger.Symbol(strings.ToUpper(c.Params("symbol")))
		if !sym.Crypto() {
			return ledger.ErrInvalidSymbol
		}
		book, ok := books.Get(sym)
		if !ok {
			return fiber.NewError(http.StatusNotFound, "order book not available")
		}
		return c.JSON(book)
	})
}
