package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cryptolab/exchange/internal/config"
	"github.com/cryptolab/exchange/internal/exchange"
	"github.com/cryptolab/exchange/internal/funding"
	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/middleware"
	"github.com/cryptolab/exchange/internal/notification"
	"github.com/cryptolab/exchange/internal/payments"
	"github.com/cryptolab/exchange/internal/portfolio"
	"github.com/cryptolab/exchange/internal/pricing"
	"github.com/cryptolab/exchange/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	Ledger   ledger.Ledger
	Notifier notification.Notifier
	Hub      *notification.Hub
	Prices   *pricing.Cache
	Books    *pricing.OrderBooks
	Rail     funding.Rail
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Ledger == nil || d.Prices == nil || d.Books == nil {
		return fmt.Errorf("ledger and price cache are required")
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	walletSvc := wallet.NewService(walletRepo, d.Ledger, d.Logger)
	exchangeSvc := exchange.NewService(d.Ledger, d.Prices, d.Notifier, d.Logger)
	paymentSvc := payments.NewService(d.Ledger, d.Notifier, d.Logger)
	fundingSvc := funding.NewService(d.Ledger, d.Rail, d.Notifier, d.Logger)
	portfolioSvc := portfolio.NewService(d.Ledger, d.Prices)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc), portfolio.NewHandler(portfolioSvc))
	RegisterMarketRoutes(api, d.Prices, d.Books)
	RegisterStreamRoutes(api, d.Hub, d.Prices, d.Logger)

	// Mutating endpoints share the per-wallet limiter and, with Redis, replay protection.
	tx := api.Group("/tx", middleware.TradeRateLimit(d.Cache, d.Cfg.TradeRateLimit))
	if d.Cache != nil {
		tx.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterTradeRoutes(tx, exchange.NewHandler(exchangeSvc))
	RegisterPaymentRoutes(tx, payments.NewHandler(paymentSvc))
	RegisterFundingRoutes(tx, funding.NewHandler(fundingSvc))

	return nil
}
