package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cryptolab/exchange/internal/config"
	"github.com/cryptolab/exchange/internal/ledger"
	"github.com/cryptolab/exchange/internal/middleware"
	"github.com/cryptolab/exchange/internal/notification"
	"github.com/cryptolab/exchange/internal/pricing"
	"github.com/cryptolab/exchange/internal/routes"
)

const hubBuffer = 64

// Server wraps the Fiber application, the price oracle and shared dependencies.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	db      *pgxpool.Pool
	cache   *redis.Client
	oracle  *pricing.Oracle
	journal *ledger.WALJournal
	logger  *slog.Logger
}

// New builds the ledger backend, the price oracle and the HTTP application.
func New(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	s := &Server{app: app, cfg: cfg, db: db, cache: cache, logger: logger}

	backend, err := s.buildLedger()
	if err != nil {
		return nil, err
	}

	hub := notification.NewHub(hubBuffer)
	notifier := notification.Multi{notification.NewLoggerNotifier(logger), hub}

	prices := pricing.NewCache()
	books := pricing.NewOrderBooks()
	var mirror pricing.Mirror
	if cache != nil {
		redisMirror := pricing.NewRedisMirror(cache, cfg.PriceMirrorKey, 2*cfg.PriceRefreshInterval)
		if warmed, err := redisMirror.Warm(ctx, prices); err != nil {
			logger.Warn("warm price cache", slog.Any("error", err))
		} else if warmed {
			logger.Info("price cache warmed from redis")
		}
		mirror = redisMirror
	}
	s.oracle = pricing.NewOracle(
		pricing.NewCoinGeckoFetcher(cfg.PriceAPIURL, cfg.PriceFetchTimeout),
		prices, books, notifier, mirror, logger,
		pricing.OracleConfig{Interval: cfg.PriceRefreshInterval, Fallback: cfg.PriceFallbackEnabled},
	)

	if err := routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Ledger:   backend,
		Notifier: notifier,
		Hub:      hub,
		Prices:   prices,
		Books:    books,
	}); err != nil {
		s.closeJournal()
		return nil, err
	}

	return s, nil
}

// buildLedger selects Postgres when a pool is configured. Otherwise it uses the
// in-memory ledger, replaying the WAL journal when LEDGER_JOURNAL_DIR is set.
func (s *Server) buildLedger() (ledger.Ledger, error) {
	if s.db != nil {
		return ledger.NewPostgresLedger(s.db), nil
	}
	if s.cfg.LedgerJournalDir == "" {
		s.logger.Warn("using in-memory ledger without journal; balances are lost on restart")
		return ledger.NewInMemory(), nil
	}

	journal, err := ledger.NewWALJournal(s.cfg.LedgerJournalDir)
	if err != nil {
		return nil, fmt.Errorf("open ledger journal: %w", err)
	}
	backend := ledger.NewInMemory(ledger.WithJournal(journal))
	n, err := backend.Restore(journal)
	if err != nil {
		journal.Close() // nolint:errcheck
		return nil, fmt.Errorf("restore ledger journal: %w", err)
	}
	s.journal = journal
	s.logger.Info("ledger restored from journal", slog.Int("entries", n), slog.String("dir", s.cfg.LedgerJournalDir))
	return backend, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// RunOracle refreshes prices until ctx is done.
func (s *Server) RunOracle(ctx context.Context) error {
	return s.oracle.Run(ctx)
}

// Shutdown gracefully stops the HTTP server and closes the ledger journal.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.closeJournal()
	return err
}

func (s *Server) closeJournal() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		s.logger.Warn("close ledger journal", slog.Any("error", err))
	}
	s.journal = nil
}
