package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit logs one structured line per request. Mutating requests also record
// the wallet they act on, so every ledger change can be traced to a request
// id. Server errors log at Error, client errors at Warn.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = StatusFor(err)
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if reqID := RequestIDFrom(c); reqID != "" {
			attrs = append(attrs, slog.String("request_id", reqID))
		}
		if c.Method() != fiber.MethodGet {
			if wallet := walletFromBody(c); wallet != "" {
				attrs = append(attrs, slog.String("wallet", wallet))
			}
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request completed", append(attrs, slog.Any("error", err))...)
		case status >= fiber.StatusBadRequest:
			if err != nil {
				attrs = append(attrs, slog.String("reason", err.Error()))
			}
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
		return err
	}
}
