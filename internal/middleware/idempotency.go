package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v2:"
	inProgressMarker     = "__in_progress__"
	idempotencyTimeout   = 2 * time.Second
)

// replayedHeader marks responses served from the idempotency store.
const replayedHeader = "Idempotent-Replayed"

type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

type idempotencyStore struct {
	cache *redis.Client
	ttl   time.Duration
}

func (s idempotencyStore) reserve(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()
	return s.cache.SetNX(ctx, key, inProgressMarker, s.ttl).Result()
}

func (s idempotencyStore) load(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()
	return s.cache.Get(ctx, key).Result()
}

func (s idempotencyStore) save(key string, resp storedResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()
	return s.cache.Set(ctx, key, payload, s.ttl).Err()
}

func (s idempotencyStore) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()
	s.cache.Del(ctx, key) // best effort
}

// Idempotency replays the stored response of a completed ledger request that
// carries the same Idempotency-Key on the same route. The key is bound to a
// hash of the request body; reusing it with another body is rejected.
// Requests without the header pass through, and failed requests release the
// key so the client can retry.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := idempotencyStore{cache: cache, ttl: ttl}

	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return c.Next()
		}
		cacheKey := idempotencyPrefix + c.Path() + ":" + key
		fingerprint := requestFingerprint(c.Body())

		acquired, err := store.reserve(cacheKey)
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if !acquired {
			return replay(c, store, cacheKey, fingerprint, logger)
		}

		if err := c.Next(); err != nil {
			store.release(cacheKey)
			return err
		}

		stored := storedResponse{
			Fingerprint: fingerprint,
			Status:      c.Response().StatusCode(),
			ContentType: string(c.Response().Header.ContentType()),
			Body:        string(c.Response().Body()),
		}
		if err := store.save(cacheKey, stored); err != nil {
			// The ledger change already happened; a retry with this key will
			// re-execute and be caught by the client transaction id instead.
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			store.release(cacheKey)
		}
		return nil
	}
}

func replay(c *fiber.Ctx, store idempotencyStore, cacheKey, fingerprint string, logger *slog.Logger) error {
	cached, err := store.load(cacheKey)
	if errors.Is(err, redis.Nil) {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}
	if err != nil {
		logger.Error("idempotency lookup failed", slog.String("key", cacheKey), slog.Any("error", err))
		return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
	}
	if cached == inProgressMarker {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("failed to decode stored idempotent response", slog.String("key", cacheKey), slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	if stored.Fingerprint != fingerprint {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "idempotency key reused with a different request")
	}

	if stored.ContentType != "" {
		c.Set(fiber.HeaderContentType, stored.ContentType)
	}
	c.Set(replayedHeader, "true")
	return c.Status(stored.Status).SendString(stored.Body)
}

func requestFingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
