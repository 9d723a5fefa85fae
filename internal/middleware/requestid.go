package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 128
)

// RequestID propagates the caller's X-Request-ID, or assigns a fresh uuid when
// it is missing or implausibly long, and echoes it on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" || len(reqID) > maxRequestIDLength {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)
		return c.Next()
	}
}

// RequestIDFrom returns the id assigned by RequestID, or "" outside it.
func RequestIDFrom(c *fiber.Ctx) string {
	reqID, _ := c.Locals(requestIDHeader).(string)
	return reqID
}
