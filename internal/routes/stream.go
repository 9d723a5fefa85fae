package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/cryptolab/exchange/internal/notification"
	"github.com/cryptolab/exchange/internal/pricing"
)

// RegisterStreamRoutes exposes the notification hub over a websocket. Clients
// receive the latest prices on connect and then every hub message.
func RegisterStreamRoutes(r fiber.Router, hub *notification.Hub, prices *pricing.Cache, logger *slog.Logger) {
	if hub == nil {
		return
	}

	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	r.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		sub := hub.Subscribe()
		defer hub.Unsubscribe(sub)
		defer conn.Close()

		if snap, ok := prices.Latest(); ok {
			if err := conn.WriteJSON(notification.Message{Kind: notification.KindPrices, Data: snap}); err != nil {
				return
			}
		}

		// The reader only detects disconnects; inbound frames are ignored.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case msg, ok := <-sub:
				if !ok {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					logger.Debug("websocket write failed", slog.Any("error", err))
					return
				}
			}
		}
	}))
}
