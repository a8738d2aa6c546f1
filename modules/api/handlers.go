package api

import (
	"context"
	"encoding/json"

	"github.com/example/pinch-server/modules/presence"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const livenessText = "Pinch server is running"

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(livenessText)
	})
	app.Get("/health", m.healthHandler)
	if m.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.metrics))
	}

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	stats := m.controller.Stats()
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"rooms":             stats.Rooms,
			"participants":      stats.Participants,
		},
	})
}

// handleWebSocket runs one signaling session for the lifetime of the
// connection.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	sessionID := uuid.New().String()
	client := m.hub.NewClient(sessionID, c)
	m.hub.Register(client)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.hub.WritePump(client)
	}()

	m.controller.Connect(sessionID)
	m.logger.Info("WebSocket client connected", "sessionID", sessionID)

	limiter := rate.NewLimiter(rate.Limit(m.opts.RateLimit), m.opts.RateBurst)
	ctx := context.Background()

	m.hub.ReadPump(client, func(data []byte) {
		if !limiter.Allow() {
			m.controller.Fail(sessionID, presence.CodeRateLimited, "", "rate limit exceeded, please slow down")
			return
		}

		var env presence.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			m.controller.Fail(sessionID, presence.CodeMalformedPayload, "", "invalid message format")
			return
		}

		if err := m.controller.Handle(ctx, sessionID, env); err != nil {
			m.logger.Debug("Event rejected",
				"sessionID", sessionID,
				"type", env.Type,
				"error", err)
		}
	})

	m.controller.Disconnect(sessionID)
	m.hub.Unregister(client)
	<-writerDone

	m.logger.Info("WebSocket client disconnected", "sessionID", sessionID)
}
