package main

import (
	"context"
	"log"
	"os"

	"github.com/example/pinch-server/config"
	domain "github.com/example/pinch-server/domain/presence"
	"github.com/example/pinch-server/modules/api"
	"github.com/example/pinch-server/modules/broadcast"
	"github.com/example/pinch-server/modules/chat"
	"github.com/example/pinch-server/modules/metrics"
	"github.com/example/pinch-server/modules/presence"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Pinch - multi-party signaling server ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	policy, err := domain.ParseSharePolicy(cfg.ScreenSharePolicy)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	chatModule := chat.NewModule(chat.Options{
		Driver:        cfg.ChatStoreDriver,
		DBPath:        cfg.DBPath,
		Debug:         cfg.DBDebug,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	}, logger.WithModule("chat"))
	broadcastModule := broadcast.NewModule(cfg.WSSendBuffer, logger.WithModule("broadcast"))
	hub := broadcastModule.GetHub()
	presenceModule := presence.NewModule(hub, presence.Config{
		Policy:       policy,
		HistoryLimit: cfg.HistoryLimit,
	}, logger.WithModule("presence"))
	metricsModule := metrics.NewModule(hub, presenceModule.Controller(), logger.WithModule("metrics"))
	apiModule := api.NewModule(api.Options{
		Addr:               cfg.Addr(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:          cfg.WSRateLimit,
		RateBurst:          cfg.WSRateBurst,
	}, hub, presenceModule.Controller(), metricsModule.Handler(), logger.WithModule("api"))

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - chat: message store (ServiceProviderModule)
	// - broadcast: websocket hub with per-client outbound queues
	// - presence: rooms, identities, screen share and relay (depends on chat, emits events)
	// - metrics: Prometheus collectors fed by presence events and room stats
	// - api: Fiber HTTP/WebSocket server
	app.Register(chatModule)
	app.Register(broadcastModule)
	app.Register(presenceModule)
	app.Register(metricsModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - Chat store: %s", cfg.ChatStoreDriver)
	log.Printf("  - Screen share policy: %s", cfg.ScreenSharePolicy)
	log.Printf("  - Inbound rate limit: %.1f/s (burst %d)", cfg.WSRateLimit, cfg.WSRateBurst)
	log.Println("")
	log.Printf("HTTP Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /         - Liveness")
	log.Println("  GET    /health   - Health check")
	log.Println("  GET    /metrics  - Prometheus metrics")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println("  Send {\"type\":\"join-room\",\"payload\":\"<room>\"} to enter a room")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
