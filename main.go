package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/chat-exchange/internal/config"
	"github.com/example/chat-exchange/middleware/ratelimit"
	"github.com/example/chat-exchange/modules/archive"
	"github.com/example/chat-exchange/modules/auth"
	"github.com/example/chat-exchange/modules/broadcast"
	"github.com/example/chat-exchange/modules/exchange"
	"github.com/example/chat-exchange/modules/gateway"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== chat-exchange - real-time room messaging ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// Create modules
	exchangeModule := exchange.NewModule(logger)
	broadcastModule := broadcast.NewModule(logger)
	authModule := auth.NewModule(cfg.JWTSecret, cfg.TokenExpiry, logger)
	gatewayModule := gateway.NewModule(gateway.Config{
		Addr:        cfg.Addr,
		CORSOrigins: cfg.CORSOrigins,
		Greeting:    cfg.Greeting,
	}, exchangeModule, authModule, logger)

	// Inject broadcast hub into the gateway
	// (The hub is not exposed via ServiceContainer)
	gatewayModule.SetHub(broadcastModule.Hub())

	// Optional per-session send limiter (Redis)
	if cfg.RateLimitEnabled() {
		limiter, err := ratelimit.New(
			context.Background(),
			ratelimit.WithRedisAddr(cfg.RedisAddr),
			ratelimit.WithRedisPassword(cfg.RedisPassword),
			ratelimit.WithRedisDB(cfg.RedisDB),
			ratelimit.WithLimit(cfg.SendLimit, cfg.SendWindow),
		)
		if err != nil {
			log.Fatalf("Failed to create send limiter: %v", err)
		}
		defer limiter.Close()
		gatewayModule.SetLimiter(limiter)
	}

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - exchange: Core domain (membership + relay, emits events)
	// - broadcast: Event consumer (WebSocket fan-out)
	// - archive: Event consumer (opt-in audit log)
	// - auth: Identity tokens
	// - gateway: Driving adapter (Fiber HTTP/WebSocket server)
	app.Register(exchangeModule)
	app.Register(broadcastModule)
	if cfg.ArchiveEnabled {
		archiveModule := archive.NewModule(cfg.ArchiveDBPath, logger)
		gatewayModule.SetArchive(archiveModule)
		app.Register(archiveModule)
	}
	app.Register(authModule)
	app.Register(gatewayModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
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
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Printf("  - NATS URL: %s", cfg.NATSURL)
	if cfg.RateLimitEnabled() {
		log.Printf("  - Send limiter: Redis at %s (%d per %s)", cfg.RedisAddr, cfg.SendLimit, cfg.SendWindow)
	}
	if cfg.ArchiveEnabled {
		log.Printf("  - Archive: SQLite at %s", cfg.ArchiveDBPath)
	}
	log.Println("")
	log.Println("Event flow:")
	log.Println("  - MessageRelayed events -> broadcast module -> room members (sender excluded)")
	log.Println("  - UserJoined / UserLeft events -> broadcast module -> room members")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost%s):", cfg.Addr)
	log.Println("  GET    /health                   - Health check")
	log.Println("  POST   /api/v1/tokens            - Issue a guest identity token")
	log.Println("  GET    /api/v1/rooms             - List rooms with live members")
	log.Println("  GET    /api/v1/rooms/:id/members - List room members")
	log.Println("  GET    /api/v1/rooms/:id/archive - Query archived messages")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost%s/ws):", cfg.Addr)
	log.Println("  Optional identity: ws://localhost:3000/ws?token=<jwt>")
	log.Println("  Client events: joinRoom, sendMessage")
	log.Println("  Server events: receiveMessage, userJoined, userLeft, messageSent, error")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
