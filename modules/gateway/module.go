package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/chat-exchange/middleware/ratelimit"
	"github.com/example/chat-exchange/modules/archive"
	"github.com/example/chat-exchange/modules/auth"
	"github.com/example/chat-exchange/modules/broadcast"
	"github.com/example/chat-exchange/modules/exchange"
)

// Keys for identity values stashed on the connection during upgrade.
const (
	localUserID   = "userID"
	localUsername = "username"
)

// Config holds the gateway's server settings.
type Config struct {
	Addr        string
	CORSOrigins string
	Greeting    string
}

// Module is the Fiber server owning WebSocket connection lifecycles and the
// REST surface.
type Module struct {
	app      *fiber.App
	handlers *Handlers
	config   Config

	exchange *exchange.Module
	auth     *auth.Module
	archive  *archive.Module
	hub      *broadcast.Hub
	limiter  *ratelimit.Limiter
	chatPort exchange.ChatPort
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new gateway module.
func NewModule(config Config, exchangeModule *exchange.Module, authModule *auth.Module, moduleLogger types.Logger) *Module {
	return &Module{
		config:   config,
		exchange: exchangeModule,
		auth:     authModule,
		logger:   moduleLogger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "gateway"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"exchange"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "exchange" {
		m.chatPort = exchange.NewChatAdapter(container)
	}
}

// SetHub sets the broadcast hub (called from main.go).
func (m *Module) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// SetArchive enables the archive query endpoint (called from main.go).
func (m *Module) SetArchive(archiveModule *archive.Module) {
	m.archive = archiveModule
}

// SetLimiter enables the per-session send limiter (called from main.go).
func (m *Module) SetLimiter(limiter *ratelimit.Limiter) {
	m.limiter = limiter
}

// Start initializes and starts the server.
func (m *Module) Start(_ context.Context) error {
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}
	if m.chatPort == nil {
		return fmt.Errorf("exchange service container not set")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "chat-exchange",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		Next: func(c *fiber.Ctx) bool {
			return c.Get("Upgrade") == "websocket"
		},
	}))
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: m.config.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.handlers = &Handlers{
		exchange: m.exchange,
		hub:      m.hub,
		auth:     m.auth,
		archive:  m.archive,
		limiter:  m.limiter,
		chatPort: m.chatPort,
		greeting: m.config.Greeting,
		logger:   m.logger,
	}

	m.registerRoutes()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.config.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("Gateway started", "addr", m.config.Addr)
	return nil
}

// Stop gracefully shuts down the server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown gateway: %w", err)
		}
	}
	m.logger.Info("Gateway stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr":             m.config.Addr,
			"connectedClients": m.hub.ClientCount(),
		},
	}
}

// registerRoutes sets up all HTTP and WebSocket routes.
func (m *Module) registerRoutes() {
	m.app.Get("/health", m.handlers.HealthCheck)

	// WebSocket upgrade with optional token identity. A missing token means
	// an anonymous session; a bad token is rejected at the handshake.
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if token := c.Query("token"); token != "" {
			claims, err := m.auth.Validate(token)
			if err != nil {
				return fiber.NewError(fiber.StatusUnauthorized, err.Error())
			}
			c.Locals(localUserID, claims.UserID)
			c.Locals(localUsername, claims.Username)
		}
		return c.Next()
	})
	m.app.Get("/ws", websocket.New(m.handlers.HandleWebSocket))

	api := m.app.Group("/api/v1")
	api.Post("/tokens", m.handlers.IssueToken)
	api.Get("/rooms", m.handlers.ListRooms)
	api.Get("/rooms/:id/members", m.handlers.RoomMembers)
	api.Get("/rooms/:id/archive", m.handlers.RoomArchive)
}

// errorHandler handles Fiber errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	m.logger.Error("HTTP error", "code", code, "message", message)

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
