package auth

import (
	"context"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Module issues guest identity tokens and validates tokens presented at the
// WebSocket handshake. There is no user store: any display name can obtain
// a guest token, matching the chat widget's anonymous-first behavior.
type Module struct {
	manager *JWTManager
	logger  types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)

// NewModule creates a new auth module.
func NewModule(secret string, expiry time.Duration, logger types.Logger) *Module {
	return &Module{
		manager: NewJWTManager(JWTConfig{
			SecretKey:     secret,
			TokenDuration: expiry,
			Issuer:        "chat-exchange",
		}),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Auth module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Auth module stopped")
	return nil
}

// IssueGuestToken mints a token for a display name, assigning a fresh user id.
func (m *Module) IssueGuestToken(username string) (userID, token string, err error) {
	userID = uuid.New().String()
	token, err = m.manager.Generate(userID, username)
	return userID, token, err
}

// Validate checks a presented token.
func (m *Module) Validate(token string) (*Claims, error) {
	return m.manager.Validate(token)
}
