package archive

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/chat-exchange/events"
)

// Module is an opt-in audit archive. It consumes MessageRelayed events and
// appends them to SQLite; it takes no part in delivery and a newly joining
// member never receives archived messages.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new archive module writing to the given SQLite path.
func NewModule(dbPath string, logger types.Logger) *Module {
	return &Module{
		dbPath: dbPath,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "archive"
}

// Start opens the database and migrates the schema.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open archive database: %w", err)
	}
	m.db = db
	m.repo = NewRepository(db)

	if err := m.repo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate archive schema: %w", err)
	}

	m.logger.Info("Archive module started", "path", m.dbPath)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	m.logger.Info("Archive module stopped")
	return nil
}

// Health performs a database ping.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

// RegisterEventConsumers subscribes to relayed messages.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageRelayedV1, m.handleMessageRelayed, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageRelayed consumer: %w", err)
	}

	m.logger.Info("Registered archive event consumers", "events", []string{"MessageRelayed"})
	return nil
}

// Repository returns the archive repository for read access.
func (m *Module) Repository() *Repository {
	return m.repo
}

func (m *Module) handleMessageRelayed(_ context.Context, event events.MessageRelayedEvent, _ *mono.Msg) error {
	msg := event.Message
	record := &Record{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		SessionID: event.SenderSessionID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Sender:    string(msg.Sender),
		Body:      msg.Body,
		SentAt:    msg.Timestamp,
	}

	if err := m.repo.Append(record); err != nil {
		m.logger.Error("Failed to archive message", "messageID", msg.ID, "error", err)
		return nil // archiving never blocks delivery; drop on failure
	}
	return nil
}
