package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Options selects and configures the message store.
type Options struct {
	Driver        string
	DBPath        string
	Debug         bool
	MongoURI      string
	MongoDatabase string
}

// Module provides chat persistence services backed by SQLite or MongoDB.
type Module struct {
	opts   Options
	store  Store
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(opts Options, logger types.Logger) *Module {
	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	if opts.DBPath == "" {
		opts.DBPath = "chat.db"
	}
	return &Module{
		opts:   opts,
		logger: logger,
	}
}

// NewModuleWithStore creates a chat module over an already opened store.
func NewModuleWithStore(store Store, logger types.Logger) *Module {
	return &Module{store: store, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// RegisterServices registers request-reply services in the service container.
// The framework prefixes service names with "services.chat.".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAppend, json.Unmarshal, json.Marshal, m.appendMessage,
	); err != nil {
		return fmt.Errorf("failed to register append service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceHistory, json.Unmarshal, json.Marshal, m.getHistory,
	); err != nil {
		return fmt.Errorf("failed to register history service: %w", err)
	}

	m.logger.Info("Registered services", "services", "services.chat.{append,history}")
	return nil
}

// Start opens the configured store.
func (m *Module) Start(ctx context.Context) error {
	if m.store != nil {
		return nil
	}

	switch m.opts.Driver {
	case DriverSQLite:
		m.logger.Info("Opening SQLite chat store", "path", m.opts.DBPath)
		db, err := OpenSQLite(m.opts.DBPath, m.opts.Debug)
		if err != nil {
			return err
		}
		m.store = NewRepository(db)
	case DriverMongo:
		m.logger.Info("Connecting to MongoDB chat store", "database", m.opts.MongoDatabase)
		store, err := NewMongoStore(ctx, m.opts.MongoURI, m.opts.MongoDatabase)
		if err != nil {
			return err
		}
		m.store = store
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, m.opts.Driver)
	}

	m.logger.Info("Chat module started", "driver", m.opts.Driver)
	return nil
}

// Stop closes the store.
func (m *Module) Stop(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Close(ctx); err != nil {
		return fmt.Errorf("failed to close chat store: %w", err)
	}
	m.logger.Info("Chat module stopped")
	return nil
}

// Health pings the store.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("store ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.opts.Driver,
		},
	}
}
