package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domainchat "github.com/example/pinch-server/domain/chat"
	"github.com/example/pinch-server/events"
	"github.com/example/pinch-server/modules/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

const publishQueueSize = 1024

var errChatUnavailable = errors.New("chat service dependency not set")

// Module hosts the presence controller and publishes presence events on the
// event bus.
type Module struct {
	controller *Controller
	store      *chatStore
	eventBus   mono.EventBus
	logger     types.Logger

	mu      sync.Mutex
	closed  bool
	publish chan func()
	wg      sync.WaitGroup
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Observer                   = (*Module)(nil)
)

// NewModule creates the presence module. Outbound events go to emitter.
func NewModule(emitter Emitter, cfg Config, logger types.Logger) *Module {
	m := &Module{
		store:   &chatStore{},
		logger:  logger,
		publish: make(chan func(), publishQueueSize),
	}
	cfg.Observer = m
	m.controller = NewController(m.store, emitter, cfg, logger)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "chat" {
		m.store.port = chat.NewChatAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ParticipantJoinedV1.ToBase(),
		events.ParticipantLeftV1.ToBase(),
		events.ScreenShareStartedV1.ToBase(),
		events.ScreenShareStoppedV1.ToBase(),
		events.ChatMessageSentV1.ToBase(),
	}
}

// Start launches the event publisher.
func (m *Module) Start(_ context.Context) error {
	if m.store.port == nil {
		return errChatUnavailable
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for fn := range m.publish {
			fn()
		}
	}()

	m.logger.Info("Presence module started", "policy", string(m.controller.policy))
	return nil
}

// Stop drains pending event publications.
func (m *Module) Stop(_ context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.publish)
	}
	m.mu.Unlock()
	m.wg.Wait()

	stats := m.controller.Stats()
	m.logger.Info("Presence module stopped",
		"rooms", stats.Rooms,
		"participants", stats.Participants)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	stats := m.controller.Stats()
	return mono.HealthStatus{
		Healthy: m.store.port != nil,
		Message: "operational",
		Details: map[string]any{
			"rooms":        stats.Rooms,
			"participants": stats.Participants,
			"sessions":     m.controller.SessionCount(),
		},
	}
}

// Controller returns the presence controller for the API module to use.
func (m *Module) Controller() *Controller {
	return m.controller
}

// ParticipantJoined publishes a ParticipantJoined event.
func (m *Module) ParticipantJoined(event events.ParticipantJoinedEvent) {
	m.enqueue("ParticipantJoined", func() error {
		return events.ParticipantJoinedV1.Publish(m.eventBus, event, nil)
	})
}

// ParticipantLeft publishes a ParticipantLeft event.
func (m *Module) ParticipantLeft(event events.ParticipantLeftEvent) {
	m.enqueue("ParticipantLeft", func() error {
		return events.ParticipantLeftV1.Publish(m.eventBus, event, nil)
	})
}

// ScreenShareStarted publishes a ScreenShareStarted event.
func (m *Module) ScreenShareStarted(event events.ScreenShareEvent) {
	m.enqueue("ScreenShareStarted", func() error {
		return events.ScreenShareStartedV1.Publish(m.eventBus, event, nil)
	})
}

// ScreenShareStopped publishes a ScreenShareStopped event.
func (m *Module) ScreenShareStopped(event events.ScreenShareEvent) {
	m.enqueue("ScreenShareStopped", func() error {
		return events.ScreenShareStoppedV1.Publish(m.eventBus, event, nil)
	})
}

// ChatMessageSent publishes a ChatMessageSent event.
func (m *Module) ChatMessageSent(event events.ChatMessageSentEvent) {
	m.enqueue("ChatMessageSent", func() error {
		return events.ChatMessageSentV1.Publish(m.eventBus, event, nil)
	})
}

// enqueue hands a publication to the publisher goroutine. It runs under the
// controller lock and never blocks.
func (m *Module) enqueue(name string, publish func() error) {
	if m.eventBus == nil {
		return
	}
	fn := func() {
		if err := publish(); err != nil {
			m.logger.Warn("Failed to publish event", "event", name, "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.publish <- fn:
	default:
		m.logger.Warn("Event queue full, dropping event", "event", name)
	}
}

// chatStore forwards to the chat module once the dependency is injected.
type chatStore struct {
	port chat.ChatPort
}

func (s *chatStore) Append(ctx context.Context, draft domainchat.Draft) (*domainchat.Message, error) {
	if s.port == nil {
		return nil, errChatUnavailable
	}
	msg, err := s.port.AppendMessage(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

func (s *chatStore) History(ctx context.Context, roomID string, limit int) ([]*domainchat.Message, error) {
	if s.port == nil {
		return nil, errChatUnavailable
	}
	msgs, err := s.port.GetHistory(ctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return msgs, nil
}
