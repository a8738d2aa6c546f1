package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/example/pinch-server/events"
	"github.com/example/pinch-server/modules/presence"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HubStats exposes connection counters of the websocket hub.
type HubStats interface {
	ClientCount() int
	Dropped() uint64
}

// PresenceStats exposes the live room directory counts.
type PresenceStats interface {
	Stats() presence.Stats
}

// Module turns presence events into Prometheus metrics.
type Module struct {
	registry *prometheus.Registry

	joins        prometheus.Counter
	leaves       *prometheus.CounterVec
	shares       prometheus.Counter
	preemptions  prometheus.Counter
	activeShares prometheus.Gauge
	messages     prometheus.Counter

	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the metrics module. hub and rooms may be nil; their
// gauges are then not registered.
func NewModule(hub HubStats, rooms PresenceStats, logger types.Logger) *Module {
	m := &Module{
		registry: prometheus.NewRegistry(),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinch",
			Name:      "room_joins_total",
			Help:      "Number of successful room joins.",
		}),
		leaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pinch",
			Name:      "room_leaves_total",
			Help:      "Number of room departures by reason.",
		}, []string{"reason"}),
		shares: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinch",
			Name:      "screen_shares_total",
			Help:      "Number of screen shares started.",
		}),
		preemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinch",
			Name:      "screen_share_preemptions_total",
			Help:      "Number of screen shares taken over by another participant.",
		}),
		activeShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pinch",
			Name:      "active_screen_shares",
			Help:      "Number of rooms with an active screen share.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pinch",
			Name:      "chat_messages_total",
			Help:      "Number of chat messages persisted and broadcast.",
		}),
		logger: logger,
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.joins,
		m.leaves,
		m.shares,
		m.preemptions,
		m.activeShares,
		m.messages,
	)

	if hub != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "pinch",
				Name:      "connected_clients",
				Help:      "Number of open websocket connections.",
			}, func() float64 { return float64(hub.ClientCount()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "pinch",
				Name:      "dropped_frames_total",
				Help:      "Number of outbound frames dropped because a send queue was full.",
			}, func() float64 { return float64(hub.Dropped()) }),
		)
	}
	if rooms != nil {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "pinch",
				Name:      "active_rooms",
				Help:      "Number of rooms with at least one participant.",
			}, func() float64 { return float64(rooms.Stats().Rooms) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "pinch",
				Name:      "active_participants",
				Help:      "Number of participants across all rooms.",
			}, func() float64 { return float64(rooms.Stats().Participants) }),
		)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "metrics"
}

// RegisterEventConsumers subscribes to the presence events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantJoinedV1, m.handleParticipantJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ParticipantLeftV1, m.handleParticipantLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register ParticipantLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ScreenShareStartedV1, m.handleScreenShareStarted, m,
	); err != nil {
		return fmt.Errorf("failed to register ScreenShareStarted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ScreenShareStoppedV1, m.handleScreenShareStopped, m,
	); err != nil {
		return fmt.Errorf("failed to register ScreenShareStopped consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.ChatMessageSentV1, m.handleChatMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatMessageSent consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"ParticipantJoined", "ParticipantLeft", "ScreenShareStarted", "ScreenShareStopped", "ChatMessageSent"})
	return nil
}

func (m *Module) handleParticipantJoined(_ context.Context, _ events.ParticipantJoinedEvent, _ *mono.Msg) error {
	m.joins.Inc()
	return nil
}

func (m *Module) handleParticipantLeft(_ context.Context, event events.ParticipantLeftEvent, _ *mono.Msg) error {
	m.leaves.WithLabelValues(event.Reason).Inc()
	return nil
}

func (m *Module) handleScreenShareStarted(_ context.Context, event events.ScreenShareEvent, _ *mono.Msg) error {
	m.shares.Inc()
	m.activeShares.Inc()
	if event.PreemptedID != "" {
		m.preemptions.Inc()
	}
	return nil
}

func (m *Module) handleScreenShareStopped(_ context.Context, _ events.ScreenShareEvent, _ *mono.Msg) error {
	m.activeShares.Dec()
	return nil
}

func (m *Module) handleChatMessageSent(_ context.Context, _ events.ChatMessageSentEvent, _ *mono.Msg) error {
	m.messages.Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Module) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the module's collector registry.
func (m *Module) Registry() *prometheus.Registry {
	return m.registry
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Metrics module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Metrics module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	families, err := m.registry.Gather()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("gather failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"metric_families": len(families),
		},
	}
}
