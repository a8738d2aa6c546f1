package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domainchat "github.com/example/pinch-server/domain/chat"
	domain "github.com/example/pinch-server/domain/presence"
	"github.com/example/pinch-server/events"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)          {}
func (m *mockLogger) Info(msg string, args ...any)           {}
func (m *mockLogger) Warn(msg string, args ...any)           {}
func (m *mockLogger) Error(msg string, args ...any)          {}
func (m *mockLogger) With(args ...any) types.Logger          { return m }
func (m *mockLogger) WithError(err error) types.Logger       { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

var errStoreDown = errors.New("store down")

// firstFree always picks the first free tag.
func firstFree(int) (int, error) { return 0, nil }

type delivered struct {
	To      string
	Type    string
	Payload any
}

// recorder is an Emitter that keeps every delivery.
type recorder struct {
	mu      sync.Mutex
	events  []delivered
	offline map[string]bool
}

func newRecorder() *recorder {
	return &recorder{offline: make(map[string]bool)}
}

func (r *recorder) Deliver(sessionID, eventType string, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offline[sessionID] {
		return false
	}
	r.events = append(r.events, delivered{To: sessionID, Type: eventType, Payload: payload})
	return true
}

func (r *recorder) setOffline(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offline[sessionID] = true
}

// For returns the deliveries to sessionID in order.
func (r *recorder) For(sessionID string) []delivered {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []delivered
	for _, e := range r.events {
		if e.To == sessionID {
			out = append(out, e)
		}
	}
	return out
}

// Types returns the event types delivered to sessionID in order.
func (r *recorder) Types(sessionID string) []string {
	var out []string
	for _, e := range r.For(sessionID) {
		out = append(out, e.Type)
	}
	return out
}

// OfType returns the deliveries of eventType to sessionID.
func (r *recorder) OfType(sessionID, eventType string) []delivered {
	var out []delivered
	for _, e := range r.For(sessionID) {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many deliveries of eventType were made to anyone.
func (r *recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// memoryStore is an in-memory ChatStore.
type memoryStore struct {
	mu          sync.Mutex
	messages    map[string][]*domainchat.Message
	failAppend  bool
	failHistory bool

	// appendGate, when set, blocks Append until it is closed.
	appendGate    chan struct{}
	appendStarted chan struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{messages: make(map[string][]*domainchat.Message)}
}

func (s *memoryStore) Append(_ context.Context, draft domainchat.Draft) (*domainchat.Message, error) {
	if s.appendStarted != nil {
		s.appendStarted <- struct{}{}
	}
	if s.appendGate != nil {
		<-s.appendGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend {
		return nil, errStoreDown
	}
	msg := &domainchat.Message{
		ID:        uuid.New().String(),
		RoomID:    draft.RoomID,
		Name:      draft.Name,
		Body:      draft.Body,
		Timestamp: draft.Timestamp,
		Sequence:  int64(len(s.messages[draft.RoomID]) + 1),
	}
	s.messages[draft.RoomID] = append(s.messages[draft.RoomID], msg)
	return msg, nil
}

func (s *memoryStore) History(_ context.Context, roomID string, limit int) ([]*domainchat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHistory {
		return nil, errStoreDown
	}
	msgs := s.messages[roomID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*domainchat.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// recordingObserver keeps every bus event.
type recordingObserver struct {
	mu      sync.Mutex
	joined  []events.ParticipantJoinedEvent
	left    []events.ParticipantLeftEvent
	started []events.ScreenShareEvent
	stopped []events.ScreenShareEvent
	sent    []events.ChatMessageSentEvent
}

func (o *recordingObserver) ParticipantJoined(e events.ParticipantJoinedEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.joined = append(o.joined, e)
}

func (o *recordingObserver) ParticipantLeft(e events.ParticipantLeftEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.left = append(o.left, e)
}

func (o *recordingObserver) ScreenShareStarted(e events.ScreenShareEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, e)
}

func (o *recordingObserver) ScreenShareStopped(e events.ScreenShareEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = append(o.stopped, e)
}

func (o *recordingObserver) ChatMessageSent(e events.ChatMessageSentEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, e)
}

type harness struct {
	ctrl     *Controller
	emitter  *recorder
	store    *memoryStore
	observer *recordingObserver
}

// newHarness builds a controller with deterministic identities and a fixed
// clock that advances one second per call.
func newHarness(t *testing.T, policy domain.SharePolicy) *harness {
	t.Helper()

	var (
		mu    sync.Mutex
		clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	h := &harness{
		emitter:  newRecorder(),
		store:    newMemoryStore(),
		observer: &recordingObserver{},
	}
	h.ctrl = NewController(h.store, h.emitter, Config{
		Policy:   policy,
		Picker:   firstFree,
		Observer: h.observer,
		Now:      now,
	}, &mockLogger{})
	return h
}

// connectAndJoin connects each session and joins it to roomID.
func (h *harness) connectAndJoin(t *testing.T, roomID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		h.ctrl.Connect(id)
		if err := h.ctrl.JoinRoom(context.Background(), id, roomID); err != nil {
			t.Fatalf("JoinRoom(%s, %s) error = %v", id, roomID, err)
		}
	}
}

func (h *harness) name(t *testing.T, id string) string {
	t.Helper()
	s, ok := h.ctrl.Session(id)
	if !ok {
		t.Fatalf("session %s not found", id)
	}
	return s.DisplayName
}
