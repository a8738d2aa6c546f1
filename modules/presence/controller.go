package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	domainchat "github.com/example/pinch-server/domain/chat"
	domain "github.com/example/pinch-server/domain/presence"
	"github.com/example/pinch-server/events"
	"github.com/go-monolith/mono/pkg/types"
)

// ErrUnknownSession is returned for session IDs that were never connected.
var ErrUnknownSession = errors.New("unknown session")

// ChatStore persists chat messages.
type ChatStore interface {
	Append(ctx context.Context, draft domainchat.Draft) (*domainchat.Message, error)
	History(ctx context.Context, roomID string, limit int) ([]*domainchat.Message, error)
}

// Observer is told about presence changes after they are applied.
type Observer interface {
	ParticipantJoined(event events.ParticipantJoinedEvent)
	ParticipantLeft(event events.ParticipantLeftEvent)
	ScreenShareStarted(event events.ScreenShareEvent)
	ScreenShareStopped(event events.ScreenShareEvent)
	ChatMessageSent(event events.ChatMessageSentEvent)
}

// Session is the server-side context of one connection.
type Session struct {
	ID          string
	RoomID      string
	DisplayName string

	joinGen        uint64
	historyPending bool
}

// Config configures a Controller.
type Config struct {
	Policy       domain.SharePolicy
	HistoryLimit int
	Vocabulary   domain.Vocabulary
	Picker       Picker
	Observer     Observer
	Now          func() time.Time
}

// Controller handles inbound events for every session. Room state is guarded
// by mu; chat store calls run outside mu inside the room's lane.
type Controller struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	directory *Directory
	router    *Router
	lanes     *lanes

	store        ChatStore
	emitter      Emitter
	observer     Observer
	policy       domain.SharePolicy
	historyLimit int
	now          func() time.Time
	logger       types.Logger
}

// NewController creates a Controller.
func NewController(store ChatStore, emitter Emitter, cfg Config, logger types.Logger) *Controller {
	vocab := cfg.Vocabulary
	if vocab.Capacity() == 0 {
		vocab = domain.DefaultVocabulary()
	}
	policy := cfg.Policy
	if policy == "" {
		policy = domain.SharePreempt
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 100
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	directory := NewDirectory(NewAllocator(vocab, cfg.Picker))
	return &Controller{
		sessions:     make(map[string]*Session),
		directory:    directory,
		router:       NewRouter(directory),
		lanes:        newLanes(),
		store:        store,
		emitter:      emitter,
		observer:     observer,
		policy:       policy,
		historyLimit: limit,
		now:          now,
		logger:       logger,
	}
}

// Connect creates the session context of a new connection.
func (c *Controller) Connect(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions[sessionID] = &Session{ID: sessionID}
	c.emitter.Deliver(sessionID, EventConnected, ConnectedPayload{ID: sessionID})
}

// Disconnect tears down the session: its membership, tags and screen share.
func (c *Controller) Disconnect(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	if s.RoomID != "" {
		c.leaveLocked(s, events.LeaveReasonDisconnect)
	}
	delete(c.sessions, sessionID)
}

// Session returns a copy of the session context.
func (c *Controller) Session(sessionID string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Stats reports the number of live rooms and participants.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory.Stats()
}

// SessionCount reports the number of connected sessions.
func (c *Controller) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// JoinRoom moves the session into roomID and sends the join sequence:
// name-assigned, existing-users, the active screen share if any, then
// chat-history. The rest of the room gets user-joined.
func (c *Controller) JoinRoom(ctx context.Context, sessionID, roomID string) error {
	if roomID == "" {
		c.fail(sessionID, CodeMalformedPayload, EventJoinRoom, "room id is required")
		return fmt.Errorf("%w: empty room id", ErrMalformedPayload)
	}

	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownSession
	}

	prevRoomID := s.RoomID
	res, err := c.directory.Join(roomID, sessionID)
	if res != nil && res.Left != nil {
		c.afterLeaveLocked(s, prevRoomID, res.Left, events.LeaveReasonRejoined)
	}
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, domain.ErrRoomFull) {
			c.fail(sessionID, CodeRoomFull, EventJoinRoom, err.Error())
		} else {
			c.fail(sessionID, CodeJoinFailed, EventJoinRoom, "could not join room")
		}
		return fmt.Errorf("join room %s: %w", roomID, err)
	}

	p := res.Participant
	s.RoomID = roomID
	s.DisplayName = p.DisplayName
	s.joinGen++
	s.historyPending = true
	gen := s.joinGen

	c.emitter.Deliver(sessionID, EventNameAssigned, p.DisplayName)
	c.emitter.Deliver(sessionID, EventExistingUsers, res.Others)
	if res.Sharer != nil {
		c.emitter.Deliver(sessionID, EventUserStartedScreenShare, *res.Sharer)
	}
	for _, other := range res.Others {
		c.emitter.Deliver(other.ID, EventUserJoined, p.Peer())
	}

	stats := c.directory.Stats()
	c.observer.ParticipantJoined(events.ParticipantJoinedEvent{
		RoomID:        roomID,
		ParticipantID: sessionID,
		Name:          p.DisplayName,
		RoomSize:      len(res.Others) + 1,
		ActiveRooms:   stats.Rooms,
		Timestamp:     c.now(),
	})
	c.mu.Unlock()

	c.logger.Debug("Participant joined room",
		"sessionID", sessionID,
		"roomID", roomID,
		"name", p.DisplayName)

	return c.deliverHistory(ctx, sessionID, roomID, gen)
}

// deliverHistory fetches the room history inside the room lane so that no
// message is both in the history and broadcast to this session.
func (c *Controller) deliverHistory(ctx context.Context, sessionID, roomID string, gen uint64) error {
	release := c.lanes.acquire(roomID)
	defer release()

	history, err := c.store.History(ctx, roomID, c.historyLimit)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok || s.RoomID != roomID || s.joinGen != gen {
		return nil
	}
	s.historyPending = false

	if err != nil {
		c.failLocked(sessionID, CodeHistoryUnavailable, EventJoinRoom, "chat history is unavailable")
		return fmt.Errorf("fetch history for room %s: %w", roomID, err)
	}
	if history == nil {
		history = []*domainchat.Message{}
	}
	c.emitter.Deliver(sessionID, EventChatHistory, history)
	return nil
}

// LeaveRoom removes the session from its current room.
func (c *Controller) LeaveRoom(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	if s.RoomID == "" {
		c.failLocked(sessionID, CodeNotInRoom, EventLeaveRoom, domain.ErrNotInRoom.Error())
		return domain.ErrNotInRoom
	}
	c.leaveLocked(s, events.LeaveReasonLeft)
	return nil
}

func (c *Controller) leaveLocked(s *Session, reason string) {
	roomID := s.RoomID
	res, ok := c.directory.Leave(roomID, s.ID)
	if !ok {
		s.RoomID, s.DisplayName, s.historyPending = "", "", false
		return
	}
	c.afterLeaveLocked(s, roomID, res, reason)
}

// afterLeaveLocked notifies the remaining members of roomID. A share held by
// the leaver is reported as stopped before the disconnect notice.
func (c *Controller) afterLeaveLocked(s *Session, roomID string, res *LeaveResult, reason string) {
	s.RoomID, s.DisplayName, s.historyPending = "", "", false

	now := c.now()
	if res.StoppedShare {
		for _, peer := range res.Remaining {
			c.emitter.Deliver(peer.ID, EventUserStoppedScreenShare, ShareStoppedPayload{ID: s.ID})
		}
		c.observer.ScreenShareStopped(events.ScreenShareEvent{
			RoomID:        roomID,
			ParticipantID: s.ID,
			Timestamp:     now,
		})
	}
	for _, peer := range res.Remaining {
		c.emitter.Deliver(peer.ID, EventUserDisconnected, s.ID)
	}

	stats := c.directory.Stats()
	c.observer.ParticipantLeft(events.ParticipantLeftEvent{
		RoomID:        roomID,
		ParticipantID: s.ID,
		Name:          res.Participant.DisplayName,
		Reason:        reason,
		RoomSize:      len(res.Remaining),
		ActiveRooms:   stats.Rooms,
		Timestamp:     now,
	})

	c.logger.Debug("Participant left room",
		"sessionID", s.ID,
		"roomID", roomID,
		"reason", reason,
		"evicted", res.Empty)
}

// SendMessage persists body in the session's room and broadcasts the stored
// message to every member, the sender included.
func (c *Controller) SendMessage(ctx context.Context, sessionID, body string) error {
	if err := domainchat.ValidateBody(body); err != nil {
		c.fail(sessionID, CodeMessageNotSent, EventSendMessage, err.Error())
		return err
	}

	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownSession
	}
	roomID := s.RoomID
	c.mu.Unlock()

	if roomID == "" {
		c.fail(sessionID, CodeNotInRoom, EventSendMessage, domain.ErrNotInRoom.Error())
		return domain.ErrNotInRoom
	}

	release := c.lanes.acquire(roomID)
	defer release()

	c.mu.Lock()
	if s.RoomID != roomID {
		c.failLocked(sessionID, CodeNotInRoom, EventSendMessage, domain.ErrNotInRoom.Error())
		c.mu.Unlock()
		return domain.ErrNotInRoom
	}
	draft := domainchat.Draft{
		RoomID:    roomID,
		Name:      s.DisplayName,
		Body:      body,
		Timestamp: c.now(),
	}
	c.mu.Unlock()

	msg, err := c.store.Append(ctx, draft)
	if err != nil {
		c.fail(sessionID, CodeMessageNotSent, EventSendMessage, "message could not be saved")
		return fmt.Errorf("append message to room %s: %w", roomID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if room, ok := c.directory.Room(roomID); ok {
		for _, p := range room.Participants() {
			if member, ok := c.sessions[p.ID]; ok && member.historyPending {
				continue
			}
			c.emitter.Deliver(p.ID, EventNewMessage, msg)
		}
	}
	c.observer.ChatMessageSent(events.ChatMessageSentEvent{
		MessageID: msg.ID,
		RoomID:    roomID,
		Name:      msg.Name,
		Sequence:  msg.Sequence,
		Timestamp: msg.Timestamp,
	})
	return nil
}

// StartScreenShare claims the room's screen share slot for the session.
func (c *Controller) StartScreenShare(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, p, err := c.memberLocked(sessionID, EventStartScreenShare)
	if err != nil {
		return err
	}

	tr, err := room.share.Start(sessionID, c.policy)
	if err != nil {
		c.failLocked(sessionID, CodeScreenShareBusy, EventStartScreenShare, err.Error())
		return err
	}
	if !tr.Started {
		return nil
	}

	now := c.now()
	if tr.Preempted != "" {
		c.emitter.Deliver(tr.Preempted, EventScreenSharePreempted, PreemptedPayload{ID: tr.Preempted, By: sessionID})
		for _, peer := range room.Peers(tr.Preempted) {
			c.emitter.Deliver(peer.ID, EventUserStoppedScreenShare, ShareStoppedPayload{ID: tr.Preempted})
		}
		c.observer.ScreenShareStopped(events.ScreenShareEvent{
			RoomID:        room.ID,
			ParticipantID: tr.Preempted,
			Timestamp:     now,
		})
	}
	for _, peer := range room.Peers(sessionID) {
		c.emitter.Deliver(peer.ID, EventUserStartedScreenShare, p.Peer())
	}
	c.observer.ScreenShareStarted(events.ScreenShareEvent{
		RoomID:        room.ID,
		ParticipantID: sessionID,
		PreemptedID:   tr.Preempted,
		Timestamp:     now,
	})
	return nil
}

// StopScreenShare releases the slot if the session holds it.
func (c *Controller) StopScreenShare(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, _, err := c.memberLocked(sessionID, EventStopScreenShare)
	if err != nil {
		return err
	}
	if !room.share.Stop(sessionID) {
		return nil
	}

	for _, peer := range room.Peers(sessionID) {
		c.emitter.Deliver(peer.ID, EventUserStoppedScreenShare, ShareStoppedPayload{ID: sessionID})
	}
	c.observer.ScreenShareStopped(events.ScreenShareEvent{
		RoomID:        room.ID,
		ParticipantID: sessionID,
		Timestamp:     c.now(),
	})
	return nil
}

// Relay forwards a negotiation payload to its target. Only the target
// receives it; an unknown target is reported back with relay-failed.
func (c *Controller) Relay(sessionID, kind string, payload json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[sessionID]; !ok {
		return ErrUnknownSession
	}

	delivery, err := c.router.Route(kind, sessionID, payload)
	switch {
	case errors.Is(err, ErrMalformedPayload):
		c.failLocked(sessionID, CodeMalformedPayload, kind, err.Error())
		return err
	case errors.Is(err, domain.ErrNotInRoom):
		c.failLocked(sessionID, CodeNotInRoom, kind, err.Error())
		return err
	case errors.Is(err, domain.ErrUnknownTarget):
		c.relayFailedLocked(sessionID, kind, delivery.Target, "unknown-target")
		return err
	case err != nil:
		return err
	}

	if !c.emitter.Deliver(delivery.Target, delivery.Kind, delivery.Payload) {
		c.relayFailedLocked(sessionID, kind, delivery.Target, "undeliverable")
		return fmt.Errorf("relay %s to %s: undeliverable", kind, delivery.Target)
	}
	return nil
}

func (c *Controller) relayFailedLocked(sessionID, kind, target, reason string) {
	c.emitter.Deliver(sessionID, EventRelayFailed, RelayFailedPayload{
		Kind:   kind,
		Target: target,
		Reason: reason,
	})
}

// Handle dispatches one decoded inbound envelope.
func (c *Controller) Handle(ctx context.Context, sessionID string, env Envelope) error {
	switch env.Type {
	case EventJoinRoom:
		roomID, err := decodeField(env.Payload, "roomId")
		if err != nil {
			c.fail(sessionID, CodeMalformedPayload, env.Type, err.Error())
			return err
		}
		return c.JoinRoom(ctx, sessionID, roomID)
	case EventLeaveRoom:
		return c.LeaveRoom(sessionID)
	case EventSendMessage:
		body, err := decodeField(env.Payload, "message")
		if err != nil {
			c.fail(sessionID, CodeMalformedPayload, env.Type, err.Error())
			return err
		}
		return c.SendMessage(ctx, sessionID, body)
	case EventStartScreenShare:
		return c.StartScreenShare(sessionID)
	case EventStopScreenShare:
		return c.StopScreenShare(sessionID)
	}

	if IsRelayKind(env.Type) {
		return c.Relay(sessionID, env.Type, env.Payload)
	}

	c.fail(sessionID, CodeUnknownEvent, env.Type, fmt.Sprintf("unknown event %q", env.Type))
	return fmt.Errorf("unknown event %q", env.Type)
}

// Fail sends a transport-level error event to the session. The API layer
// uses it for frames rejected before dispatch, such as rate-limited or
// undecodable frames.
func (c *Controller) Fail(sessionID, code, event, message string) {
	c.fail(sessionID, code, event, message)
}

func (c *Controller) fail(sessionID, code, event, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLocked(sessionID, code, event, message)
}

func (c *Controller) failLocked(sessionID, code, event, message string) {
	c.emitter.Deliver(sessionID, EventError, ErrorPayload{
		Code:    code,
		Event:   event,
		Message: message,
	})
}

func (c *Controller) memberLocked(sessionID, event string) (*RoomState, *domain.Participant, error) {
	if _, ok := c.sessions[sessionID]; !ok {
		return nil, nil, ErrUnknownSession
	}
	room, ok := c.directory.RoomOf(sessionID)
	if !ok {
		c.failLocked(sessionID, CodeNotInRoom, event, domain.ErrNotInRoom.Error())
		return nil, nil, domain.ErrNotInRoom
	}
	p, _ := room.Participant(sessionID)
	return room, p, nil
}

// decodeField accepts either a bare JSON string or an object carrying the
// string under key.
func decodeField(raw json.RawMessage, key string) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedPayload, key)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformedPayload, key)
	}
	field, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedPayload, key)
	}
	if err := json.Unmarshal(field, &s); err != nil {
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformedPayload, key)
	}
	return s, nil
}

type noopObserver struct{}

func (noopObserver) ParticipantJoined(events.ParticipantJoinedEvent) {}
func (noopObserver) ParticipantLeft(events.ParticipantLeftEvent)     {}
func (noopObserver) ScreenShareStarted(events.ScreenShareEvent)      {}
func (noopObserver) ScreenShareStopped(events.ScreenShareEvent)      {}
func (noopObserver) ChatMessageSent(events.ChatMessageSentEvent)     {}
