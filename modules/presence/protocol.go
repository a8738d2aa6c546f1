package presence

import "encoding/json"

// Inbound event types.
const (
	EventJoinRoom           = "join-room"
	EventLeaveRoom          = "leave-room"
	EventSendMessage        = "send-message"
	EventStartScreenShare   = "start-screen-share"
	EventStopScreenShare    = "stop-screen-share"
	EventOffer              = "offer"
	EventAnswer             = "answer"
	EventICECandidate       = "ice-candidate"
	EventScreenOffer        = "screen-offer"
	EventScreenAnswer       = "screen-answer"
	EventScreenICECandidate = "screen-ice-candidate"
)

// Outbound event types.
const (
	EventConnected              = "connected"
	EventNameAssigned           = "name-assigned"
	EventExistingUsers          = "existing-users"
	EventUserJoined             = "user-joined"
	EventUserDisconnected       = "user-disconnected"
	EventChatHistory            = "chat-history"
	EventNewMessage             = "new-message"
	EventUserStartedScreenShare = "user-started-screen-share"
	EventUserStoppedScreenShare = "user-stopped-screen-share"
	EventScreenSharePreempted   = "screen-share-preempted"
	EventRelayFailed            = "relay-failed"
	EventError                  = "error"
)

// Client-visible error codes.
const (
	CodeRoomFull           = "room-full"
	CodeJoinFailed         = "join-failed"
	CodeNotInRoom          = "not-in-room"
	CodeMalformedPayload   = "malformed-payload"
	CodeUnknownEvent       = "unknown-event"
	CodeMessageNotSent     = "message-not-sent"
	CodeHistoryUnavailable = "history-unavailable"
	CodeScreenShareBusy    = "screen-share-busy"
	CodeRateLimited        = "rate-limited"
)

// Envelope is the wire frame exchanged with clients.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// ConnectedPayload is sent once a connection is registered.
type ConnectedPayload struct {
	ID string `json:"id"`
}

// ShareStoppedPayload accompanies EventUserStoppedScreenShare.
type ShareStoppedPayload struct {
	ID string `json:"id"`
}

// PreemptedPayload tells a sharer that By took over the slot.
type PreemptedPayload struct {
	ID string `json:"id"`
	By string `json:"by"`
}

// RelayFailedPayload reports an undeliverable relay message to its sender.
type RelayFailedPayload struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// Emitter delivers an outbound event to one session.
type Emitter interface {
	Deliver(sessionID, eventType string, payload any) bool
}
