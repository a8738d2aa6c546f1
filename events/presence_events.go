package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// ParticipantJoinedEvent is emitted when a participant joins a room.
type ParticipantJoinedEvent struct {
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	RoomSize      int       `json:"room_size"`
	ActiveRooms   int       `json:"active_rooms"`
	Timestamp     time.Time `json:"timestamp"`
}

// ParticipantLeftEvent is emitted when a participant leaves a room, either
// explicitly, by joining another room, or by disconnecting.
type ParticipantLeftEvent struct {
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	Reason        string    `json:"reason"`
	RoomSize      int       `json:"room_size"`
	ActiveRooms   int       `json:"active_rooms"`
	Timestamp     time.Time `json:"timestamp"`
}

// Leave reasons.
const (
	LeaveReasonLeft       = "left"
	LeaveReasonRejoined   = "rejoined"
	LeaveReasonDisconnect = "disconnect"
)

// ScreenShareEvent is emitted when the screen share slot of a room changes.
type ScreenShareEvent struct {
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id"`
	PreemptedID   string    `json:"preempted_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatMessageSentEvent is emitted after a chat message is persisted and broadcast.
type ChatMessageSentEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Name      string    `json:"name"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the presence domain.
var (
	ParticipantJoinedV1 = helper.EventDefinition[ParticipantJoinedEvent](
		"presence",
		"ParticipantJoined",
		"v1",
	)

	ParticipantLeftV1 = helper.EventDefinition[ParticipantLeftEvent](
		"presence",
		"ParticipantLeft",
		"v1",
	)

	ScreenShareStartedV1 = helper.EventDefinition[ScreenShareEvent](
		"presence",
		"ScreenShareStarted",
		"v1",
	)

	ScreenShareStoppedV1 = helper.EventDefinition[ScreenShareEvent](
		"presence",
		"ScreenShareStopped",
		"v1",
	)

	ChatMessageSentV1 = helper.EventDefinition[ChatMessageSentEvent](
		"presence",
		"ChatMessageSent",
		"v1",
	)
)
