package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Message represents a persisted chat message.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Name      string    `json:"name"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
}

// Draft is a message that has not been persisted yet.
type Draft struct {
	RoomID    string    `json:"roomId"`
	Name      string    `json:"name"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxBodyBytes bounds the size of a chat message body.
const MaxBodyBytes = 5000

// Validation errors for message bodies.
var (
	ErrEmptyBody   = errors.New("message is empty")
	ErrBodyTooLong = fmt.Errorf("message exceeds %d bytes", MaxBodyBytes)
	ErrInvalidUTF8 = errors.New("message is not valid UTF-8")
	ErrMissingRoom = errors.New("room id is required")
	ErrMissingName = errors.New("sender name is required")
)

// ValidateBody checks a message body before it is persisted.
func ValidateBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	if len(body) > MaxBodyBytes {
		return ErrBodyTooLong
	}
	if !utf8.ValidString(body) {
		return ErrInvalidUTF8
	}
	return nil
}

// Validate checks that d can be persisted.
func (d Draft) Validate() error {
	if d.RoomID == "" {
		return ErrMissingRoom
	}
	if d.Name == "" {
		return ErrMissingName
	}
	return ValidateBody(d.Body)
}
