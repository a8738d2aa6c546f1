package chat

import (
	"errors"
	"time"

	domain "github.com/example/pinch-server/domain/chat"
)

// Service names registered by the chat module.
const (
	ServiceAppend  = "append"
	ServiceHistory = "history"
)

// History limits.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// ErrUnknownDriver is returned for an unsupported CHAT_STORE_DRIVER value.
var ErrUnknownDriver = errors.New("unknown chat store driver")

// AppendRequest is the request for the append service.
type AppendRequest struct {
	RoomID    string    `json:"roomId"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendResponse is the response for the append service.
type AppendResponse struct {
	Message *domain.Message `json:"message"`
}

// HistoryRequest is the request for the history service.
type HistoryRequest struct {
	RoomID string `json:"roomId"`
	Limit  int    `json:"limit"`
}

// HistoryResponse is the response for the history service.
type HistoryResponse struct {
	Messages []*domain.Message `json:"messages"`
}

func (r AppendRequest) draft() domain.Draft {
	return domain.Draft{
		RoomID:    r.RoomID,
		Name:      r.Name,
		Body:      r.Message,
		Timestamp: r.Timestamp,
	}
}

// clampLimit maps non-positive limits to the default and caps large ones.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
