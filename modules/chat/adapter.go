package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/pinch-server/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatPort defines the interface for chat persistence operations.
type ChatPort interface {
	AppendMessage(ctx context.Context, draft domain.Draft) (*domain.Message, error)
	GetHistory(ctx context.Context, roomID string, limit int) ([]*domain.Message, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// AppendMessage persists a message and returns it with its sequence number.
func (a *ChatAdapter) AppendMessage(ctx context.Context, draft domain.Draft) (*domain.Message, error) {
	req := AppendRequest{
		RoomID:    draft.RoomID,
		Name:      draft.Name,
		Message:   draft.Body,
		Timestamp: draft.Timestamp,
	}
	var resp AppendResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceAppend,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	if resp.Message == nil {
		return nil, fmt.Errorf("failed to append message: empty response")
	}
	return resp.Message, nil
}

// GetHistory retrieves message history for a room.
func (a *ChatAdapter) GetHistory(ctx context.Context, roomID string, limit int) ([]*domain.Message, error) {
	req := HistoryRequest{RoomID: roomID, Limit: limit}
	var resp HistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return resp.Messages, nil
}
