package chat

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/pinch-server/domain/chat"
	"github.com/go-monolith/mono"
)

// appendMessage handles the chat.append service request.
func (m *Module) appendMessage(ctx context.Context, req AppendRequest, _ *mono.Msg) (AppendResponse, error) {
	draft := req.draft()
	if draft.Timestamp.IsZero() {
		draft.Timestamp = time.Now()
	}
	if err := draft.Validate(); err != nil {
		return AppendResponse{}, err
	}

	msg, err := m.store.Append(ctx, draft)
	if err != nil {
		return AppendResponse{}, fmt.Errorf("failed to save message: %w", err)
	}

	m.logger.Debug("Message stored",
		"roomID", msg.RoomID,
		"messageID", msg.ID,
		"sequence", msg.Sequence)
	return AppendResponse{Message: msg}, nil
}

// getHistory handles the chat.history service request.
func (m *Module) getHistory(ctx context.Context, req HistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	if req.RoomID == "" {
		return HistoryResponse{}, domain.ErrMissingRoom
	}

	msgs, err := m.store.History(ctx, req.RoomID, clampLimit(req.Limit))
	if err != nil {
		return HistoryResponse{}, err
	}
	return HistoryResponse{Messages: msgs}, nil
}
