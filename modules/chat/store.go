package chat

import (
	"context"

	domain "github.com/example/pinch-server/domain/chat"
)

// Store is an append-only chat message log partitioned by room.
type Store interface {
	// Append persists draft and assigns the next sequence number of its room.
	Append(ctx context.Context, draft domain.Draft) (*domain.Message, error)
	// History returns the latest limit messages of roomID, oldest first.
	History(ctx context.Context, roomID string, limit int) ([]*domain.Message, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func reverse(msgs []*domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
