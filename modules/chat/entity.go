package chat

import (
	"time"

	domain "github.com/example/pinch-server/domain/chat"
)

// ChatRecord is the persisted form of a chat message.
type ChatRecord struct {
	ID        string    `gorm:"primarykey;size:36"`
	RoomID    string    `gorm:"size:200;not null;uniqueIndex:idx_room_sequence,priority:1;index:idx_room_timestamp,priority:1"`
	Sequence  int64     `gorm:"not null;uniqueIndex:idx_room_sequence,priority:2"`
	Name      string    `gorm:"size:100;not null"`
	Message   string    `gorm:"size:5000;not null"`
	Timestamp time.Time `gorm:"not null;index:idx_room_timestamp,priority:2"`
	CreatedAt time.Time
}

// TableName returns the table name for ChatRecord model.
func (ChatRecord) TableName() string {
	return "chat_messages"
}

func (r *ChatRecord) toDomain() *domain.Message {
	return &domain.Message{
		ID:        r.ID,
		RoomID:    r.RoomID,
		Name:      r.Name,
		Body:      r.Message,
		Timestamp: r.Timestamp.UTC(),
		Sequence:  r.Sequence,
	}
}
