package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/pinch-server/domain/chat"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	messagesCollection = "messages"
	countersCollection = "message_counters"
)

type mongoMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	RoomID    string             `bson:"roomId"`
	Name      string             `bson:"name"`
	Message   string             `bson:"message"`
	Timestamp time.Time          `bson:"timestamp"`
	Sequence  int64              `bson:"sequence"`
}

func (m *mongoMessage) toDomain() *domain.Message {
	return &domain.Message{
		ID:        m.ID.Hex(),
		RoomID:    m.RoomID,
		Name:      m.Name,
		Body:      m.Message,
		Timestamp: m.Timestamp.UTC(),
		Sequence:  m.Sequence,
	}
}

// MongoStore stores chat messages in MongoDB. Sequence numbers come from a
// per-room counter document.
type MongoStore struct {
	client   *mongo.Client
	messages *mongo.Collection
	counters *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to uri and prepares the indexes of database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		messages: db.Collection(messagesCollection),
		counters: db.Collection(countersCollection),
	}

	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "roomId", Value: 1}, {Key: "sequence", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "timestamp", Value: 1}},
		},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

// Append saves draft with the next sequence number of its room.
func (s *MongoStore) Append(ctx context.Context, draft domain.Draft) (*domain.Message, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": draft.RoomID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	doc := &mongoMessage{
		ID:        primitive.NewObjectID(),
		RoomID:    draft.RoomID,
		Name:      draft.Name,
		Message:   draft.Body,
		Timestamp: draft.Timestamp.UTC().Truncate(time.Millisecond),
		Sequence:  counter.Seq,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return doc.toDomain(), nil
}

// History returns the latest limit messages of roomID in timestamp order.
func (s *MongoStore) History(ctx context.Context, roomID string, limit int) ([]*domain.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "sequence", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.messages.Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}

	var docs []*mongoMessage
	if err := cursor.All(ctx, &docs); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return []*domain.Message{}, nil
		}
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	msgs := make([]*domain.Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, doc.toDomain())
	}
	reverse(msgs)
	return msgs, nil
}

// Ping checks the connection to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Drop removes both collections.
func (s *MongoStore) Drop(ctx context.Context) error {
	if err := s.messages.Drop(ctx); err != nil {
		return err
	}
	return s.counters.Drop(ctx)
}
