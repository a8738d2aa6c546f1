package chat

import (
	"context"
	"fmt"

	domain "github.com/example/pinch-server/domain/chat"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository stores chat messages with GORM.
type Repository struct {
	db *gorm.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new chat repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// OpenSQLite opens the SQLite database at path and migrates the schema.
func OpenSQLite(path string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&ChatRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Append saves draft with the next sequence number of its room.
func (r *Repository) Append(ctx context.Context, draft domain.Draft) (*domain.Message, error) {
	record := &ChatRecord{
		ID:        uuid.New().String(),
		RoomID:    draft.RoomID,
		Name:      draft.Name,
		Message:   draft.Body,
		Timestamp: draft.Timestamp.UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		if err := tx.Model(&ChatRecord{}).
			Where("room_id = ?", draft.RoomID).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		record.Sequence = last + 1
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return record.toDomain(), nil
}

// History returns the latest limit messages of roomID in timestamp order.
func (r *Repository) History(ctx context.Context, roomID string, limit int) ([]*domain.Message, error) {
	var records []*ChatRecord
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp desc").
		Order("sequence desc").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}

	msgs := make([]*domain.Message, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, rec.toDomain())
	}
	reverse(msgs)
	return msgs, nil
}

// Count returns the number of stored messages of roomID.
func (r *Repository) Count(ctx context.Context, roomID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&ChatRecord{}).Where("room_id = ?", roomID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (r *Repository) Close(_ context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
