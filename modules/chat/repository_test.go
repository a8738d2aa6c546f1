package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	domain "github.com/example/pinch-server/domain/chat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepository opens a private in-memory SQLite database.
func setupTestRepository(t *testing.T) *Repository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := OpenSQLite(dsn, false)
	require.NoError(t, err)

	repo := NewRepository(db)
	t.Cleanup(func() {
		_ = repo.Close(context.Background())
	})
	return repo
}

func draftAt(roomID, name, body string, ts time.Time) domain.Draft {
	return domain.Draft{RoomID: roomID, Name: name, Body: body, Timestamp: ts}
}

func TestRepository_AppendAssignsSequencePerRoom(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first, err := repo.Append(ctx, draftAt("r1", "HappyPanda", "hello", base))
	require.NoError(t, err)
	second, err := repo.Append(ctx, draftAt("r1", "CalmOwl", "hi", base.Add(time.Second)))
	require.NoError(t, err)
	other, err := repo.Append(ctx, draftAt("r2", "BraveFox", "elsewhere", base))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)
	assert.Equal(t, int64(1), other.Sequence)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "hello", first.Body)
	assert.Equal(t, "HappyPanda", first.Name)
	assert.True(t, first.Timestamp.Equal(base))
}

func TestRepository_HistoryOrderAndIsolation(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// inserted out of timestamp order
	_, err := repo.Append(ctx, draftAt("r1", "A", "third", base.Add(3*time.Second)))
	require.NoError(t, err)
	_, err = repo.Append(ctx, draftAt("r1", "B", "first", base.Add(1*time.Second)))
	require.NoError(t, err)
	_, err = repo.Append(ctx, draftAt("r1", "C", "second", base.Add(2*time.Second)))
	require.NoError(t, err)
	_, err = repo.Append(ctx, draftAt("r2", "D", "other room", base))
	require.NoError(t, err)

	msgs, err := repo.History(ctx, "r1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
	assert.Equal(t, "third", msgs[2].Body)
	for _, m := range msgs {
		assert.Equal(t, "r1", m.RoomID)
	}

	msgs, err = repo.History(ctx, "r2", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "other room", msgs[0].Body)
}

func TestRepository_HistoryTieBreaksOnSequence(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := repo.Append(ctx, draftAt("r1", "A", fmt.Sprintf("m%d", i), ts))
		require.NoError(t, err)
	}

	msgs, err := repo.History(ctx, "r1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Sequence)
	}
}

func TestRepository_HistoryLimitKeepsLatest(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepository(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := repo.Append(ctx, draftAt("r1", "A", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	msgs, err := repo.History(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].Body)
	assert.Equal(t, "m4", msgs[1].Body)

	n, err := repo.Count(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestRepository_HistoryEmptyRoom(t *testing.T) {
	repo := setupTestRepository(t)

	msgs, err := repo.History(context.Background(), "nobody-here", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRepository_Ping(t *testing.T) {
	repo := setupTestRepository(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
