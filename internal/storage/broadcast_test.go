package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-orlov/secondhand-bot/internal/kv"
)

func sampleBroadcast(id, createdAt, status string) Broadcast {
	return Broadcast{
		ID:             id,
		CreatedAt:      createdAt,
		ScheduledAt:    createdAt,
		Status:         status,
		Audience:       AudienceAll,
		Text:           "hello",
		SenderID:       "10",
		RecipientCount: 3,
	}
}

func TestBroadcastSaveAndLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	broadcasts := NewBroadcastStore(kv.NewMemory(), "test")

	record := sampleBroadcast("b1", "2024-06-01T10:00:00Z", BroadcastQueued)
	require.True(t, broadcasts.Save(ctx, record))

	loaded := broadcasts.Load(ctx, "b1")
	require.NotNil(t, loaded)
	assert.Equal(t, record, *loaded)

	assert.Nil(t, broadcasts.Load(ctx, "absent"))
}

func TestBroadcastUpdateCounters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	broadcasts := NewBroadcastStore(kv.NewMemory(), "test")

	require.True(t, broadcasts.Save(ctx, sampleBroadcast("b1", "2024-06-01T10:00:00Z", BroadcastQueued)))
	require.True(t, broadcasts.Update(ctx, "b1", map[string]string{
		"status":        BroadcastSent,
		"success_count": "2",
		"failed_count":  "1",
		"completed_at":  "2024-06-01T10:05:00Z",
	}))

	loaded := broadcasts.Load(ctx, "b1")
	require.NotNil(t, loaded)
	assert.Equal(t, BroadcastSent, loaded.Status)
	assert.Equal(t, 2, loaded.SuccessCount)
	assert.Equal(t, 1, loaded.FailedCount)
	assert.Equal(t, "2024-06-01T10:05:00Z", loaded.CompletedAt)
	assert.Equal(t, "hello", loaded.Text)
}

func TestBroadcastListAllNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	broadcasts := NewBroadcastStore(kv.NewMemory(), "test")

	require.True(t, broadcasts.Save(ctx, sampleBroadcast("b1", "2024-06-01T10:00:00Z", BroadcastSent)))
	require.True(t, broadcasts.Save(ctx, sampleBroadcast("b2", "2024-06-03T10:00:00Z", BroadcastQueued)))
	require.True(t, broadcasts.Save(ctx, sampleBroadcast("b3", "2024-06-02T10:00:00Z", BroadcastScheduled)))

	all, err := broadcasts.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b2", all[0].ID)
	assert.Equal(t, "b3", all[1].ID)
	assert.Equal(t, "b1", all[2].ID)
}

func TestBroadcastListAllUnavailable(t *testing.T) {
	t.Parallel()
	broadcasts := NewBroadcastStore(unavailableStore{}, "test")

	all, err := broadcasts.ListAll(context.Background())
	assert.Nil(t, all)
	assert.ErrorIs(t, err, ErrUnavailable)
}
