package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-orlov/secondhand-bot/internal/kv"
)

func newRecordStoreAt(t *testing.T, moment time.Time) (*RecordStore, kv.Store) {
	t.Helper()
	store := kv.NewMemory()
	records := NewRecordStore(store, "test")
	records.now = func() time.Time { return moment }
	return records, store
}

func sampleApplication(sessionKey, userID, createdAt string) Application {
	return Application{
		RecordSessionKey: sessionKey,
		RecordUserID:     userID,
		RecordPosition:   "Coat",
		RecordCondition:  "Good",
		RecordPhotos:     "k/a.jpg,k/b.jpg",
		RecordCreatedAt:  createdAt,
	}
}

func TestRecordCreateAndLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records, _ := newRecordStoreAt(t, time.Now())

	app := sampleApplication("100_a_b", "100", "2024-06-01T10:00:00Z")
	require.NoError(t, records.Create(ctx, app))

	loaded := records.Load(ctx, "100_a_b")
	require.NotNil(t, loaded)
	assert.Equal(t, "Coat", loaded[RecordPosition])
	assert.Equal(t, []string{"k/a.jpg", "k/b.jpg"}, loaded.PhotoHandles())
	owner, ok := loaded.OwnerID()
	require.True(t, ok)
	assert.Equal(t, int64(100), owner)

	assert.Nil(t, records.Load(ctx, "absent"))
}

func TestRecordFetchAllNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records, _ := newRecordStoreAt(t, time.Now())

	require.NoError(t, records.Create(ctx, sampleApplication("s1", "1", "2024-06-01T10:00:00Z")))
	require.NoError(t, records.Create(ctx, sampleApplication("s2", "2", "2024-06-03T10:00:00Z")))
	require.NoError(t, records.Create(ctx, sampleApplication("s3", "3", "2024-06-02T10:00:00Z")))

	all, err := records.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s2", all[0].SessionKey())
	assert.Equal(t, "s3", all[1].SessionKey())
	assert.Equal(t, "s1", all[2].SessionKey())
}

func TestRecordFetchAllDropsDanglingIndexMembers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records, store := newRecordStoreAt(t, time.Now())

	require.NoError(t, records.Create(ctx, sampleApplication("s1", "1", "2024-06-01T10:00:00Z")))
	_, err := store.SAdd(ctx, "test:applications", "test:gone")
	require.NoError(t, err)

	all, err := records.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "s1", all[0].SessionKey())
}

func TestRecordFetchAllUnavailable(t *testing.T) {
	t.Parallel()
	records := NewRecordStore(unavailableStore{}, "test")

	all, err := records.FetchAll(context.Background())
	assert.Nil(t, all)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRecordFetchAllEmptyStore(t *testing.T) {
	t.Parallel()
	records, _ := newRecordStoreAt(t, time.Now())

	all, err := records.FetchAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestRecordFetchForOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records, _ := newRecordStoreAt(t, time.Now())

	require.NoError(t, records.Create(ctx, sampleApplication("s1", "100", "2024-06-01T10:00:00Z")))
	require.NoError(t, records.Create(ctx, sampleApplication("s2", "200", "2024-06-02T10:00:00Z")))
	require.NoError(t, records.Create(ctx, sampleApplication("s3", "100", "2024-06-03T10:00:00Z")))

	owned, err := records.FetchForOwner(ctx, 100)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, "s3", owned[0].SessionKey())
	assert.Equal(t, "s1", owned[1].SessionKey())
}

func TestUpdateOwnedRejectsNonOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records, _ := newRecordStoreAt(t, time.Now())

	require.NoError(t, records.Create(ctx, sampleApplication("s1", "100", "2024-06-01T10:00:00Z")))

	assert.False(t, records.UpdateOwned(ctx, "s1", 999, map[string]any{RecordPosition: "Hacked"}))

	loaded := records.Load(ctx, "s1")
	assert.Equal(t, "Coat", loaded[RecordPosition])
}

func TestUpdateOwnedSerialization(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records, _ := newRecordStoreAt(t, time.Now())

	require.NoError(t, records.Create(ctx, sampleApplication("s1", "100", "2024-06-01T10:00:00Z")))

	ok := records.UpdateOwned(ctx, "s1", 100, map[string]any{
		RecordPosition:    "Jacket",
		RecordPhotos:      []string{"k/x.jpg", "k/y.jpg"},
		RecordDescription: nil,
		"weight":          42,
	})
	require.True(t, ok)

	loaded := records.Load(ctx, "s1")
	assert.Equal(t, "Jacket", loaded[RecordPosition])
	assert.Equal(t, "k/x.jpg,k/y.jpg", loaded[RecordPhotos])
	assert.Equal(t, "", loaded[RecordDescription])
	assert.Equal(t, "42", loaded["weight"])
}

func TestUpdateOwnedEmptyAndMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records, _ := newRecordStoreAt(t, time.Now())

	assert.True(t, records.UpdateOwned(ctx, "absent", 100, nil))
	assert.False(t, records.UpdateOwned(ctx, "absent", 100, map[string]any{RecordPosition: "X"}))
}

func TestRevokeIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	moment := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	records, _ := newRecordStoreAt(t, moment)

	require.NoError(t, records.Create(ctx, sampleApplication("s1", "100", "2024-06-01T10:00:00Z")))

	assert.True(t, records.Revoke(ctx, "s1", 100))
	loaded := records.Load(ctx, "s1")
	assert.Equal(t, "2024-06-10T12:00:00Z", loaded[RecordRevokedAt])
	assert.Equal(t, "100", loaded[RecordRevokedBy])
	assert.True(t, loaded.Revoked())

	records.now = func() time.Time { return moment.Add(24 * time.Hour) }
	assert.False(t, records.Revoke(ctx, "s1", 100))
	loaded = records.Load(ctx, "s1")
	assert.Equal(t, "2024-06-10T12:00:00Z", loaded[RecordRevokedAt])
}

func TestRevokeRejectsNonOwnerAndMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	records, _ := newRecordStoreAt(t, time.Now())

	require.NoError(t, records.Create(ctx, sampleApplication("s1", "100", "2024-06-01T10:00:00Z")))

	assert.False(t, records.Revoke(ctx, "s1", 999))
	assert.False(t, records.Load(ctx, "s1").Revoked())
	assert.False(t, records.Revoke(ctx, "absent", 100))
}

func TestReviewLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	moment := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	records, _ := newRecordStoreAt(t, moment)

	require.NoError(t, records.Create(ctx, sampleApplication("s1", "100", "2024-06-01T10:00:00Z")))

	stamp, ok := records.MarkReviewed(ctx, "s1", 555)
	require.True(t, ok)
	assert.Equal(t, "2024-06-10T12:00:00Z", stamp)

	loaded := records.Load(ctx, "s1")
	assert.True(t, loaded.Reviewed())
	assert.Equal(t, stamp, loaded[RecordReviewedAt])
	assert.Equal(t, "555", loaded[RecordReviewedBy])

	require.True(t, records.ClearReview(ctx, "s1"))
	loaded = records.Load(ctx, "s1")
	assert.False(t, loaded.Reviewed())
	_, hasBy := loaded[RecordReviewedBy]
	assert.False(t, hasBy)

	_, ok = records.MarkReviewed(ctx, "absent", 555)
	assert.False(t, ok)
	assert.False(t, records.ClearReview(ctx, "absent"))
}
