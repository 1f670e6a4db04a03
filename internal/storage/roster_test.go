package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-orlov/secondhand-bot/internal/kv"
)

func TestRosterSuperAdmins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemory()
	roster := NewRoster(store, "test", []int64{10, 20}, NewRecordStore(store, "test"))

	assert.True(t, roster.IsSuperAdmin(10))
	assert.False(t, roster.IsSuperAdmin(30))
	assert.True(t, roster.IsAdmin(ctx, 20))
	assert.False(t, roster.IsAdmin(ctx, 30))
}

func TestRosterAdminMembership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemory()
	roster := NewRoster(store, "test", nil, NewRecordStore(store, "test"))

	assert.True(t, roster.AddAdmin(ctx, 30))
	assert.False(t, roster.AddAdmin(ctx, 30))
	assert.True(t, roster.IsAdmin(ctx, 30))

	assert.True(t, roster.RemoveAdmin(ctx, 30))
	assert.False(t, roster.RemoveAdmin(ctx, 30))
	assert.False(t, roster.IsAdmin(ctx, 30))
}

func TestRosterActiveUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemory()
	roster := NewRoster(store, "test", nil, NewRecordStore(store, "test"))

	roster.RecordActiveUser(ctx, 1)
	roster.RecordActiveUser(ctx, 2)
	roster.RecordActiveUser(ctx, 1)

	users := roster.ActiveUsers(ctx)
	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, users)
}

func TestRosterSkipsMalformedMembers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemory()
	roster := NewRoster(store, "test", nil, NewRecordStore(store, "test"))

	_, err := store.SAdd(ctx, "test:users", "not-a-number")
	require.NoError(t, err)
	roster.RecordActiveUser(ctx, 5)

	assert.Equal(t, map[int64]struct{}{5: {}}, roster.ActiveUsers(ctx))
}

func TestResolveAudienceAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemory()
	roster := NewRoster(store, "test", nil, NewRecordStore(store, "test"))

	roster.RecordActiveUser(ctx, 1)
	roster.RecordActiveUser(ctx, 2)

	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, roster.ResolveAudience(ctx, AudienceAll))
	assert.Empty(t, roster.ResolveAudience(ctx, "nonsense"))
}

func TestResolveAudienceRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemory()
	records := NewRecordStore(store, "test")
	roster := NewRoster(store, "test", nil, records)

	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	roster.now = func() time.Time { return now }

	// Two days old: inside the window.
	require.NoError(t, records.Create(ctx, sampleApplication("s1", "1", "2024-06-28T12:00:00Z")))
	// 45 days old: outside.
	require.NoError(t, records.Create(ctx, sampleApplication("s2", "2", "2024-05-16T12:00:00Z")))
	// Naive timestamp inside the window, normalized to UTC.
	require.NoError(t, records.Create(ctx, sampleApplication("s3", "3", "2024-06-29T08:30:00")))
	// Garbage timestamp is skipped.
	require.NoError(t, records.Create(ctx, sampleApplication("s4", "4", "not a date")))

	recipients := roster.ResolveAudience(ctx, AudienceRecent)
	assert.Equal(t, map[int64]struct{}{1: {}, 3: {}}, recipients)
}

func TestResolveAudienceRecentUnavailable(t *testing.T) {
	t.Parallel()
	roster := NewRoster(unavailableStore{}, "test", nil, NewRecordStore(unavailableStore{}, "test"))

	recipients := roster.ResolveAudience(context.Background(), AudienceRecent)
	assert.Empty(t, recipients)
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	got, ok := ParseTimestamp("2024-06-01T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), got)

	got, ok = ParseTimestamp("2024-06-01T10:00:00+02:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), got)

	got, ok = ParseTimestamp("2024-06-01T10:00:00.123456")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 123456000, time.UTC), got)

	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)
}
