package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHashes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	got, err := m.HGetAll(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, m.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, m.HSet(ctx, "h", map[string]string{"b": "3"}))

	got, err = m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, got)
}

func TestMemoryHSetEmptyIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.HSet(ctx, "h", nil))
	got, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryHDelRemovesEmptiedHash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}))

	removed, err := m.HDel(ctx, "h", "a", "nope")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = m.HDel(ctx, "h", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, got)

	removed, err = m.HDel(ctx, "h", "a")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestMemorySetsAreIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	added, err := m.SAdd(ctx, "s", "1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = m.SAdd(ctx, "s", "1")
	require.NoError(t, err)
	assert.False(t, added)

	members, err := m.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)

	removed, err := m.SRem(ctx, "s", "1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.SRem(ctx, "s", "1")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = m.SRem(ctx, "absent", "1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMemoryDelCoversHashesAndSets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.HSet(ctx, "h", map[string]string{"a": "1"}))
	_, err := m.SAdd(ctx, "s", "x")
	require.NoError(t, err)

	require.NoError(t, m.Del(ctx, "h", "s", "absent"))

	got, err := m.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, got)

	members, err := m.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, members)
}
