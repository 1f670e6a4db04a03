package storage

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/m-orlov/secondhand-bot/internal/kv"
)

// Broadcast statuses. A broadcast moves along queued|scheduled -> running
// -> sent; counters are written only by the dispatch consumer.
const (
	BroadcastQueued    = "queued"
	BroadcastScheduled = "scheduled"
	BroadcastRunning   = "running"
	BroadcastSent      = "sent"
)

// Broadcast is one admin-authored fan-out job.
type Broadcast struct {
	ID             string
	CreatedAt      string
	ScheduledAt    string
	CompletedAt    string
	Status         string
	Audience       string
	Text           string
	SenderID       string
	RecipientCount int
	SuccessCount   int
	FailedCount    int
}

// BroadcastStore persists broadcast records using the same hash-plus-index
// pattern as applications.
type BroadcastStore struct {
	store  kv.Store
	prefix string
}

// NewBroadcastStore creates a BroadcastStore over the given backend and
// key prefix.
func NewBroadcastStore(store kv.Store, prefix string) *BroadcastStore {
	return &BroadcastStore{store: store, prefix: prefix}
}

// Save persists a freshly authored broadcast and registers it in the
// broadcast index.
func (b *BroadcastStore) Save(ctx context.Context, record Broadcast) bool {
	key := broadcastKey(b.prefix, record.ID)
	if err := b.store.HSet(ctx, key, broadcastToMap(record)); err != nil {
		slog.Error("failed to persist broadcast", "id", record.ID, "error", err)
		return false
	}
	if _, err := b.store.SAdd(ctx, b.prefix+":"+broadcastsSetSuffix, key); err != nil {
		slog.Error("failed to index broadcast", "id", record.ID, "error", err)
		return false
	}
	return true
}

// Update merges raw fields into an existing broadcast record. Used by the
// dispatch consumer to advance status and counters.
func (b *BroadcastStore) Update(ctx context.Context, id string, fields map[string]string) bool {
	if len(fields) == 0 {
		return true
	}
	if err := b.store.HSet(ctx, broadcastKey(b.prefix, id), fields); err != nil {
		slog.Error("failed to update broadcast", "id", id, "error", err)
		return false
	}
	return true
}

// Load fetches one broadcast by id, or nil when absent or unreadable.
func (b *BroadcastStore) Load(ctx context.Context, id string) *Broadcast {
	raw, err := b.store.HGetAll(ctx, broadcastKey(b.prefix, id))
	if err != nil {
		slog.Error("failed to load broadcast", "id", id, "error", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	record := broadcastFromMap(raw)
	return &record
}

// ListAll returns every broadcast record, newest first. Returns
// ErrUnavailable when the index cannot be read.
func (b *BroadcastStore) ListAll(ctx context.Context) ([]Broadcast, error) {
	keys, err := b.store.SMembers(ctx, b.prefix+":"+broadcastsSetSuffix)
	if err != nil {
		slog.Error("failed to list broadcasts", "error", err)
		return nil, ErrUnavailable
	}
	records := make([]Broadcast, 0, len(keys))
	for _, key := range keys {
		raw, err := b.store.HGetAll(ctx, key)
		if err != nil {
			slog.Error("failed to load broadcast", "key", key, "error", err)
			continue
		}
		if len(raw) == 0 {
			continue
		}
		records = append(records, broadcastFromMap(raw))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
	return records, nil
}

func broadcastToMap(b Broadcast) map[string]string {
	return map[string]string{
		"id":              b.ID,
		"created_at":      b.CreatedAt,
		"scheduled_at":    b.ScheduledAt,
		"completed_at":    b.CompletedAt,
		"status":          b.Status,
		"audience":        b.Audience,
		"text":            b.Text,
		"sender_id":       b.SenderID,
		"recipient_count": strconv.Itoa(b.RecipientCount),
		"success_count":   strconv.Itoa(b.SuccessCount),
		"failed_count":    strconv.Itoa(b.FailedCount),
	}
}

func broadcastFromMap(raw map[string]string) Broadcast {
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return Broadcast{
		ID:             raw["id"],
		CreatedAt:      raw["created_at"],
		ScheduledAt:    raw["scheduled_at"],
		CompletedAt:    raw["completed_at"],
		Status:         raw["status"],
		Audience:       raw["audience"],
		Text:           raw["text"],
		SenderID:       raw["sender_id"],
		RecipientCount: atoi(raw["recipient_count"]),
		SuccessCount:   atoi(raw["success_count"]),
		FailedCount:    atoi(raw["failed_count"]),
	}
}
