// Package broadcast runs admin-authored fan-out jobs. The dispatcher is
// the only writer of broadcast counters after creation.
package broadcast

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/m-orlov/secondhand-bot/internal/config"
	"github.com/m-orlov/secondhand-bot/internal/storage"
)

// Sender delivers one broadcast message to one chat.
type Sender func(ctx context.Context, chatID int64, text string) error

// Dispatcher polls the broadcast index and executes jobs that are due.
// Status moves queued|scheduled -> running -> sent and never backwards.
type Dispatcher struct {
	broadcasts *storage.BroadcastStore
	roster     *storage.Roster
	send       Sender
	interval   time.Duration
	now        func() time.Time
}

// NewDispatcher creates a dispatcher delivering through send.
func NewDispatcher(broadcasts *storage.BroadcastStore, roster *storage.Roster, send Sender) *Dispatcher {
	return &Dispatcher{
		broadcasts: broadcasts,
		roster:     roster,
		send:       send,
		interval:   config.DispatchInterval,
		now:        time.Now,
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchDue(ctx)
		}
	}
}

// DispatchDue executes every queued broadcast and every scheduled one whose
// time has come.
func (d *Dispatcher) DispatchDue(ctx context.Context) {
	records, err := d.broadcasts.ListAll(ctx)
	if err != nil {
		slog.Error("broadcast scan failed", "error", err)
		return
	}
	for _, record := range records {
		if !d.due(record) {
			continue
		}
		d.execute(ctx, record)
	}
}

func (d *Dispatcher) due(record storage.Broadcast) bool {
	switch record.Status {
	case storage.BroadcastQueued:
		return true
	case storage.BroadcastScheduled:
		scheduled, ok := storage.ParseTimestamp(record.ScheduledAt)
		return ok && !scheduled.After(d.now().UTC())
	}
	return false
}

func (d *Dispatcher) execute(ctx context.Context, record storage.Broadcast) {
	if !d.broadcasts.Update(ctx, record.ID, map[string]string{"status": storage.BroadcastRunning}) {
		return
	}
	recipients := d.roster.ResolveAudience(ctx, record.Audience)
	ordered := make([]int64, 0, len(recipients))
	for id := range recipients {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	var success, failed int
	for _, chatID := range ordered {
		if err := d.send(ctx, chatID, record.Text); err != nil {
			slog.Warn("broadcast delivery failed", "broadcast_id", record.ID, "chat_id", chatID, "error", err)
			failed++
			continue
		}
		success++
	}
	d.broadcasts.Update(ctx, record.ID, map[string]string{
		"status":          storage.BroadcastSent,
		"success_count":   strconv.Itoa(success),
		"failed_count":    strconv.Itoa(failed),
		"recipient_count": strconv.Itoa(len(ordered)),
		"completed_at":    d.now().UTC().Format(time.RFC3339),
	})
	slog.Info("broadcast completed", "broadcast_id", record.ID,
		"recipients", len(ordered), "success", success, "failed", failed)
}
