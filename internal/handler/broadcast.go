package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/m-orlov/secondhand-bot/internal/storage"
	"github.com/m-orlov/secondhand-bot/internal/telegram"
)

// Broadcast draft fields kept in the admin's session while authoring.
const (
	fieldBroadcastAudience  = "broadcast_audience"
	fieldBroadcastText      = "broadcast_text"
	fieldBroadcastScheduled = "broadcast_scheduled_at"
)

const scheduleLayout = "2006-01-02 15:04"

// HandleBroadcast starts the broadcast authoring flow.
func (h *Handler) HandleBroadcast(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !h.roster.IsAdmin(ctx, msg.From.ID) {
		h.reply(ctx, msg.Chat.ID, "This command is for administrators.")
		return
	}
	h.replyMarkup(ctx, msg.Chat.ID, "Who should receive this broadcast?",
		telegram.InlineKeyboard(telegram.ButtonRow(
			telegram.InlineButton("All users", "bc:aud:"+storage.AudienceAll),
			telegram.InlineButton("Recent submitters", "bc:aud:"+storage.AudienceRecent),
		)))
}

// HandleBroadcastCallback routes audience, mode and confirmation taps.
func (h *Handler) HandleBroadcastCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	chatID, messageID, ok := callbackChat(query)
	if !ok {
		h.answerCallback(ctx, query, "")
		return
	}
	if !h.roster.IsAdmin(ctx, query.From.ID) {
		h.answerCallback(ctx, query, "Administrators only.")
		return
	}
	parts := strings.Split(query.Data, ":")
	if len(parts) < 2 {
		h.answerCallback(ctx, query, "")
		return
	}

	switch parts[1] {
	case "aud":
		if len(parts) < 3 {
			h.answerCallback(ctx, query, "")
			return
		}
		audience := parts[2]
		if audience != storage.AudienceAll && audience != storage.AudienceRecent {
			h.answerCallback(ctx, query, "")
			return
		}
		err := h.sessions.Set(ctx, query.From.ID, storage.Fields{
			fieldBroadcastAudience: audience,
			storage.FieldState:     stateBroadcastText,
		})
		if err != nil {
			h.answerCallback(ctx, query, msgStorageUnavailable)
			return
		}
		h.answerCallback(ctx, query, "")
		h.editMessage(ctx, chatID, messageID, "Send the broadcast message text.", nil)
	case "now":
		h.answerCallback(ctx, query, "")
		h.confirmBroadcast(ctx, query, chatID, messageID)
	case "later":
		err := h.sessions.Set(ctx, query.From.ID, storage.Fields{
			storage.FieldState: stateBroadcastSchedule,
		})
		if err != nil {
			h.answerCallback(ctx, query, msgStorageUnavailable)
			return
		}
		h.answerCallback(ctx, query, "")
		h.editMessage(ctx, chatID, messageID,
			fmt.Sprintf("Send the time to deliver it, UTC, as %q.", scheduleLayout), nil)
	case "confirm":
		h.answerCallback(ctx, query, "")
		h.createBroadcast(ctx, query, chatID, messageID)
	case "cancel":
		h.clearBroadcastDraft(ctx, query.From.ID)
		h.answerCallback(ctx, query, "")
		h.editMessage(ctx, chatID, messageID, "Broadcast cancelled.", nil)
	default:
		h.answerCallback(ctx, query, "")
	}
}

func (h *Handler) handleBroadcastTextInput(ctx context.Context, msg *models.Message, text string) {
	if !h.roster.IsAdmin(ctx, msg.From.ID) {
		return
	}
	err := h.sessions.Set(ctx, msg.From.ID, storage.Fields{
		fieldBroadcastText: text,
		storage.FieldState: "",
	})
	if err != nil {
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	h.replyMarkup(ctx, msg.Chat.ID, "When should it go out?",
		telegram.InlineKeyboard(telegram.ButtonRow(
			telegram.InlineButton("Now", "bc:now"),
			telegram.InlineButton("Schedule", "bc:later"),
		)))
}

func (h *Handler) handleBroadcastScheduleInput(ctx context.Context, msg *models.Message, text string) {
	if !h.roster.IsAdmin(ctx, msg.From.ID) {
		return
	}
	scheduled, err := time.Parse(scheduleLayout, text)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf("Could not parse that time; send it as %q.", scheduleLayout))
		return
	}
	err = h.sessions.Set(ctx, msg.From.ID, storage.Fields{
		fieldBroadcastScheduled: scheduled.UTC().Format(time.RFC3339),
		storage.FieldState:      "",
	})
	if err != nil {
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	h.sendBroadcastSummary(ctx, msg.Chat.ID, msg.From.ID)
}

func (h *Handler) confirmBroadcast(ctx context.Context, query *models.CallbackQuery, chatID int64, messageID int) {
	// Immediate sends skip the schedule step and go straight to summary.
	if err := h.sessions.Set(ctx, query.From.ID, storage.Fields{fieldBroadcastScheduled: ""}); err != nil {
		h.editMessage(ctx, chatID, messageID, msgStorageUnavailable, nil)
		return
	}
	h.sendBroadcastSummary(ctx, chatID, query.From.ID)
}

func (h *Handler) sendBroadcastSummary(ctx context.Context, chatID, adminID int64) {
	session, err := h.sessions.Get(ctx, adminID)
	if err != nil || session == nil {
		h.reply(ctx, chatID, msgStorageUnavailable)
		return
	}
	audience := session.String(fieldBroadcastAudience)
	recipients := h.roster.ResolveAudience(ctx, audience)
	if len(recipients) == 0 {
		h.reply(ctx, chatID, "No recipients match that audience.")
		h.clearBroadcastDraft(ctx, adminID)
		return
	}
	when := "immediately"
	if at := session.String(fieldBroadcastScheduled); at != "" {
		when = "at " + at
	}
	text := fmt.Sprintf("Broadcast to %s (%d recipients), delivered %s:\n\n%s",
		audienceLabel(audience), len(recipients), when, session.String(fieldBroadcastText))
	h.replyMarkup(ctx, chatID, text,
		telegram.InlineKeyboard(telegram.ButtonRow(
			telegram.InlineButton("Confirm", "bc:confirm"),
			telegram.InlineButton("Cancel", "bc:cancel"),
		)))
}

func (h *Handler) createBroadcast(ctx context.Context, query *models.CallbackQuery, chatID int64, messageID int) {
	adminID := query.From.ID
	session, err := h.sessions.Get(ctx, adminID)
	if err != nil || session == nil {
		h.editMessage(ctx, chatID, messageID, msgStorageUnavailable, nil)
		return
	}
	audience := session.String(fieldBroadcastAudience)
	recipients := h.roster.ResolveAudience(ctx, audience)
	if len(recipients) == 0 {
		h.editMessage(ctx, chatID, messageID, "No recipients match that audience.", nil)
		h.clearBroadcastDraft(ctx, adminID)
		return
	}

	now := time.Now().UTC()
	scheduledAt := session.String(fieldBroadcastScheduled)
	status := storage.BroadcastQueued
	if scheduledAt != "" {
		status = storage.BroadcastScheduled
	} else {
		scheduledAt = now.Format(time.RFC3339)
	}
	record := storage.Broadcast{
		ID:             strings.ReplaceAll(uuid.NewString(), "-", ""),
		CreatedAt:      now.Format(time.RFC3339),
		ScheduledAt:    scheduledAt,
		Status:         status,
		Audience:       audience,
		Text:           session.String(fieldBroadcastText),
		SenderID:       fmt.Sprintf("%d", adminID),
		RecipientCount: len(recipients),
	}
	if !h.broadcasts.Save(ctx, record) {
		h.editMessage(ctx, chatID, messageID, msgStorageUnavailable, nil)
		return
	}
	h.clearBroadcastDraft(ctx, adminID)

	if status == storage.BroadcastQueued {
		h.editMessage(ctx, chatID, messageID, fmt.Sprintf("Broadcast %s queued.", record.ID), nil)
	} else {
		h.editMessage(ctx, chatID, messageID,
			fmt.Sprintf("Broadcast %s scheduled for %s.", record.ID, record.ScheduledAt), nil)
	}
	slog.Info("broadcast authored", "broadcast_id", record.ID, "audience", audience,
		"recipients", record.RecipientCount, "status", status)
}

func (h *Handler) clearBroadcastDraft(ctx context.Context, adminID int64) {
	err := h.sessions.Set(ctx, adminID, storage.Fields{
		fieldBroadcastAudience:  "",
		fieldBroadcastText:      "",
		fieldBroadcastScheduled: "",
		storage.FieldState:      "",
	})
	if err != nil {
		slog.Error("failed to clear broadcast draft", "admin_id", adminID, "error", err)
	}
}

// HandleHistory lists past and pending broadcasts, newest first.
func (h *Handler) HandleHistory(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.listBroadcasts(ctx, update, "Broadcast history:", nil)
}

// HandleScheduled lists broadcasts that have not run yet.
func (h *Handler) HandleScheduled(ctx context.Context, b *bot.Bot, update *models.Update) {
	pending := func(record storage.Broadcast) bool {
		return record.Status == storage.BroadcastQueued || record.Status == storage.BroadcastScheduled
	}
	h.listBroadcasts(ctx, update, "Pending broadcasts:", pending)
}

func (h *Handler) listBroadcasts(ctx context.Context, update *models.Update, header string,
	filter func(storage.Broadcast) bool) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !h.roster.IsAdmin(ctx, msg.From.ID) {
		h.reply(ctx, msg.Chat.ID, "This command is for administrators.")
		return
	}
	records, err := h.broadcasts.ListAll(ctx)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	var sb strings.Builder
	sb.WriteString(header + "\n")
	count := 0
	for _, record := range records {
		if filter != nil && !filter(record) {
			continue
		}
		count++
		fmt.Fprintf(&sb, "\n%s — %s\n  audience: %s, recipients: %d, ok: %d, failed: %d\n  scheduled: %s\n",
			record.ID, record.Status, audienceLabel(record.Audience),
			record.RecipientCount, record.SuccessCount, record.FailedCount, record.ScheduledAt)
	}
	if count == 0 {
		sb.WriteString("(none)\n")
	}
	h.reply(ctx, msg.Chat.ID, sb.String())
}

func audienceLabel(audience string) string {
	switch audience {
	case storage.AudienceAll:
		return "all users"
	case storage.AudienceRecent:
		return "recent submitters"
	}
	return audience
}
