package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/secondhand-bot/internal/storage"
	"github.com/m-orlov/secondhand-bot/internal/telegram"
)

// HandleApplications opens the admin submission browser.
func (h *Handler) HandleApplications(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !h.roster.IsAdmin(ctx, msg.From.ID) {
		h.reply(ctx, msg.Chat.ID, "This command is for administrators.")
		return
	}
	records, err := h.records.FetchAll(ctx)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	if len(records) == 0 {
		h.reply(ctx, msg.Chat.ID, "No submissions yet.")
		return
	}
	text, markup := h.renderApplication(records, 0)
	h.replyMarkup(ctx, msg.Chat.ID, text, markup)
}

// HandleApplicationsCallback routes browser navigation, photo paging and
// review toggles.
func (h *Handler) HandleApplicationsCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
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
	if len(parts) < 3 {
		h.answerCallback(ctx, query, "")
		return
	}

	switch parts[1] {
	case "nav":
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			h.answerCallback(ctx, query, "")
			return
		}
		records, ferr := h.records.FetchAll(ctx)
		if ferr != nil || len(records) == 0 {
			h.answerCallback(ctx, query, msgStorageUnavailable)
			return
		}
		text, markup := h.renderApplication(records, index)
		h.editMessage(ctx, chatID, messageID, text, markup)
		h.answerCallback(ctx, query, "")
	case "ph":
		if len(parts) < 4 {
			h.answerCallback(ctx, query, "")
			return
		}
		photoIndex, err := strconv.Atoi(parts[3])
		if err != nil {
			h.answerCallback(ctx, query, "")
			return
		}
		h.answerCallback(ctx, query, "")
		h.sendApplicationPhoto(ctx, chatID, parts[2], photoIndex)
	case "rev":
		sessionKey := parts[2]
		record := h.records.Load(ctx, sessionKey)
		if record == nil {
			h.answerCallback(ctx, query, "Submission not found.")
			return
		}
		if record.Reviewed() {
			if h.records.ClearReview(ctx, sessionKey) {
				h.answerCallback(ctx, query, "Review flag cleared.")
			} else {
				h.answerCallback(ctx, query, msgStorageUnavailable)
			}
			return
		}
		if _, ok := h.records.MarkReviewed(ctx, sessionKey, query.From.ID); ok {
			h.answerCallback(ctx, query, "Marked as reviewed.")
		} else {
			h.answerCallback(ctx, query, msgStorageUnavailable)
		}
	default:
		h.answerCallback(ctx, query, "")
	}
}

func (h *Handler) renderApplication(records []storage.Application, index int) (string, models.ReplyMarkup) {
	if index < 0 {
		index = 0
	}
	if index >= len(records) {
		index = len(records) - 1
	}
	record := records[index]

	var sb strings.Builder
	fmt.Fprintf(&sb, "Submission %d of %d\n\n", index+1, len(records))
	fmt.Fprintf(&sb, "From: %s %s (@%s, id %s)\n\n",
		record[storage.RecordFirstName], record[storage.RecordLastName],
		record[storage.RecordUsername], record[storage.RecordUserID])
	sb.WriteString(formatApplication(record))

	var rows [][]models.InlineKeyboardButton
	var nav []models.InlineKeyboardButton
	if index > 0 {
		nav = append(nav, telegram.InlineButton("⬅️", fmt.Sprintf("apps:nav:%d", index-1)))
	}
	nav = append(nav, telegram.InlineButton(fmt.Sprintf("%d/%d", index+1, len(records)), "noop"))
	if index < len(records)-1 {
		nav = append(nav, telegram.InlineButton("➡️", fmt.Sprintf("apps:nav:%d", index+1)))
	}
	rows = append(rows, nav)

	if handles := record.PhotoHandles(); len(handles) > 0 {
		rows = append(rows, telegram.ButtonRow(
			telegram.InlineButton(fmt.Sprintf("Photos (%d)", len(handles)),
				fmt.Sprintf("apps:ph:%s:0", record.SessionKey())),
		))
	}
	reviewLabel := "Mark reviewed"
	if record.Reviewed() {
		reviewLabel = "Clear review"
	}
	rows = append(rows, telegram.ButtonRow(
		telegram.InlineButton(reviewLabel, "apps:rev:"+record.SessionKey()),
	))
	return sb.String(), telegram.InlineKeyboard(rows...)
}

func (h *Handler) sendApplicationPhoto(ctx context.Context, chatID int64, sessionKey string, photoIndex int) {
	record := h.records.Load(ctx, sessionKey)
	if record == nil {
		h.reply(ctx, chatID, "Submission not found.")
		return
	}
	paths := h.cachedPhotos(ctx, record)
	if len(paths) == 0 {
		h.reply(ctx, chatID, "No photos available for this submission.")
		return
	}
	if photoIndex < 0 {
		photoIndex = 0
	}
	if photoIndex >= len(paths) {
		photoIndex = len(paths) - 1
	}

	var nav []models.InlineKeyboardButton
	if photoIndex > 0 {
		nav = append(nav, telegram.InlineButton("⬅️", fmt.Sprintf("apps:ph:%s:%d", sessionKey, photoIndex-1)))
	}
	nav = append(nav, telegram.InlineButton(fmt.Sprintf("%d/%d", photoIndex+1, len(paths)), "noop"))
	if photoIndex < len(paths)-1 {
		nav = append(nav, telegram.InlineButton("➡️", fmt.Sprintf("apps:ph:%s:%d", sessionKey, photoIndex+1)))
	}

	if err := telegram.SendPhotoAlbum(ctx, h.bot, chatID, paths[photoIndex:photoIndex+1]); err != nil {
		slog.Error("failed to send submission photo", "chat_id", chatID, "error", err)
		return
	}
	h.replyMarkup(ctx, chatID, fmt.Sprintf("Photo %d of %d", photoIndex+1, len(paths)),
		telegram.InlineKeyboard(nav))
}

// HandleAdmins shows the current admin roster.
func (h *Handler) HandleAdmins(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !h.roster.IsAdmin(ctx, msg.From.ID) {
		h.reply(ctx, msg.Chat.ID, "This command is for administrators.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Super admins:\n")
	for _, id := range h.cfg.SuperAdminIDs {
		fmt.Fprintf(&sb, "  %d\n", id)
	}
	admins := h.roster.Admins(ctx)
	ids := make([]int64, 0, len(admins))
	for id := range admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	sb.WriteString("Admins:\n")
	if len(ids) == 0 {
		sb.WriteString("  (none)\n")
	}
	for _, id := range ids {
		fmt.Fprintf(&sb, "  %d\n", id)
	}
	h.reply(ctx, msg.Chat.ID, sb.String())
}

// HandleAddAdmin grants admin rights: "/addadmin <user id>".
func (h *Handler) HandleAddAdmin(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleRosterChange(ctx, update, "/addadmin", func(ctx context.Context, id int64) (bool, string, string) {
		return h.roster.AddAdmin(ctx, id),
			fmt.Sprintf("User %d is now an admin.", id),
			fmt.Sprintf("User %d is already an admin.", id)
	})
}

// HandleRemoveAdmin revokes admin rights: "/removeadmin <user id>".
func (h *Handler) HandleRemoveAdmin(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleRosterChange(ctx, update, "/removeadmin", func(ctx context.Context, id int64) (bool, string, string) {
		return h.roster.RemoveAdmin(ctx, id),
			fmt.Sprintf("User %d is no longer an admin.", id),
			fmt.Sprintf("User %d was not an admin.", id)
	})
}

func (h *Handler) handleRosterChange(ctx context.Context, update *models.Update, command string,
	apply func(context.Context, int64) (bool, string, string)) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !h.roster.IsSuperAdmin(msg.From.ID) {
		h.reply(ctx, msg.Chat.ID, "Only super admins can manage the roster.")
		return
	}
	arg := strings.TrimSpace(strings.TrimPrefix(msg.Text, command))
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, fmt.Sprintf("Usage: %s <user id>", command))
		return
	}
	changed, changedMsg, unchangedMsg := apply(ctx, id)
	if changed {
		h.reply(ctx, msg.Chat.ID, changedMsg)
	} else {
		h.reply(ctx, msg.Chat.ID, unchangedMsg)
	}
}
