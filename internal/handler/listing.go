package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/secondhand-bot/internal/config"
	"github.com/m-orlov/secondhand-bot/internal/media"
	"github.com/m-orlov/secondhand-bot/internal/storage"
	"github.com/m-orlov/secondhand-bot/internal/telegram"
)

const fieldEditKey = "edit_key"

// HandleList shows the user's own listings, newest first.
func (h *Handler) HandleList(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	records, err := h.records.FetchForOwner(ctx, msg.From.ID)
	if err != nil {
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	if len(records) == 0 {
		h.reply(ctx, msg.Chat.ID, "You have no listings yet. Use /new to submit one.")
		return
	}
	text, markup := h.renderListPage(records, 0)
	h.replyMarkup(ctx, msg.Chat.ID, text, markup)
}

// HandleListCallback routes pagination, detail, revoke and edit taps.
func (h *Handler) HandleListCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	chatID, messageID, ok := callbackChat(query)
	if !ok {
		h.answerCallback(ctx, query, "")
		return
	}
	parts := strings.SplitN(query.Data, ":", 3)
	if len(parts) < 3 {
		h.answerCallback(ctx, query, "")
		return
	}
	action, arg := parts[1], parts[2]

	switch action {
	case "page":
		page, err := strconv.Atoi(arg)
		if err != nil {
			h.answerCallback(ctx, query, "")
			return
		}
		records, ferr := h.records.FetchForOwner(ctx, query.From.ID)
		if ferr != nil || len(records) == 0 {
			h.answerCallback(ctx, query, msgStorageUnavailable)
			return
		}
		text, markup := h.renderListPage(records, page)
		h.editMessage(ctx, chatID, messageID, text, markup)
		h.answerCallback(ctx, query, "")
	case "view":
		h.answerCallback(ctx, query, "")
		h.showListingDetail(ctx, chatID, query.From.ID, arg)
	case "revoke":
		if h.records.Revoke(ctx, arg, query.From.ID) {
			h.answerCallback(ctx, query, "Listing revoked.")
			h.reply(ctx, chatID, "Your listing has been revoked.")
		} else {
			h.answerCallback(ctx, query, "Could not revoke: already revoked or not your listing.")
		}
	case "editpos":
		h.startFieldEdit(ctx, query, chatID, arg, stateEditPosition, "Send the new item name.")
	case "editdesc":
		h.startFieldEdit(ctx, query, chatID, arg, stateEditDescription, "Send the new description.")
	default:
		h.answerCallback(ctx, query, "")
	}
}

func (h *Handler) renderListPage(records []storage.Application, page int) (string, models.ReplyMarkup) {
	totalPages := (len(records) + config.ListPageSize - 1) / config.ListPageSize
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}
	start := page * config.ListPageSize
	end := min(start+config.ListPageSize, len(records))

	var sb strings.Builder
	sb.WriteString("Your listings:\n")
	var rows [][]models.InlineKeyboardButton
	for i, record := range records[start:end] {
		title := record[storage.RecordPosition]
		if title == "" {
			title = record.SessionKey()
		}
		status := ""
		if record.Revoked() {
			status = " (revoked)"
		}
		fmt.Fprintf(&sb, "%d. %s%s\n", start+i+1, title, status)
		rows = append(rows, telegram.ButtonRow(
			telegram.InlineButton(fmt.Sprintf("%d. %s", start+i+1, title), "list:view:"+record.SessionKey()),
		))
	}
	if totalPages > 1 {
		rows = append(rows, telegram.PaginationRow(page, totalPages, "list:page"))
	}
	return sb.String(), telegram.InlineKeyboard(rows...)
}

func (h *Handler) showListingDetail(ctx context.Context, chatID, userID int64, sessionKey string) {
	record := h.records.Load(ctx, sessionKey)
	if record == nil {
		h.reply(ctx, chatID, "Listing not found.")
		return
	}
	if owner, ok := record.OwnerID(); !ok || owner != userID {
		slog.Warn("detail view rejected: not the owner", "session_key", sessionKey, "acting_user", userID)
		h.reply(ctx, chatID, "Listing not found.")
		return
	}

	var rows [][]models.InlineKeyboardButton
	if !record.Revoked() {
		rows = append(rows,
			telegram.ButtonRow(telegram.InlineButton("Revoke", "list:revoke:"+sessionKey)),
			telegram.ButtonRow(
				telegram.InlineButton("Edit name", "list:editpos:"+sessionKey),
				telegram.InlineButton("Edit description", "list:editdesc:"+sessionKey),
			),
		)
	}
	h.replyMarkup(ctx, chatID, formatApplication(record), telegram.InlineKeyboard(rows...))
	if paths := h.cachedPhotos(ctx, record); len(paths) > 0 {
		if err := telegram.SendPhotoAlbum(ctx, h.bot, chatID, paths); err != nil {
			slog.Error("failed to send listing photos", "chat_id", chatID, "error", err)
		}
	}
}

func (h *Handler) startFieldEdit(ctx context.Context, query *models.CallbackQuery, chatID int64, sessionKey, state, prompt string) {
	record := h.records.Load(ctx, sessionKey)
	if record == nil {
		h.answerCallback(ctx, query, "Listing not found.")
		return
	}
	if owner, ok := record.OwnerID(); !ok || owner != query.From.ID {
		h.answerCallback(ctx, query, "Not your listing.")
		return
	}
	err := h.sessions.Set(ctx, query.From.ID, storage.Fields{
		storage.FieldState: state,
		fieldEditKey:       sessionKey,
	})
	if err != nil {
		slog.Error("failed to start edit", "user_id", query.From.ID, "error", err)
		h.answerCallback(ctx, query, msgStorageUnavailable)
		return
	}
	h.answerCallback(ctx, query, "")
	h.reply(ctx, chatID, prompt)
}

func (h *Handler) applyEdit(ctx context.Context, msg *models.Message, session storage.Fields, recordField, value string) {
	sessionKey := session.String(fieldEditKey)
	if sessionKey == "" {
		h.reply(ctx, msg.Chat.ID, "Nothing is being edited. Use /list to pick a listing.")
		return
	}
	ok := h.records.UpdateOwned(ctx, sessionKey, msg.From.ID, map[string]any{recordField: value})
	if err := h.sessions.Set(ctx, msg.From.ID, storage.Fields{
		storage.FieldState: "",
		fieldEditKey:       "",
	}); err != nil {
		slog.Error("failed to clear edit state", "user_id", msg.From.ID, "error", err)
	}
	if !ok {
		h.reply(ctx, msg.Chat.ID, "Could not update the listing.")
		return
	}
	h.reply(ctx, msg.Chat.ID, "Listing updated.")
}

func (h *Handler) cachedPhotos(ctx context.Context, record storage.Application) []string {
	return media.CacheAll(ctx, h.media, record.PhotoHandles())
}

func formatApplication(record storage.Application) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Item: %s\n", record[storage.RecordPosition])
	fmt.Fprintf(&sb, "Condition: %s\n", record[storage.RecordCondition])
	if v := record[storage.RecordSize]; v != "" {
		fmt.Fprintf(&sb, "Size: %s\n", v)
	}
	if v := record[storage.RecordMaterial]; v != "" {
		fmt.Fprintf(&sb, "Material: %s\n", v)
	}
	if v := record[storage.RecordDescription]; v != "" {
		fmt.Fprintf(&sb, "Description: %s\n", v)
	}
	fmt.Fprintf(&sb, "Price: %s\n", record[storage.RecordPrice])
	fmt.Fprintf(&sb, "Contacts: %s\n", record[storage.RecordContacts])
	fmt.Fprintf(&sb, "Submitted: %s\n", record[storage.RecordCreatedAt])
	if record.Revoked() {
		fmt.Fprintf(&sb, "Revoked: %s\n", record[storage.RecordRevokedAt])
	}
	if record.Reviewed() {
		fmt.Fprintf(&sb, "Reviewed: %s by %s\n",
			record[storage.RecordReviewedAt], record[storage.RecordReviewedBy])
	}
	return sb.String()
}
