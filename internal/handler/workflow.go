package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/secondhand-bot/internal/config"
	"github.com/m-orlov/secondhand-bot/internal/storage"
	"github.com/m-orlov/secondhand-bot/internal/telegram"
)

// Form states kept in the session's state field. One user has one active
// conversation, so a single state value per session is enough.
const (
	statePosition    = "position"
	stateCondition   = "condition"
	statePhotos      = "photos"
	stateSize        = "size"
	stateMaterial    = "material"
	stateDescription = "description"
	statePrice       = "price"
	stateContacts    = "contacts"

	stateEditPosition    = "edit_position"
	stateEditDescription = "edit_description"

	stateBroadcastText     = "broadcast_text"
	stateBroadcastSchedule = "broadcast_schedule"
)

var conditionChoices = []string{"New", "Good", "Well-worn"}

// HandleNew starts a fresh submission form, discarding any previous one.
func (h *Handler) HandleNew(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID

	mediaSession, err := h.media.CreateSession(userID)
	if err != nil {
		slog.Error("failed to create media session", "user_id", userID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}

	fields := storage.Fields{
		storage.FieldSessionKey: mediaSession.Key,
		storage.FieldPhotos:     []string{},
		storage.FieldState:      statePosition,
	}
	if mediaSession.Dir != "" {
		fields[storage.FieldSessionDir] = mediaSession.Dir
	}
	if err := h.sessions.Init(ctx, userID, fields); err != nil {
		slog.Error("failed to init session", "user_id", userID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	h.reply(ctx, msg.Chat.ID, "What are you selling? Send the item name.")
}

// handleText advances whichever form the user has in flight.
func (h *Handler) handleText(ctx context.Context, msg *models.Message) {
	userID := msg.From.ID
	session, err := h.sessions.Get(ctx, userID)
	if err != nil {
		slog.Error("failed to load session", "user_id", userID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	if session == nil {
		h.reply(ctx, msg.Chat.ID, "Nothing in progress. Use /new to submit a listing.")
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch session.String(storage.FieldState) {
	case statePosition:
		h.advance(ctx, userID, storage.FieldPosition, text, stateCondition)
		h.sendConditionKeyboard(ctx, msg.Chat.ID)
	case statePhotos:
		h.handlePhotoStateText(ctx, msg, session, text)
	case stateSize:
		h.advance(ctx, userID, storage.FieldSize, text, stateMaterial)
		h.reply(ctx, msg.Chat.ID, "What material is it made of?")
	case stateMaterial:
		h.advance(ctx, userID, storage.FieldMaterial, text, stateDescription)
		h.reply(ctx, msg.Chat.ID, "Add a short description.")
	case stateDescription:
		h.advance(ctx, userID, storage.FieldDescription, text, statePrice)
		h.reply(ctx, msg.Chat.ID, "What price are you asking?")
	case statePrice:
		h.advance(ctx, userID, storage.FieldPrice, text, stateContacts)
		h.reply(ctx, msg.Chat.ID, "How can buyers contact you?")
	case stateContacts:
		h.completeSubmission(ctx, msg, session, text)
	case stateEditPosition:
		h.applyEdit(ctx, msg, session, storage.RecordPosition, text)
	case stateEditDescription:
		h.applyEdit(ctx, msg, session, storage.RecordDescription, text)
	case stateBroadcastText:
		h.handleBroadcastTextInput(ctx, msg, text)
	case stateBroadcastSchedule:
		h.handleBroadcastScheduleInput(ctx, msg, text)
	default:
		h.reply(ctx, msg.Chat.ID, "Use /new to submit a listing or /help for commands.")
	}
}

func (h *Handler) advance(ctx context.Context, userID int64, field, value, nextState string) {
	err := h.sessions.Set(ctx, userID, storage.Fields{
		field:              value,
		storage.FieldState: nextState,
	})
	if err != nil {
		slog.Error("failed to advance form", "user_id", userID, "field", field, "error", err)
	}
}

func (h *Handler) sendConditionKeyboard(ctx context.Context, chatID int64) {
	row := make([]models.InlineKeyboardButton, 0, len(conditionChoices))
	for _, choice := range conditionChoices {
		row = append(row, telegram.InlineButton(choice, "cond:"+choice))
	}
	h.replyMarkup(ctx, chatID, "What condition is the item in?",
		telegram.InlineKeyboard(telegram.ButtonRow(row...)))
}

// HandleConditionChoice stores the selected condition and opens the photo
// step.
func (h *Handler) HandleConditionChoice(ctx context.Context, b *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	h.answerCallback(ctx, query, "")
	chatID, messageID, ok := callbackChat(query)
	if !ok {
		return
	}
	condition := strings.TrimPrefix(query.Data, "cond:")
	err := h.sessions.Set(ctx, query.From.ID, storage.Fields{
		storage.FieldCondition: condition,
		storage.FieldPhotos:    []string{},
		storage.FieldState:     statePhotos,
	})
	if err != nil {
		slog.Error("failed to store condition", "user_id", query.From.ID, "error", err)
		h.reply(ctx, chatID, msgStorageUnavailable)
		return
	}
	h.editMessage(ctx, chatID, messageID,
		fmt.Sprintf("Condition: %s\nNow send at least one photo of the item.", condition), nil)
}

func (h *Handler) handlePhotoStateText(ctx context.Context, msg *models.Message, session storage.Fields, text string) {
	if strings.EqualFold(text, config.SkipKeyword) {
		if len(session.Photos()) < config.MinPhotos {
			h.reply(ctx, msg.Chat.ID, "At least one photo is required before moving on.")
			return
		}
		if err := h.sessions.Set(ctx, msg.From.ID, storage.Fields{storage.FieldState: stateSize}); err != nil {
			slog.Error("failed to advance form", "user_id", msg.From.ID, "error", err)
		}
		h.reply(ctx, msg.Chat.ID, "What size is it?")
		return
	}
	h.reply(ctx, msg.Chat.ID,
		fmt.Sprintf("Send a photo, or type %q when you are finished.", config.SkipKeyword))
}

// handlePhotoUpload stages an incoming photo through the media backend and
// appends it to the session.
func (h *Handler) handlePhotoUpload(ctx context.Context, msg *models.Message) {
	userID := msg.From.ID
	session, err := h.sessions.Get(ctx, userID)
	if err != nil {
		slog.Error("failed to load session", "user_id", userID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	if session == nil || session.String(storage.FieldState) != statePhotos {
		return
	}
	photos := session.Photos()
	if len(photos) >= config.MaxPhotos {
		h.reply(ctx, msg.Chat.ID,
			fmt.Sprintf("Photo limit reached (%d). Type %q to continue.", config.MaxPhotos, config.SkipKeyword))
		return
	}

	mediaSession, err := h.media.GetSession(session.String(storage.FieldSessionKey))
	if err != nil {
		slog.Error("failed to reopen media session", "user_id", userID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}

	// Telegram sends several sizes; the last is the largest.
	fileID := msg.Photo[len(msg.Photo)-1].FileID
	filename := fmt.Sprintf("photo_%d.jpg", len(photos)+1)
	path, err := h.media.AllocatePath(mediaSession, filename)
	if err != nil {
		slog.Error("failed to allocate photo path", "user_id", userID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	if _, err := telegram.DownloadFile(ctx, h.bot, fileID, path); err != nil {
		slog.Error("failed to download photo", "user_id", userID, "error", err)
		h.reply(ctx, msg.Chat.ID, "Could not receive that photo, please try again.")
		return
	}

	photos, err = h.sessions.AppendPhoto(ctx, userID, path)
	if err != nil {
		slog.Error("failed to append photo", "user_id", userID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}

	if len(photos) < config.MinPhotos {
		h.reply(ctx, msg.Chat.ID, "Got it. Send at least one more photo.")
		return
	}
	h.reply(ctx, msg.Chat.ID,
		fmt.Sprintf("Photo %d saved. Send more or type %q to continue.", len(photos), config.SkipKeyword))
}

// completeSubmission converts the finished session into a durable
// application record and notifies the moderator chats.
func (h *Handler) completeSubmission(ctx context.Context, msg *models.Message, session storage.Fields, contacts string) {
	user := msg.From
	sessionKey := session.String(storage.FieldSessionKey)

	mediaSession, err := h.media.GetSession(sessionKey)
	if err != nil {
		slog.Error("failed to reopen media session", "user_id", user.ID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	handles := make([]string, 0, len(session.Photos()))
	for _, staged := range session.Photos() {
		handle, err := h.media.FinalizeUpload(ctx, mediaSession, staged)
		if err != nil {
			slog.Warn("failed to finalize photo", "user_id", user.ID, "path", staged, "error", err)
			continue
		}
		handles = append(handles, handle)
	}

	record := storage.Application{
		storage.RecordSessionKey:  sessionKey,
		storage.RecordUserID:      fmt.Sprintf("%d", user.ID),
		storage.RecordUsername:    user.Username,
		storage.RecordFirstName:   user.FirstName,
		storage.RecordLastName:    user.LastName,
		storage.RecordPosition:    session.String(storage.FieldPosition),
		storage.RecordCondition:   session.String(storage.FieldCondition),
		storage.RecordSize:        session.String(storage.FieldSize),
		storage.RecordMaterial:    session.String(storage.FieldMaterial),
		storage.RecordDescription: session.String(storage.FieldDescription),
		storage.RecordPrice:       session.String(storage.FieldPrice),
		storage.RecordContacts:    contacts,
		storage.RecordPhotos:      strings.Join(handles, ","),
		storage.FieldSessionDir:   session.String(storage.FieldSessionDir),
		storage.RecordCreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.records.Create(ctx, record); err != nil {
		slog.Error("failed to persist application", "user_id", user.ID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	if err := h.sessions.Clear(ctx, user.ID); err != nil {
		slog.Error("failed to clear session after submission", "user_id", user.ID, "error", err)
	}

	h.reply(ctx, msg.Chat.ID, "Your listing has been submitted. Thank you!")
	h.notifyModerators(ctx, record)
}

func (h *Handler) notifyModerators(ctx context.Context, record storage.Application) {
	if len(h.cfg.ModeratorChatIDs) == 0 {
		return
	}
	text := formatApplication(record)
	paths := h.cachedPhotos(ctx, record)
	for _, chatID := range h.cfg.ModeratorChatIDs {
		if err := telegram.SendText(ctx, h.bot, chatID, "New listing submitted:\n\n"+text); err != nil {
			slog.Error("failed to notify moderator chat", "chat_id", chatID, "error", err)
			continue
		}
		if err := telegram.SendPhotoAlbum(ctx, h.bot, chatID, paths); err != nil {
			slog.Error("failed to send photos to moderator chat", "chat_id", chatID, "error", err)
		}
	}
}
