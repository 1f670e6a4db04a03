package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/secondhand-bot/internal/config"
	"github.com/m-orlov/secondhand-bot/internal/media"
	"github.com/m-orlov/secondhand-bot/internal/storage"
)

const msgStorageUnavailable = "Storage is temporarily unavailable, please try again later."

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot        *bot.Bot
	cfg        *config.Config
	sessions   *storage.SessionStore
	records    *storage.RecordStore
	broadcasts *storage.BroadcastStore
	roster     *storage.Roster
	media      media.Storage
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot        *bot.Bot
	Cfg        *config.Config
	Sessions   *storage.SessionStore
	Records    *storage.RecordStore
	Broadcasts *storage.BroadcastStore
	Roster     *storage.Roster
	Media      media.Storage
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:        deps.Bot,
		cfg:        deps.Cfg,
		sessions:   deps.Sessions,
		records:    deps.Records,
		broadcasts: deps.Broadcasts,
		roster:     deps.Roster,
		media:      deps.Media,
	}
}

// Register wires all command and callback handlers.
func (h *Handler) Register() {
	b := h.bot

	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, h.HandleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, h.HandleHelp)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/new", bot.MatchTypeExact, h.HandleNew)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypeExact, h.HandleCancel)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/list", bot.MatchTypeExact, h.HandleList)

	b.RegisterHandler(bot.HandlerTypeMessageText, "/applications", bot.MatchTypeExact, h.HandleApplications)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/admins", bot.MatchTypeExact, h.HandleAdmins)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/addadmin", bot.MatchTypePrefix, h.HandleAddAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/removeadmin", bot.MatchTypePrefix, h.HandleRemoveAdmin)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/broadcast", bot.MatchTypeExact, h.HandleBroadcast)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypeExact, h.HandleHistory)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/scheduled", bot.MatchTypeExact, h.HandleScheduled)

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "cond:", bot.MatchTypePrefix, h.HandleConditionChoice)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "list:", bot.MatchTypePrefix, h.HandleListCallback)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "apps:", bot.MatchTypePrefix, h.HandleApplicationsCallback)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "bc:", bot.MatchTypePrefix, h.HandleBroadcastCallback)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "noop", bot.MatchTypeExact, h.HandleNoop)
}

// HandleDefault routes non-command updates: photo uploads and free text are
// dispatched by the current form state.
func (h *Handler) HandleDefault(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if len(msg.Text) > 0 && msg.Text[0] == '/' {
		return
	}
	if len(msg.Photo) > 0 {
		h.handlePhotoUpload(ctx, msg)
		return
	}
	if msg.Text != "" {
		h.handleText(ctx, msg)
	}
}

// HandleNoop answers pagination counter taps without doing anything.
func (h *Handler) HandleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.answerCallback(ctx, update.CallbackQuery, "")
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		slog.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) replyMarkup(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	if _, err := h.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	}); err != nil {
		slog.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) editMessage(ctx context.Context, chatID int64, messageID int, text string, markup models.ReplyMarkup) {
	if _, err := h.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: markup,
	}); err != nil {
		slog.Error("failed to edit message", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) answerCallback(ctx context.Context, query *models.CallbackQuery, text string) {
	if query == nil {
		return
	}
	if _, err := h.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            text,
	}); err != nil {
		slog.Error("failed to answer callback query", "error", err)
	}
}

func callbackChat(query *models.CallbackQuery) (int64, int, bool) {
	if query == nil || query.Message.Message == nil {
		return 0, 0, false
	}
	return query.Message.Message.Chat.ID, query.Message.Message.ID, true
}
