package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const helpText = `Commands:
/new — submit a new listing
/list — your listings
/cancel — abort the current form
/help — this message`

// HandleStart greets the user.
func (h *Handler) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	h.reply(ctx, msg.Chat.ID,
		"Welcome! Use /new to submit a second-hand listing and /list to manage your submissions.")
}

// HandleHelp lists available commands.
func (h *Handler) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	h.reply(ctx, msg.Chat.ID, helpText)
}

// HandleCancel aborts the in-progress form and discards its session.
func (h *Handler) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if err := h.sessions.Clear(ctx, msg.From.ID); err != nil {
		slog.Error("failed to clear session on cancel", "user_id", msg.From.ID, "error", err)
		h.reply(ctx, msg.Chat.ID, msgStorageUnavailable)
		return
	}
	h.reply(ctx, msg.Chat.ID, "Cancelled. Use /new to start over.")
}
