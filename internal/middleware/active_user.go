package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/secondhand-bot/internal/storage"
)

// ActiveUser returns middleware that records every interacting user in the
// active-user set so "all" broadcasts can reach them.
func ActiveUser(roster *storage.Roster) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var userID int64
			if update.Message != nil && update.Message.From != nil {
				userID = update.Message.From.ID
			} else if update.CallbackQuery != nil {
				userID = update.CallbackQuery.From.ID
			}
			if userID != 0 {
				roster.RecordActiveUser(ctx, userID)
			}
			next(ctx, b, update)
		}
	}
}
