package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// SendText sends a plain text message to a chat.
func SendText(ctx context.Context, b *bot.Bot, chatID int64, text string) error {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPhotoAlbum sends the given local photo files to a chat, as an album
// when there is more than one. Missing files are skipped.
func SendPhotoAlbum(ctx context.Context, b *bot.Bot, chatID int64, paths []string) error {
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		slog.Debug("no existing photos to send", "chat_id", chatID)
		return nil
	}

	if len(existing) == 1 {
		return sendSinglePhoto(ctx, b, chatID, existing[0])
	}

	media := make([]models.InputMedia, 0, len(existing))
	files := make([]*os.File, 0, len(existing))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, p := range existing {
		f, err := os.Open(p)
		if err != nil {
			slog.Warn("failed to open photo for album", "path", p, "error", err)
			continue
		}
		files = append(files, f)
		name := filepath.Base(p)
		media = append(media, &models.InputMediaPhoto{
			Media:           "attach://" + name,
			MediaAttachment: f,
		})
	}
	if len(media) == 0 {
		return nil
	}
	if _, err := b.SendMediaGroup(ctx, &bot.SendMediaGroupParams{
		ChatID: chatID,
		Media:  media,
	}); err != nil {
		// Albums occasionally fail on mixed content; fall back one by one.
		slog.Warn("media group send failed, sending individually", "chat_id", chatID, "error", err)
		for _, p := range existing {
			if err := sendSinglePhoto(ctx, b, chatID, p); err != nil {
				slog.Warn("failed to send photo", "path", p, "error", err)
			}
		}
	}
	return nil
}

func sendSinglePhoto(ctx context.Context, b *bot.Bot, chatID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()
	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo:  &models.InputFileUpload{Filename: filepath.Base(path), Data: f},
	})
	if err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}
