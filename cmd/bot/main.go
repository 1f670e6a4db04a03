package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/m-orlov/secondhand-bot/internal/broadcast"
	"github.com/m-orlov/secondhand-bot/internal/config"
	"github.com/m-orlov/secondhand-bot/internal/handler"
	"github.com/m-orlov/secondhand-bot/internal/kv"
	"github.com/m-orlov/secondhand-bot/internal/media"
	"github.com/m-orlov/secondhand-bot/internal/middleware"
	"github.com/m-orlov/secondhand-bot/internal/storage"
	"github.com/m-orlov/secondhand-bot/internal/telegram"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the key-value store; falls back to the in-memory store when
	// the server is unreachable.
	store := kv.Connect(ctx, cfg.RedisAddr(), cfg.RedisPassword)

	// Initialize media storage
	mediaStorage, err := media.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize media storage", "backend", cfg.MediaBackend, "error", err)
		os.Exit(1)
	}

	// Initialize stores
	sessions := storage.NewSessionStore(store, cfg.KeyPrefix)
	records := storage.NewRecordStore(store, cfg.KeyPrefix)
	broadcasts := storage.NewBroadcastStore(store, cfg.KeyPrefix)
	roster := storage.NewRoster(store, cfg.KeyPrefix, cfg.SuperAdminIDs, records)

	// Handler pointer for use in default handler closure
	var h *handler.Handler

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.ActiveUser(roster),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleDefault(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:        b,
		Cfg:        cfg,
		Sessions:   sessions,
		Records:    records,
		Broadcasts: broadcasts,
		Roster:     roster,
		Media:      mediaStorage,
	})

	// Register all handlers
	h.Register()

	// Start the broadcast dispatcher goroutine
	dispatcher := broadcast.NewDispatcher(broadcasts, roster, func(ctx context.Context, chatID int64, text string) error {
		return telegram.SendText(ctx, b, chatID, text)
	})
	go dispatcher.Run(ctx)

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	slog.Info("bot stopped gracefully")
}
