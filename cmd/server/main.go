package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/balance"
	"github.com/region23/desco-balance-bot/internal/bot"
	"github.com/region23/desco-balance-bot/internal/bot/service"
	"github.com/region23/desco-balance-bot/internal/config"
	"github.com/region23/desco-balance-bot/internal/notification"
	"github.com/region23/desco-balance-bot/internal/scheduler/cron"
	"github.com/region23/desco-balance-bot/internal/server"
	"github.com/region23/desco-balance-bot/internal/storage/sqlite"
	"github.com/region23/desco-balance-bot/pkg/logger"
)

// version задается при сборке через -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	zl.Info("Starting DESCO balance bot",
		zap.String("version", version),
		zap.String("mode", cfg.Telegram.Mode),
		zap.String("timezone", cfg.Schedule.Timezone))

	loc, err := cfg.Location()
	if err != nil {
		zl.Fatal("Failed to load timezone", zap.Error(err))
	}

	// Инициализируем хранилище
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		zl.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			zl.Error("Error closing storage", zap.Error(err))
		}
	}()

	// Бот и диспетчер ссылаются друг на друга: обработчик по умолчанию
	// вызывает диспетчер, созданный ниже
	var dispatcher *bot.Dispatcher
	telegramBot, err := tgbot.New(cfg.Telegram.Token,
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update) {
			dispatcher.HandleUpdate(ctx, b, update)
		}),
	)
	if err != nil {
		zl.Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	messenger := service.NewMessenger(telegramBot, zl)
	registry := cron.New(cron.Config{
		Location:    loc,
		SweepSpec:   cfg.Schedule.SweepSpec,
		RefreshSpec: cfg.Schedule.RefreshSpec,
	}, zl)
	engine := notification.NewEngine(
		store,
		balance.NewClient(balance.Config{
			Endpoints:   cfg.Balance.Endpoints,
			Timeout:     cfg.Balance.Timeout,
			InsecureTLS: cfg.Balance.InsecureTLS,
		}, zl),
		messenger,
		registry,
		notification.Config{
			AdminChatID: cfg.Telegram.AdminChatID,
			Pacing:      cfg.Schedule.Pacing,
		},
		zl,
	)
	botService := service.NewService(messenger, store, engine, cfg.Telegram.AdminChatID, zl)
	dispatcher = bot.NewDispatcher(botService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := registry.Start(ctx, engine); err != nil {
		zl.Fatal("Failed to start scheduler", zap.Error(err))
	}
	if err := engine.Refresh(ctx); err != nil {
		zl.Error("Initial schedule refresh failed", zap.Error(err))
	}

	var updates server.UpdateHandler
	if cfg.Telegram.Mode == config.ModeWebhook {
		if err := setupWebhook(ctx, telegramBot, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			zl.Fatal("Failed to setup webhook", zap.Error(err))
		}
		zl.Info("Webhook configured", zap.String("url", cfg.Telegram.WebhookURL))
		updates = dispatcher
	} else {
		// getUpdates не работает при установленном webhook
		if _, err := telegramBot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
			zl.Warn("Failed to delete existing webhook", zap.Error(err))
		}
		go telegramBot.Start(ctx)
		zl.Info("Long polling started")
	}

	botService.NotifyOperator(ctx, "🚀 DESCO balance bot started ("+version+")")

	srv := server.New(cfg, zl, server.NewHealthChecker(store, registry, version), updates, telegramBot)
	if err := srv.Start(ctx); err != nil {
		zl.Error("Server error", zap.Error(err))
		stop()
	}

	zl.Info("Shutdown signal received, stopping scheduler")

	// Новые запуски больше не планируются; ждем выполняющиеся рассылки
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	select {
	case <-registry.Shutdown().Done():
		zl.Info("Scheduler stopped")
	case <-shutdownCtx.Done():
		zl.Warn("Timed out waiting for running jobs")
	}

	botService.NotifyOperator(shutdownCtx, "🛑 DESCO balance bot is shutting down")
	zl.Info("Bot stopped gracefully")
}

// setupWebhook настраивает webhook для Telegram бота
func setupWebhook(ctx context.Context, b *tgbot.Bot, webhookURL, secret string) error {
	if _, err := b.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		return err
	}

	_, err := b.SetWebhook(ctx, &tgbot.SetWebhookParams{
		URL:         webhookURL,
		SecretToken: secret,
	})
	return err
}
