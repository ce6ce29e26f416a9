package bot

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/bot/handlers"
	"github.com/region23/desco-balance-bot/internal/bot/service"
	storagemodels "github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/logger"
	"github.com/region23/desco-balance-bot/pkg/metrics"
)

// Dispatcher управляет обработкой входящих обновлений от Telegram
type Dispatcher struct {
	service         *service.Service
	commands        map[string]tgbot.HandlerFunc
	callbackHandler *handlers.CallbackHandler
	defaultHandler  *handlers.DefaultHandler
	logger          *zap.Logger
}

// NewDispatcher создает новый диспетчер обновлений
func NewDispatcher(svc *service.Service) *Dispatcher {
	start := handlers.NewStartHandler(svc)
	help := handlers.NewHelpHandler(svc)
	account := handlers.NewAccountHandler(svc)
	settings := handlers.NewSettingsHandler(svc)
	balance := handlers.NewBalanceHandler(svc)

	return &Dispatcher{
		service: svc,
		commands: map[string]tgbot.HandlerFunc{
			"/start":     start.Handle,
			"/help":      help.Handle,
			"/me":        account.HandleMe,
			"/account":   account.HandleAccount,
			"/update":    account.HandleUpdate,
			"/stop":      account.HandleStop,
			"/balance":   balance.Handle,
			"/subscribe": settings.HandleSubscribe,
			"/times":     settings.HandleTimes,
			"/threshold": settings.HandleThreshold,
			"/hourly":    settings.HandleHourly,
		},
		callbackHandler: handlers.NewCallbackHandler(svc),
		defaultHandler:  handlers.NewDefaultHandler(svc),
		logger:          svc.Logger(),
	}
}

// HandleUpdate обрабатывает входящее обновление от Telegram.
// Любое обращение регистрирует отправителя.
func (d *Dispatcher) HandleUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if profile, ok := profileOf(update); ok {
		if _, err := d.service.RegisterUser(ctx, profile); err != nil {
			d.logger.Error("Failed to auto-register user", logger.ChatID(profile.ChatID), zap.Error(err))
			metrics.RecordError("bot", "auto_register")
			return
		}
	}

	// Обрабатываем callback query от inline кнопок
	if update.CallbackQuery != nil {
		d.logger.Debug("Received callback query",
			logger.ChatID(update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data))
		metrics.RecordUpdate("callback")
		d.callbackHandler.Handle(ctx, b, update)
		return
	}

	if update.Message != nil {
		cmd, _ := handlers.ParseCommand(update.Message.Text)
		d.logger.Debug("Received message",
			logger.ChatID(update.Message.Chat.ID),
			zap.String("command", cmd))

		if h, ok := d.commands[cmd]; ok {
			metrics.RecordUpdate(cmd)
			h(ctx, b, update)
			return
		}

		metrics.RecordUpdate("default")
		d.defaultHandler.Handle(ctx, b, update)
		return
	}

	d.logger.Debug("Ignoring unsupported update type", zap.Int64("update_id", update.ID))
}

// profileOf извлекает профиль отправителя для авторегистрации
func profileOf(update *models.Update) (storagemodels.Profile, bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		from := update.Message.From
		return storagemodels.Profile{
			ChatID:    update.Message.Chat.ID,
			Username:  from.Username,
			FirstName: from.FirstName,
			LastName:  from.LastName,
		}, true
	case update.CallbackQuery != nil:
		from := update.CallbackQuery.From
		chatID := from.ID
		if m := update.CallbackQuery.Message.Message; m != nil {
			chatID = m.Chat.ID
		}
		return storagemodels.Profile{
			ChatID:    chatID,
			Username:  from.Username,
			FirstName: from.FirstName,
			LastName:  from.LastName,
		}, true
	}
	return storagemodels.Profile{}, false
}
