package handlers

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/bot/keyboard"
	botservice "github.com/region23/desco-balance-bot/internal/bot/service"
	storagemodels "github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/logger"
)

// CallbackHandler обрабатывает callback query от inline кнопок
type CallbackHandler struct {
	service *botservice.Service
	balance *BalanceHandler
}

// NewCallbackHandler создает новый обработчик callback query
func NewCallbackHandler(service *botservice.Service) *CallbackHandler {
	return &CallbackHandler{
		service: service,
		balance: NewBalanceHandler(service),
	}
}

// Handle обрабатывает callback query
func (h *CallbackHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}

	cb := update.CallbackQuery
	chatID := cb.From.ID
	if cb.Message.Message != nil {
		chatID = cb.Message.Message.Chat.ID
	}

	// Отвечаем сразу, чтобы убрать индикатор загрузки
	h.service.AnswerCallbackQuery(ctx, cb.ID, "")

	switch cb.Data {
	case keyboard.CallbackToggleSubscription:
		h.handleToggleSubscription(ctx, chatID)
	case keyboard.CallbackUseSaved:
		h.handleUseSaved(ctx, chatID)
	default:
		h.service.Logger().Warn("Unknown callback data", logger.ChatID(chatID), zap.String("data", cb.Data))
	}
}

func (h *CallbackHandler) handleToggleSubscription(ctx context.Context, chatID int64) {
	u, err := h.service.GetUser(ctx, chatID)
	if err != nil {
		h.service.Logger().Error("Failed to load user", logger.ChatID(chatID), zap.Error(err))
		h.service.SendError(ctx, chatID, "Please use /start to set up your account first.")
		return
	}

	subscribed := !u.Subscribed
	u, err = h.service.UpdatePreferences(ctx, chatID, storagemodels.UserUpdate{Subscribed: &subscribed})
	if err != nil {
		h.service.Logger().Error("Failed to toggle subscription", logger.ChatID(chatID), zap.Error(err))
		h.service.SendError(ctx, chatID, "Failed to update subscription. Please try again later.")
		return
	}

	if u.Subscribed {
		h.service.Reply(ctx, chatID,
			"✅ Notifications enabled!\n\nYou'll receive balance updates at: "+strings.Join(u.NotificationTimes, ", "))
		return
	}
	h.service.Reply(ctx, chatID, "❌ Notifications disabled.")
}

func (h *CallbackHandler) handleUseSaved(ctx context.Context, chatID int64) {
	u, err := h.service.GetUser(ctx, chatID)
	if err != nil || !u.HasAccount() {
		h.service.SendError(ctx, chatID, "No saved account details found. Please use /account to set up.")
		return
	}

	h.balance.check(ctx, u)
}
