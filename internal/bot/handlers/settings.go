package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/alert"
	"github.com/region23/desco-balance-bot/internal/bot/keyboard"
	botservice "github.com/region23/desco-balance-bot/internal/bot/service"
	storagemodels "github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/errors"
	"github.com/region23/desco-balance-bot/pkg/logger"
)

// SettingsHandler обрабатывает команды настроек уведомлений
type SettingsHandler struct {
	service *botservice.Service
}

// NewSettingsHandler создает новый обработчик настроек
func NewSettingsHandler(service *botservice.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// HandleSubscribe показывает статус подписки и кнопку переключения
func (h *SettingsHandler) HandleSubscribe(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	u, err := h.service.GetUser(ctx, chatID)
	if err != nil {
		h.service.Logger().Error("Failed to load user", logger.ChatID(chatID), zap.Error(err))
		h.service.SendError(ctx, chatID, "Please use /start to set up your account first.")
		return
	}
	if !u.HasAccount() {
		h.service.SendError(ctx, chatID, "Please set up your account details using /account before subscribing.")
		return
	}

	status := "OFF"
	if u.Subscribed {
		status = "ON"
	}

	text := fmt.Sprintf("🔔 <b>Notification Subscription</b>\n\n"+
		"Current Status: <b>%s</b>\n\n"+
		"When subscribed, you'll receive balance updates at your set times.\n"+
		"Current notification times: %s\n\n"+
		"<i>Use /times to change them</i>",
		status, strings.Join(u.NotificationTimes, ", "))

	h.service.ReplyWithMarkup(ctx, chatID, text, keyboard.CreateSubscriptionKeyboard(u.Subscribed))
}

// HandleTimes задает время уведомлений: /times 08:00, 16:00
func (h *SettingsHandler) HandleTimes(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	times, err := storagemodels.ParseTimes(commandArgs(update))
	if err != nil {
		h.service.SendError(ctx, chatID,
			"Invalid format. Please use HH:MM format in 24-hour time, e.g. <code>/times 08:00, 16:00</code>")
		return
	}

	if _, err := h.service.UpdatePreferences(ctx, chatID, storagemodels.UserUpdate{NotificationTimes: times}); err != nil {
		h.fail(ctx, chatID, "notification times", err)
		return
	}

	h.service.Reply(ctx, chatID, "✅ Notification times updated!\n\nYou'll receive updates at: "+strings.Join(times, ", "))
}

// HandleThreshold задает порог низкого баланса: /threshold 100
func (h *SettingsHandler) HandleThreshold(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	threshold, err := ParseAmount(commandArgs(update))
	if err != nil {
		h.service.SendError(ctx, chatID, "Please enter a valid number, e.g. <code>/threshold 100</code>")
		return
	}

	u, err := h.service.UpdatePreferences(ctx, chatID, storagemodels.UserUpdate{Threshold: &threshold})
	if err != nil {
		h.fail(ctx, chatID, "threshold", err)
		return
	}

	msg := fmt.Sprintf("✅ Low balance threshold updated to %s BDT", alert.FormatAmount(u.Threshold))
	if threshold <= 0 {
		msg += "\n\nHourly alerts are disabled while the threshold is 0."
	}
	h.service.Reply(ctx, chatID, msg)
}

// HandleHourly включает почасовые уведомления при балансе ≤ N, 0 отключает их: /hourly 50
func (h *SettingsHandler) HandleHourly(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	threshold, err := ParseAmount(commandArgs(update))
	if err != nil {
		h.service.SendError(ctx, chatID, "Please enter a valid number (e.g., <code>/hourly 50</code>) or 0 to disable")
		return
	}

	enabled := threshold > 0
	if _, err := h.service.UpdatePreferences(ctx, chatID, storagemodels.UserUpdate{
		Threshold:     &threshold,
		HourlyEnabled: &enabled,
	}); err != nil {
		h.fail(ctx, chatID, "hourly alerts", err)
		return
	}

	if !enabled {
		h.service.Reply(ctx, chatID, "✅ Hourly alerts disabled.")
		return
	}
	h.service.Reply(ctx, chatID, fmt.Sprintf(
		"✅ Hourly alerts enabled!\n\nYou'll receive notifications every hour when your balance is ≤ %s BDT.",
		alert.FormatAmount(threshold)))
}

func (h *SettingsHandler) fail(ctx context.Context, chatID int64, what string, err error) {
	h.service.Logger().Error("Failed to update preferences",
		logger.ChatID(chatID),
		zap.String("field", what),
		zap.Error(err))
	if stderrors.Is(err, errors.ErrUserNotFound) {
		h.service.SendError(ctx, chatID, "User not found. Please use /start first.")
		return
	}
	h.service.SendError(ctx, chatID, "Failed to update "+what+". Please try again later.")
}

// ParseAmount разбирает неотрицательную сумму в BDT
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.ErrInvalidThreshold.WithError(err).WithContext(s)
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.ErrInvalidThreshold.WithContext(s)
	}
	return v, nil
}
