package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/alert"
	botservice "github.com/region23/desco-balance-bot/internal/bot/service"
	storagemodels "github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/logger"
)

// AccountHandler обрабатывает команды профиля: /me, /account, /update, /stop
type AccountHandler struct {
	service *botservice.Service
}

// NewAccountHandler создает новый обработчик команд профиля
func NewAccountHandler(service *botservice.Service) *AccountHandler {
	return &AccountHandler{service: service}
}

// HandleMe показывает данные пользователя и настройки уведомлений
func (h *AccountHandler) HandleMe(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	u, err := h.service.GetUser(ctx, chatID)
	if err != nil {
		h.service.Logger().Error("Failed to load user", logger.ChatID(chatID), zap.Error(err))
		h.service.SendError(ctx, chatID, "User not found. Please use /start to set up your account.")
		return
	}

	h.service.Reply(ctx, chatID, FormatProfile(u))
}

// HandleAccount сохраняет номер счета и/или счетчика: /account <account|-> [meter|-]
func (h *AccountHandler) HandleAccount(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	fields := strings.Fields(commandArgs(update))
	if len(fields) == 0 || len(fields) > 2 {
		h.service.Reply(ctx, chatID,
			"Usage: <code>/account &lt;account|-&gt; [meter|-]</code>\n\n"+
				"Example: <code>/account 12345678</code> or <code>/account - 661234567</code>")
		return
	}

	accountNo := identifier(fields[0])
	meterNo := ""
	if len(fields) == 2 {
		meterNo = identifier(fields[1])
	}
	if accountNo == "" && meterNo == "" {
		h.service.SendError(ctx, chatID, "You must provide at least Account Number or Meter Number.")
		return
	}

	u, err := h.service.UpdatePreferences(ctx, chatID, storagemodels.UserUpdate{
		AccountNo: &accountNo,
		MeterNo:   &meterNo,
	})
	if err != nil {
		h.service.Logger().Error("Failed to update account details", logger.ChatID(chatID), zap.Error(err))
		h.service.SendError(ctx, chatID, "Failed to save account details. Please try again later.")
		return
	}

	h.service.Reply(ctx, chatID, fmt.Sprintf(
		"✅ Account details saved!\n\nAccount No: %s\nMeter No: %s\n\n"+
			"You can now use /balance to check your balance.\nUse /subscribe to enable automatic notifications!",
		html.EscapeString(orNotSet(u.AccountNo)), html.EscapeString(orNotSet(u.MeterNo))))
}

// HandleUpdate подсказывает команды изменения настроек
func (h *AccountHandler) HandleUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	h.service.Reply(ctx, update.Message.Chat.ID,
		"What would you like to update?\n\n"+
			"📝 <code>/account &lt;account|-&gt; [meter|-]</code>\n"+
			"⚙️ <code>/times 08:00, 16:00</code>\n"+
			"⚠️ <code>/threshold 100</code>\n"+
			"🔔 <code>/hourly 50</code> (0 disables)")
}

// HandleStop удаляет данные пользователя и отключает уведомления
func (h *AccountHandler) HandleStop(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if err := h.service.DeleteUser(ctx, chatID); err != nil {
		h.service.Logger().Error("Failed to delete user", logger.ChatID(chatID), zap.Error(err))
		h.service.SendError(ctx, chatID, "Failed to delete your data. Please try again later.")
		return
	}

	h.service.Reply(ctx, chatID,
		"👋 Your account details and notification settings have been deleted.\n\n"+
			"Send /start any time to set up again.")
}

// FormatProfile форматирует карточку пользователя для /me
func FormatProfile(u *storagemodels.User) string {
	subscription := "❌ Inactive"
	if u.Subscribed {
		subscription = "✅ Active"
	}
	hourly := "❌ Disabled"
	if u.HourlyEnabled {
		hourly = "✅ Enabled"
	}
	times := "Not set"
	if len(u.NotificationTimes) > 0 {
		times = strings.Join(u.NotificationTimes, ", ")
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = "N/A"
	}
	username := u.Username
	if username == "" {
		username = "N/A"
	}

	return fmt.Sprintf("👤 <b>Your Account Information</b>\n\n"+
		"<b>Name:</b> %s\n"+
		"<b>Username:</b> @%s\n"+
		"<b>Telegram ID:</b> <code>%d</code>\n\n"+
		"📊 <b>DESCO Details:</b>\n"+
		"<b>Account No:</b> <code>%s</code>\n"+
		"<b>Meter No:</b> <code>%s</code>\n\n"+
		"🔔 <b>Subscription:</b> %s\n"+
		"<b>Notification Times:</b> %s\n"+
		"<b>Low Balance Threshold:</b> %s BDT\n"+
		"<b>Hourly Alerts (when low):</b> %s\n\n"+
		"<i>Use /update to modify your details</i>\n"+
		"<i>Use /subscribe to manage notifications</i>",
		html.EscapeString(name),
		html.EscapeString(username),
		u.ChatID,
		html.EscapeString(orNotSet(u.AccountNo)),
		html.EscapeString(orNotSet(u.MeterNo)),
		subscription,
		times,
		alert.FormatAmount(u.Threshold),
		hourly,
	)
}

// identifier трактует "-" и "skip" как пустое значение
func identifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" || strings.EqualFold(s, "skip") {
		return ""
	}
	return s
}

func orNotSet(s string) string {
	if s == "" {
		return "Not set"
	}
	return s
}
