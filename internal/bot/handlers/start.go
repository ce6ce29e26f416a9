package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	botservice "github.com/region23/desco-balance-bot/internal/bot/service"
	"github.com/region23/desco-balance-bot/pkg/logger"
)

const commandList = "/balance - Check your electricity balance\n" +
	"/me - View your account information\n" +
	"/account - Set your Account/Meter Number\n" +
	"/subscribe - Enable/disable notifications\n" +
	"/help - Show all commands"

// StartHandler обрабатывает команду /start
type StartHandler struct {
	service *botservice.Service
}

// NewStartHandler создает новый обработчик команды /start
func NewStartHandler(service *botservice.Service) *StartHandler {
	return &StartHandler{service: service}
}

// Handle обрабатывает команду /start
func (h *StartHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID

	user, err := h.service.GetUser(ctx, chatID)
	if err != nil {
		h.service.Logger().Error("Failed to load user", logger.ChatID(chatID), zap.Error(err))
		h.service.SendError(ctx, chatID, "Something went wrong. Please try again later.")
		return
	}

	if !user.HasAccount() {
		h.service.Reply(ctx, chatID,
			"👋 Welcome to DESCO Balance Check Bot!\n\n"+
				"Let's set up your account. I'll need either your Account Number or Meter Number (or both).\n\n"+
				"Send: <code>/account &lt;account&gt; [meter]</code>\n"+
				"Use <code>-</code> to skip a field, e.g. <code>/account - 661234567</code>")
		return
	}

	h.service.Reply(ctx, chatID, "👋 Welcome back to DESCO Balance Check Bot! 🔋\n\nAvailable commands:\n"+commandList)
}

// HelpHandler обрабатывает команду /help
type HelpHandler struct {
	service *botservice.Service
}

// NewHelpHandler создает новый обработчик команды /help
func NewHelpHandler(service *botservice.Service) *HelpHandler {
	return &HelpHandler{service: service}
}

// Handle отправляет справку по командам
func (h *HelpHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 <b>DESCO Balance Check Bot - Help</b>\n\n" +
		"<b>Available Commands:</b>\n\n" +
		"/start - Set up your account (first time users)\n" +
		"/balance - Check your current DESCO balance\n" +
		"/balance &lt;account|-&gt; [meter] - Check any account once\n" +
		"/me - View your account and subscription info\n" +
		"/account &lt;account|-&gt; [meter|-] - Update your account details\n" +
		"/times HH:MM,HH:MM - Set notification times\n" +
		"/threshold N - Set low balance threshold (BDT)\n" +
		"/hourly N - Hourly alerts while balance ≤ N BDT (0 disables)\n" +
		"/subscribe - Manage notification subscriptions\n" +
		"/stop - Delete your data and stop all notifications\n" +
		"/help - Show this help message\n\n" +
		"<b>About Subscriptions:</b>\n" +
		"When subscribed, you'll receive automatic balance notifications at your chosen times. " +
		"You can also set a low balance threshold for alerts."

	h.service.Reply(ctx, update.Message.Chat.ID, helpText)
}
