package handlers

import (
	"context"
	stderrors "errors"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/bot/keyboard"
	botservice "github.com/region23/desco-balance-bot/internal/bot/service"
	storagemodels "github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/errors"
	"github.com/region23/desco-balance-bot/pkg/logger"
)

// BalanceHandler обрабатывает команду /balance
type BalanceHandler struct {
	service *botservice.Service
}

// NewBalanceHandler создает новый обработчик команды /balance
func NewBalanceHandler(service *botservice.Service) *BalanceHandler {
	return &BalanceHandler{service: service}
}

// Handle предлагает проверить сохраненный счет или проверяет переданный:
// /balance <account|-> [meter]
func (h *BalanceHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	u, err := h.service.GetUser(ctx, chatID)
	if err != nil {
		h.service.Logger().Error("Failed to load user", logger.ChatID(chatID), zap.Error(err))
		h.service.SendError(ctx, chatID, "Unable to identify user.")
		return
	}

	if fields := strings.Fields(commandArgs(update)); len(fields) > 0 {
		once := *u
		once.AccountNo = identifier(fields[0])
		once.MeterNo = ""
		if len(fields) > 1 {
			once.MeterNo = identifier(fields[1])
		}
		h.check(ctx, &once)
		return
	}

	if !u.HasAccount() {
		h.service.Reply(ctx, chatID,
			"You have no saved account yet.\n\n"+
				"Save one with <code>/account &lt;account&gt; [meter]</code> "+
				"or check once with <code>/balance &lt;account|-&gt; [meter]</code>")
		return
	}

	h.service.ReplyWithMarkup(ctx, chatID, "Choose an option:", keyboard.CreateBalanceKeyboard())
}

// check запрашивает баланс; извинение и отчет оператору отправляет движок
func (h *BalanceHandler) check(ctx context.Context, u *storagemodels.User) {
	if !u.HasAccount() {
		h.service.SendError(ctx, u.ChatID, "Please provide either Account Number or Meter Number.")
		return
	}

	h.service.Reply(ctx, u.ChatID, "Fetching balance... ⏳")
	if err := h.service.CheckBalance(ctx, u); err != nil {
		h.service.Logger().Warn("On-demand balance check failed", logger.ChatID(u.ChatID), zap.Error(err))
		if stderrors.Is(err, errors.ErrIdentifierRequired) {
			h.service.SendError(ctx, u.ChatID, "Please provide either Account Number or Meter Number.")
		}
	}
}
