package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/desco-balance-bot/internal/bot/service"
)

// DefaultHandler обрабатывает неопознанные сообщения
type DefaultHandler struct {
	service *botservice.Service
}

// NewDefaultHandler создает новый обработчик по умолчанию
func NewDefaultHandler(service *botservice.Service) *DefaultHandler {
	return &DefaultHandler{service: service}
}

// Handle напоминает, как пользоваться ботом
func (h *DefaultHandler) Handle(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	h.service.Reply(ctx, update.Message.Chat.ID, "I didn't understand that. Use /help to see available commands.")
}
