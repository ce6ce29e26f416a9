package service

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/pkg/errors"
)

// Messenger отправляет сообщения через Telegram Bot API в режиме HTML
type Messenger struct {
	bot    *tgbot.Bot
	logger *zap.Logger
}

// NewMessenger создает отправителя сообщений
func NewMessenger(b *tgbot.Bot, logger *zap.Logger) *Messenger {
	return &Messenger{bot: b, logger: logger}
}

// Send отправляет HTML сообщение без клавиатуры
func (m *Messenger) Send(ctx context.Context, chatID int64, text string) error {
	return m.SendWithMarkup(ctx, chatID, text, nil)
}

// SendWithMarkup отправляет HTML сообщение с клавиатурой
func (m *Messenger) SendWithMarkup(ctx context.Context, chatID int64, text string, replyMarkup tgmodels.ReplyMarkup) error {
	params := &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: replyMarkup,
	}

	if _, err := m.bot.SendMessage(ctx, params); err != nil {
		return errors.ErrSendFailed.WithError(err).WithContext(chatID)
	}
	return nil
}

// AnswerCallbackQuery отвечает на callback query, чтобы убрать индикатор загрузки
func (m *Messenger) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	params := &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}

	_, err := m.bot.AnswerCallbackQuery(ctx, params)
	return err
}
