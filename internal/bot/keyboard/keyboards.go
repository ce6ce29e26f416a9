package keyboard

import (
	"github.com/go-telegram/bot/models"
)

// Данные callback кнопок
const (
	CallbackToggleSubscription = "toggle_subscription"
	CallbackUseSaved           = "use_saved"
)

// CreateBalanceKeyboard создает inline клавиатуру для проверки сохраненного счета
func CreateBalanceKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Use My Saved Account", CallbackData: CallbackUseSaved},
			},
		},
	}
}

// CreateSubscriptionKeyboard создает кнопку включения/выключения уведомлений
func CreateSubscriptionKeyboard(subscribed bool) *models.InlineKeyboardMarkup {
	text := "Turn ON Notifications"
	if subscribed {
		text = "Turn OFF Notifications"
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: text, CallbackData: CallbackToggleSubscription},
			},
		},
	}
}
