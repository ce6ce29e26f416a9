package handlers

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

// ParseCommand разбирает "/cmd@bot arg1 arg2" на команду и аргументы.
// Для текста без "/" возвращает пустую команду.
func ParseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	cmd, args, _ := strings.Cut(text, " ")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// commandArgs возвращает аргументы команды из сообщения
func commandArgs(update *models.Update) string {
	_, args := ParseCommand(update.Message.Text)
	return args
}
