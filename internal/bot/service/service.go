package service

import (
	"context"

	tgmodels "github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/storage"
	"github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/errors"
	"github.com/region23/desco-balance-bot/pkg/logger"
	"github.com/region23/desco-balance-bot/pkg/metrics"
)

// BalanceChecker выполняет проверку баланса и перестройку расписания
type BalanceChecker interface {
	CheckNow(ctx context.Context, u *models.User) error
	Refresh(ctx context.Context) error
}

// Service представляет основной сервис Telegram бота
type Service struct {
	messenger   *Messenger
	storage     storage.UserRepository
	checker     BalanceChecker
	adminChatID int64
	logger      *zap.Logger
}

// NewService создает новый экземпляр сервиса бота
func NewService(
	messenger *Messenger,
	storage storage.UserRepository,
	checker BalanceChecker,
	adminChatID int64,
	logger *zap.Logger,
) *Service {
	return &Service{
		messenger:   messenger,
		storage:     storage,
		checker:     checker,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Logger возвращает логгер сервиса
func (s *Service) Logger() *zap.Logger {
	return s.logger
}

// RegisterUser регистрирует пользователя при первом обращении и обновляет профиль
func (s *Service) RegisterUser(ctx context.Context, p models.Profile) (*models.User, error) {
	u, created, err := s.storage.FindOrCreateUser(ctx, p)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.RecordUserRegistration()
		s.logger.Info("New user registered",
			logger.ChatID(p.ChatID),
			zap.String("username", p.Username))
	}
	return u, nil
}

// GetUser получает пользователя по chat_id
func (s *Service) GetUser(ctx context.Context, chatID int64) (*models.User, error) {
	return s.storage.GetUser(ctx, chatID)
}

// UpdatePreferences сохраняет настройки и перестраивает расписание
func (s *Service) UpdatePreferences(ctx context.Context, chatID int64, upd models.UserUpdate) (*models.User, error) {
	u, err := s.storage.UpdateUser(ctx, chatID, upd)
	if err != nil {
		return nil, err
	}

	if err := s.checker.Refresh(ctx); err != nil {
		// настройки уже сохранены, расписание догонит при следующем самообновлении
		s.logger.Error("Failed to refresh schedules after preference change",
			logger.ChatID(chatID),
			zap.Error(err))
		metrics.RecordError("bot", errors.Code(err))
	}
	return u, nil
}

// DeleteUser удаляет пользователя и его триггеры
func (s *Service) DeleteUser(ctx context.Context, chatID int64) error {
	if err := s.storage.DeleteUser(ctx, chatID); err != nil {
		return err
	}
	s.logger.Info("User deleted", logger.ChatID(chatID))

	if err := s.checker.Refresh(ctx); err != nil {
		s.logger.Error("Failed to refresh schedules after user deletion",
			logger.ChatID(chatID),
			zap.Error(err))
		metrics.RecordError("bot", errors.Code(err))
	}
	return nil
}

// CheckBalance проверяет баланс по запросу пользователя
func (s *Service) CheckBalance(ctx context.Context, u *models.User) error {
	return s.checker.CheckNow(ctx, u)
}

// SendMessage отправляет HTML сообщение с клавиатурой
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup tgmodels.ReplyMarkup) error {
	return s.messenger.SendWithMarkup(ctx, chatID, text, replyMarkup)
}

// Reply отправляет HTML сообщение; ошибка только логируется
func (s *Service) Reply(ctx context.Context, chatID int64, text string) {
	if err := s.messenger.Send(ctx, chatID, text); err != nil {
		s.logger.Error("Failed to send message", logger.ChatID(chatID), zap.Error(err))
		metrics.RecordError("bot", errors.Code(err))
	}
}

// ReplyWithMarkup отправляет сообщение с клавиатурой; ошибка только логируется
func (s *Service) ReplyWithMarkup(ctx context.Context, chatID int64, text string, replyMarkup tgmodels.ReplyMarkup) {
	if err := s.SendMessage(ctx, chatID, text, replyMarkup); err != nil {
		s.logger.Error("Failed to send message", logger.ChatID(chatID), zap.Error(err))
		metrics.RecordError("bot", errors.Code(err))
	}
}

// SendError отправляет сообщение об ошибке пользователю
func (s *Service) SendError(ctx context.Context, chatID int64, message string) {
	s.Reply(ctx, chatID, "❌ "+message)
}

// AnswerCallbackQuery отвечает на callback query
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) {
	if err := s.messenger.AnswerCallbackQuery(ctx, callbackQueryID, text); err != nil {
		s.logger.Warn("Failed to answer callback query", zap.Error(err))
	}
}

// NotifyOperator отправляет сообщение в чат оператора
func (s *Service) NotifyOperator(ctx context.Context, text string) {
	if s.adminChatID == 0 {
		return
	}
	s.Reply(ctx, s.adminChatID, text)
}
