package storage

import (
	"context"

	"github.com/region23/desco-balance-bot/internal/storage/models"
)

// UserRepository определяет интерфейс для работы с пользователями
type UserRepository interface {
	// FindOrCreateUser возвращает пользователя, создавая его с настройками по умолчанию.
	// created == true, если пользователь только что зарегистрирован.
	FindOrCreateUser(ctx context.Context, p models.Profile) (user *models.User, created bool, err error)
	GetUser(ctx context.Context, chatID int64) (*models.User, error)
	UpdateUser(ctx context.Context, chatID int64, upd models.UserUpdate) (*models.User, error)
	GetSubscribedUsers(ctx context.Context) ([]*models.User, error)
	GetUsersByNotificationTime(ctx context.Context, hhmm string) ([]*models.User, error)
	GetUsersWithHourlyNotifications(ctx context.Context) ([]*models.User, error)
	DeleteUser(ctx context.Context, chatID int64) error
}

// Storage объединяет репозиторий и управление подключением
type Storage interface {
	UserRepository
	Close() error
	Ping(ctx context.Context) error
}
