package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/errors"
)

// SQLiteStorage реализует интерфейс Storage для SQLite
type SQLiteStorage struct {
	db *sql.DB
}

const userColumns = `chat_id, username, first_name, last_name, account_no, meter_no,
	subscribed, notification_times, threshold, hourly_enabled, created_at, updated_at`

// New создает новое подключение к SQLite базе данных
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite поддерживает только одно write-подключение
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return storage, nil
}

// migrate выполняет миграции базы данных
func (s *SQLiteStorage) migrate() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			chat_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			account_no TEXT NOT NULL DEFAULT '',
			meter_no TEXT NOT NULL DEFAULT '',
			subscribed INTEGER NOT NULL DEFAULT 0,
			notification_times TEXT NOT NULL DEFAULT '08:00,16:00',
			threshold REAL NOT NULL DEFAULT 100,
			hourly_enabled INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_subscribed ON users(subscribed)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close закрывает подключение к базе данных
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет подключение к базе данных
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var times string
	err := row.Scan(
		&u.ChatID, &u.Username, &u.FirstName, &u.LastName, &u.AccountNo, &u.MeterNo,
		&u.Subscribed, &times, &u.Threshold, &u.HourlyEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.NotificationTimes = splitTimes(times)
	return u, nil
}

func splitTimes(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

func (s *SQLiteStorage) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindOrCreateUser возвращает пользователя или регистрирует нового.
// Профиль существующего пользователя обновляется, настройки не трогаются.
func (s *SQLiteStorage) FindOrCreateUser(ctx context.Context, p models.Profile) (*models.User, bool, error) {
	now := time.Now().UTC()
	u := models.NewUser(p)

	res, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO NOTHING`,
		u.ChatID, u.Username, u.FirstName, u.LastName, u.AccountNo, u.MeterNo,
		u.Subscribed, strings.Join(u.NotificationTimes, ","), u.Threshold, u.HourlyEnabled, now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to register user: %w", err)
	}

	created, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	if created == 0 {
		_, err = s.db.ExecContext(ctx,
			`UPDATE users SET username = ?, first_name = ?, last_name = ? WHERE chat_id = ?`,
			p.Username, p.FirstName, p.LastName, p.ChatID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to refresh user profile: %w", err)
		}
	}

	user, err := s.GetUser(ctx, p.ChatID)
	if err != nil {
		return nil, false, err
	}
	return user, created > 0, nil
}

// GetUser получает пользователя по chat_id
func (s *SQLiteStorage) GetUser(ctx context.Context, chatID int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	u, err := scanUser(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrUserNotFound.WithContext(chatID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UpdateUser применяет частичное обновление в транзакции и возвращает результат
func (s *SQLiteStorage) UpdateUser(ctx context.Context, chatID int64, upd models.UserUpdate) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	u, err := scanUser(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrUserNotFound.WithContext(chatID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	u.Apply(upd)
	u.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `UPDATE users SET
			account_no = ?, meter_no = ?, subscribed = ?, notification_times = ?,
			threshold = ?, hourly_enabled = ?, updated_at = ?
		WHERE chat_id = ?`,
		u.AccountNo, u.MeterNo, u.Subscribed, strings.Join(u.NotificationTimes, ","),
		u.Threshold, u.HourlyEnabled, u.UpdatedAt, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user update: %w", err)
	}
	return u, nil
}

// GetSubscribedUsers возвращает всех подписанных пользователей
func (s *SQLiteStorage) GetSubscribedUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.queryUsers(ctx, `SELECT `+userColumns+` FROM users WHERE subscribed = 1 ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscribed users: %w", err)
	}
	return users, nil
}

// GetUsersByNotificationTime возвращает подписанных пользователей с указанным временем HH:MM
func (s *SQLiteStorage) GetUsersByNotificationTime(ctx context.Context, hhmm string) ([]*models.User, error) {
	users, err := s.queryUsers(ctx, `SELECT `+userColumns+` FROM users
		WHERE subscribed = 1 AND (',' || notification_times || ',') LIKE '%,' || ? || ',%'
		ORDER BY chat_id`, hhmm)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by notification time: %w", err)
	}
	return users, nil
}

// GetUsersWithHourlyNotifications возвращает подписанных пользователей с включенными почасовыми уведомлениями
func (s *SQLiteStorage) GetUsersWithHourlyNotifications(ctx context.Context) ([]*models.User, error) {
	users, err := s.queryUsers(ctx, `SELECT `+userColumns+` FROM users
		WHERE subscribed = 1 AND hourly_enabled = 1 ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get hourly users: %w", err)
	}
	return users, nil
}

// DeleteUser удаляет пользователя
func (s *SQLiteStorage) DeleteUser(ctx context.Context, chatID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrUserNotFound.WithContext(chatID)
	}
	return nil
}
