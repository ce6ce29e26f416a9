package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/region23/desco-balance-bot/pkg/errors"
)

// Значения по умолчанию для новых пользователей
const (
	DefaultThreshold = 100.0
)

// DefaultNotificationTimes возвращает время уведомлений по умолчанию
func DefaultNotificationTimes() []string {
	return []string{"08:00", "16:00"}
}

// User представляет пользователя бота и его настройки уведомлений
type User struct {
	ChatID            int64     `json:"chat_id" db:"chat_id"`
	Username          string    `json:"username" db:"username"`
	FirstName         string    `json:"first_name" db:"first_name"`
	LastName          string    `json:"last_name" db:"last_name"`
	AccountNo         string    `json:"account_no" db:"account_no"`
	MeterNo           string    `json:"meter_no" db:"meter_no"`
	Subscribed        bool      `json:"subscribed" db:"subscribed"`
	NotificationTimes []string  `json:"notification_times" db:"notification_times"`
	Threshold         float64   `json:"threshold" db:"threshold"`
	HourlyEnabled     bool      `json:"hourly_enabled" db:"hourly_enabled"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Profile содержит данные профиля Telegram, сохраняемые при авторегистрации
type Profile struct {
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
}

// NewUser создает пользователя с настройками по умолчанию
func NewUser(p Profile) *User {
	return &User{
		ChatID:            p.ChatID,
		Username:          p.Username,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		NotificationTimes: DefaultNotificationTimes(),
		Threshold:         DefaultThreshold,
	}
}

// HasAccount проверяет, указан ли хотя бы один идентификатор счетчика
func (u *User) HasAccount() bool {
	return u.AccountNo != "" || u.MeterNo != ""
}

// DisplayName возвращает имя для отчетов оператору
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = "Unknown"
	}
	if u.Username != "" {
		return fmt.Sprintf("%s (@%s)", name, u.Username)
	}
	return name
}

// UserUpdate описывает частичное обновление пользователя; nil означает "не менять"
type UserUpdate struct {
	AccountNo         *string
	MeterNo           *string
	Subscribed        *bool
	NotificationTimes []string
	Threshold         *float64
	HourlyEnabled     *bool
}

// Apply применяет обновление к пользователю.
// Порог <= 0 всегда выключает почасовые уведомления.
func (u *User) Apply(upd UserUpdate) {
	if upd.AccountNo != nil {
		u.AccountNo = strings.TrimSpace(*upd.AccountNo)
	}
	if upd.MeterNo != nil {
		u.MeterNo = strings.TrimSpace(*upd.MeterNo)
	}
	if upd.Subscribed != nil {
		u.Subscribed = *upd.Subscribed
	}
	if upd.NotificationTimes != nil {
		u.NotificationTimes = NormalizeTimes(upd.NotificationTimes)
	}
	if upd.Threshold != nil {
		u.Threshold = *upd.Threshold
	}
	if upd.HourlyEnabled != nil {
		u.HourlyEnabled = *upd.HourlyEnabled
	}
	if u.Threshold <= 0 {
		u.HourlyEnabled = false
	}
}

// ParseTime проверяет строку HH:MM и возвращает ее в каноническом виде
func ParseTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	// "8:00" тоже принимается и приводится к "08:00"
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", errors.ErrInvalidTime.WithError(err).WithContext(s)
	}
	return t.Format("15:04"), nil
}

// ParseTimes разбирает список времен через запятую
func ParseTimes(s string) ([]string, error) {
	var times []string
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseTime(part)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	if len(times) == 0 {
		return nil, errors.ErrInvalidTime.WithContext(s)
	}
	return NormalizeTimes(times), nil
}

// NormalizeTimes удаляет дубликаты и сортирует время уведомлений
func NormalizeTimes(times []string) []string {
	seen := make(map[string]struct{}, len(times))
	out := make([]string, 0, len(times))
	for _, t := range times {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
