package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/region23/desco-balance-bot/pkg/errors"
)

// Режимы получения обновлений Telegram
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config содержит всю конфигурацию приложения.
// Вложенные структуры читаются с префиксом имени поля: TELEGRAM_TOKEN, SCHEDULE_TIMEZONE и т.д.
type Config struct {
	Telegram TelegramConfig
	Server   ServerConfig
	Database DatabaseConfig
	Balance  BalanceConfig
	Schedule ScheduleConfig
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	Token         string
	AdminChatID   int64  `split_words:"true"`
	Mode          string `default:"polling"`
	WebhookURL    string `split_words:"true"`
	WebhookSecret string `split_words:"true"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string        `default:"10000"`
	ReadTimeout  time.Duration `split_words:"true" default:"30s"`
	WriteTimeout time.Duration `split_words:"true" default:"30s"`
	IdleTimeout  time.Duration `split_words:"true" default:"120s"`
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Path string `default:"desco.db"`
}

// BalanceConfig содержит настройки источника баланса
type BalanceConfig struct {
	Endpoints   []string      `default:"https://prepaid.desco.org.bd/api/unified/customer/getBalance,https://prepaid.desco.org.bd/api/tkdes/customer/getBalance"`
	Timeout     time.Duration `default:"10s"`
	InsecureTLS bool          `split_words:"true" default:"false"`
}

// ScheduleConfig содержит настройки расписания
type ScheduleConfig struct {
	Timezone    string        `default:"Asia/Dhaka"`
	Pacing      time.Duration `default:"1s"`
	SweepSpec   string        `split_words:"true" default:"0 * * * *"`
	RefreshSpec string        `split_words:"true" default:"0 * * * *"`
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.ErrConfigurationInvalid.WithError(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.ErrConfigurationInvalid.WithError(fmt.Errorf(format, args...))
	}

	if c.Telegram.Token == "" {
		return invalid("TELEGRAM_TOKEN is required")
	}
	if c.Telegram.AdminChatID == 0 {
		return invalid("TELEGRAM_ADMIN_CHAT_ID is required")
	}

	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return invalid("TELEGRAM_WEBHOOK_URL is required in webhook mode")
		}
	default:
		return invalid("TELEGRAM_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, c.Telegram.Mode)
	}

	if len(c.Balance.Endpoints) == 0 {
		return invalid("BALANCE_ENDPOINTS must list at least one endpoint")
	}
	for _, e := range c.Balance.Endpoints {
		u, err := url.Parse(e)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("invalid balance endpoint %q", e)
		}
	}
	if c.Balance.Timeout <= 0 {
		return invalid("BALANCE_TIMEOUT must be positive")
	}

	if _, err := c.Location(); err != nil {
		return invalid("invalid SCHEDULE_TIMEZONE %q: %v", c.Schedule.Timezone, err)
	}
	if c.Schedule.Pacing < 0 {
		return invalid("SCHEDULE_PACING must be non-negative")
	}
	for _, spec := range []string{c.Schedule.SweepSpec, c.Schedule.RefreshSpec} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return invalid("invalid cron spec %q: %v", spec, err)
		}
	}

	return nil
}

// Location возвращает часовой пояс расписания
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Schedule.Timezone)
}
