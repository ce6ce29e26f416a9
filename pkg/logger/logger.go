package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New создает структурированный JSON логгер с заданным уровнем.
// Неизвестный уровень трактуется как info.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ParseLevel переводит строковый уровень в zapcore.Level, пустой или
// неизвестный уровень дает info
func ParseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// ChatID возвращает поле с идентификатором чата
func ChatID(id int64) zap.Field {
	return zap.Int64("chat_id", id)
}
