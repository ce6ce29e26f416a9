package cron

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// zapLogger адаптирует zap к интерфейсу cron.Logger
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewLogger возвращает cron.Logger, пишущий в zap.
// Info-сообщения cron слишком частые, поэтому идут на уровне debug.
func NewLogger(l *zap.Logger) cron.Logger {
	return zapLogger{s: l.Named("cron").Sugar()}
}

func (z zapLogger) Info(msg string, keysAndValues ...interface{}) {
	z.s.Debugw(msg, keysAndValues...)
}

func (z zapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
