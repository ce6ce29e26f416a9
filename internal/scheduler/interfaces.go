package scheduler

import (
	"context"
)

// Runner выполняет работу, которую запускают триггеры расписания
type Runner interface {
	// RunTimeBucket обрабатывает пользователей с временем уведомления hhmm
	RunTimeBucket(ctx context.Context, hhmm string)

	// RunHourlySweep выполняет почасовую проверку низкого баланса
	RunHourlySweep(ctx context.Context)

	// Refresh перестраивает триггеры по текущим настройкам пользователей
	Refresh(ctx context.Context) error
}

// Rebuilder перестраивает набор триггеров по времени суток
type Rebuilder interface {
	// Rebuild удаляет все триггеры по времени и создает по одному на каждый ключ HH:MM.
	// Возвращает количество активных триггеров.
	Rebuild(usersByTime map[string][]int64) int
}

// TriggerRegistry владеет всеми триггерами расписания
type TriggerRegistry interface {
	Rebuilder

	// Start запускает планировщик и фиксированные задачи (почасовая проверка и самообновление)
	Start(ctx context.Context, runner Runner) error

	// Shutdown прекращает планирование. Возвращенный контекст завершается,
	// когда выполняющиеся задачи закончат работу.
	Shutdown() context.Context

	// Buckets возвращает отсортированные ключи активных триггеров
	Buckets() []string

	// FixedJobs возвращает количество фиксированных задач
	FixedJobs() int
}
