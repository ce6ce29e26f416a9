package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики бота
var (
	// Метрики запросов к боту
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desco_bot_updates_total",
			Help: "Количество обработанных обновлений Telegram",
		},
		[]string{"handler"},
	)

	UserRegistrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desco_bot_user_registrations_total",
			Help: "Общее количество регистраций пользователей",
		},
	)

	// Метрики запросов баланса
	BalanceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desco_bot_balance_fetch_attempts_total",
			Help: "Попытки запроса баланса по эндпоинтам",
		},
		[]string{"endpoint", "status"},
	)

	BalanceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desco_bot_balance_fetch_duration_seconds",
			Help:    "Время запроса баланса в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Метрики уведомлений
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desco_bot_notifications_sent_total",
			Help: "Общее количество отправленных уведомлений",
		},
		[]string{"type", "status"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desco_bot_batch_duration_seconds",
			Help:    "Длительность пакетной рассылки",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)

	// Метрики планировщика
	ScheduledTimeBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desco_bot_scheduled_time_buckets",
			Help: "Количество активных триггеров по времени суток",
		},
	)

	ScheduleRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desco_bot_schedule_rebuilds_total",
			Help: "Количество перестроений расписания",
		},
	)

	// Метрики ошибок
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desco_bot_errors_total",
			Help: "Общее количество ошибок",
		},
		[]string{"component", "error_type"},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desco_bot_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desco_bot_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Системные метрики, обновляются при health check
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desco_bot_memory_alloc_bytes",
			Help: "Объем выделенной памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desco_bot_goroutines",
			Help: "Количество горутин",
		},
	)
)

// RecordUpdate записывает метрику обработки обновления
func RecordUpdate(handler string) {
	UpdatesTotal.WithLabelValues(handler).Inc()
}

// RecordUserRegistration записывает метрику регистрации пользователя
func RecordUserRegistration() {
	UserRegistrations.Inc()
}

// RecordBalanceFetch записывает результат попытки запроса к эндпоинту
func RecordBalanceFetch(endpoint, status string, seconds float64) {
	BalanceFetches.WithLabelValues(endpoint, status).Inc()
	BalanceFetchDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordNotification записывает метрику отправки уведомления
func RecordNotification(notificationType, status string) {
	NotificationsSent.WithLabelValues(notificationType, status).Inc()
}

// RecordBatch записывает длительность пакетной рассылки
func RecordBatch(kind string, seconds float64) {
	BatchDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordRebuild записывает перестроение расписания
func RecordRebuild(buckets int) {
	ScheduleRebuilds.Inc()
	ScheduledTimeBuckets.Set(float64(buckets))
}

// RecordError записывает метрику ошибки
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}
