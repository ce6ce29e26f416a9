package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/alert"
	"github.com/region23/desco-balance-bot/internal/balance"
	"github.com/region23/desco-balance-bot/internal/scheduler"
	"github.com/region23/desco-balance-bot/internal/storage"
	"github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/errors"
	"github.com/region23/desco-balance-bot/pkg/logger"
	"github.com/region23/desco-balance-bot/pkg/metrics"
)

// Messenger отправляет HTML сообщения в чат
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Типы уведомлений для метрик
const (
	typeScheduled = "scheduled"
	typeHourly    = "hourly"
	typeLowAlert  = "low_balance"
	typeOnDemand  = "on_demand"
	typeError     = "error"
	typeOperator  = "operator"
)

// Config настройки движка уведомлений
type Config struct {
	AdminChatID int64
	// Pacing пауза между пользователями в одном пакете, 0 отключает паузу
	Pacing time.Duration
}

// Engine связывает получение баланса, пороговую политику и отправку сообщений.
// Состояния между вызовами не хранит: пользователи читаются заново при каждом запуске.
type Engine struct {
	store     storage.UserRepository
	fetcher   balance.Fetcher
	messenger Messenger
	registry  scheduler.Rebuilder
	cfg       Config
	logger    *zap.Logger

	// refreshMu держит чтение подписок и Rebuild одной операцией
	refreshMu sync.Mutex
}

var _ scheduler.Runner = (*Engine)(nil)

// NewEngine создает движок уведомлений
func NewEngine(
	store storage.UserRepository,
	fetcher balance.Fetcher,
	messenger Messenger,
	registry scheduler.Rebuilder,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:     store,
		fetcher:   fetcher,
		messenger: messenger,
		registry:  registry,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunTimeBucket обрабатывает подписчиков со временем уведомления hhmm.
// Пользователи перечитываются из хранилища в момент запуска.
func (e *Engine) RunTimeBucket(ctx context.Context, hhmm string) {
	log := e.batchLogger("time_bucket").With(zap.String("time", hhmm))

	users, err := e.store.GetUsersByNotificationTime(ctx, hhmm)
	if err != nil {
		log.Error("Failed to load users for notification time", zap.Error(err))
		metrics.RecordError("engine", errors.Code(err))
		return
	}

	e.runBatch(ctx, log, "time_bucket", users, alert.ModeNormal)
}

// RunHourlySweep проверяет подписчиков с включенными почасовыми уведомлениями
func (e *Engine) RunHourlySweep(ctx context.Context) {
	log := e.batchLogger("hourly_sweep")

	users, err := e.store.GetUsersWithHourlyNotifications(ctx)
	if err != nil {
		log.Error("Failed to load users for hourly sweep", zap.Error(err))
		metrics.RecordError("engine", errors.Code(err))
		return
	}

	e.runBatch(ctx, log, "hourly_sweep", users, alert.ModeHourly)
}

// Refresh перестраивает триггеры по текущим подпискам.
// Параллельные вызовы выполняются по очереди, последним применяется самый свежий снимок.
func (e *Engine) Refresh(ctx context.Context) error {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	users, err := e.store.GetSubscribedUsers(ctx)
	if err != nil {
		metrics.RecordError("engine", errors.Code(err))
		return err
	}

	usersByTime := BucketUsers(users)
	n := e.registry.Rebuild(usersByTime)
	e.logger.Info("Notification schedules refreshed",
		zap.Int("subscribers", len(users)),
		zap.Int("buckets", n))
	return nil
}

// CheckNow проверяет баланс по запросу пользователя.
// При ошибке получения пользователь получает извинение, оператор отчет.
func (e *Engine) CheckNow(ctx context.Context, u *models.User) error {
	if !u.HasAccount() {
		return errors.ErrIdentifierRequired
	}

	log := e.logger.With(logger.ChatID(u.ChatID), zap.String("kind", "on_demand"))

	res := e.fetcher.Fetch(ctx, u.AccountNo, u.MeterNo)
	if !res.OK() {
		e.reportFailure(ctx, log, u, res)
		return res.Err
	}

	decision := alert.Decide(res.Reading.Balance, u.Threshold, alert.ModeNormal)
	if err := e.send(ctx, log, u.ChatID, typeOnDemand, alert.Render(res.Reading, alert.ModeNormal, alert.LabelOnDemand)); err != nil {
		return err
	}
	if decision == alert.NotifyAndEscalate {
		return e.send(ctx, log, u.ChatID, typeLowAlert, alert.LowBalanceWarning(res.Reading.Balance, u.Threshold))
	}
	return nil
}

// BucketUsers группирует пользователей с идентификатором счета по времени уведомления
func BucketUsers(users []*models.User) map[string][]int64 {
	usersByTime := make(map[string][]int64)
	for _, u := range users {
		if !u.HasAccount() {
			continue
		}
		for _, t := range u.NotificationTimes {
			usersByTime[t] = append(usersByTime[t], u.ChatID)
		}
	}
	return usersByTime
}

func (e *Engine) batchLogger(kind string) *zap.Logger {
	return e.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("kind", kind))
}

// runBatch обрабатывает пользователей строго последовательно.
// Между пользователями выдерживается пауза Pacing после завершения отправки.
// Ошибка одного пользователя не прерывает пакет.
func (e *Engine) runBatch(ctx context.Context, log *zap.Logger, kind string, users []*models.User, mode alert.Mode) {
	start := time.Now()
	defer func() {
		metrics.RecordBatch(kind, time.Since(start).Seconds())
	}()

	log.Info("Batch started", zap.Int("users", len(users)))
	processed := 0
	for _, u := range users {
		if !u.HasAccount() {
			log.Warn("User has no account details, skipping", logger.ChatID(u.ChatID))
			continue
		}

		if processed > 0 {
			if err := pause(ctx, e.cfg.Pacing); err != nil {
				log.Warn("Batch interrupted", zap.Error(err))
				return
			}
		}

		e.checkUser(ctx, log.With(logger.ChatID(u.ChatID)), u, mode)
		processed++
	}
	log.Info("Batch finished",
		zap.Int("processed", processed),
		zap.Duration("duration", time.Since(start)))
}

// pause ждет d или отмены ctx
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) checkUser(ctx context.Context, log *zap.Logger, u *models.User, mode alert.Mode) {
	res := e.fetcher.Fetch(ctx, u.AccountNo, u.MeterNo)
	if !res.OK() {
		e.reportFailure(ctx, log, u, res)
		return
	}

	msgType := typeScheduled
	if mode == alert.ModeHourly {
		msgType = typeHourly
	}

	decision := alert.Decide(res.Reading.Balance, u.Threshold, mode)
	log.Debug("Threshold decision",
		zap.Float64("balance", res.Reading.Balance),
		zap.Float64("threshold", u.Threshold),
		zap.Stringer("decision", decision))

	switch decision {
	case alert.Suppress:
		metrics.RecordNotification(msgType, "suppressed")
	case alert.Notify:
		_ = e.send(ctx, log, u.ChatID, msgType, alert.Render(res.Reading, mode, ""))
	case alert.NotifyAndEscalate:
		_ = e.send(ctx, log, u.ChatID, msgType, alert.Render(res.Reading, mode, ""))
		_ = e.send(ctx, log, u.ChatID, typeLowAlert, alert.LowBalanceWarning(res.Reading.Balance, u.Threshold))
	}
}

// reportFailure извещает пользователя и оператора о неудачном запросе баланса
func (e *Engine) reportFailure(ctx context.Context, log *zap.Logger, u *models.User, res balance.Result) {
	log.Warn("Balance fetch failed",
		zap.Error(res.Err),
		zap.Strings("attempted_urls", res.AttemptedURLs))
	metrics.RecordError("balance", errors.Code(res.Err))

	_ = e.send(ctx, log, u.ChatID, typeError, alert.FetchError(res.Err))
	if e.cfg.AdminChatID != 0 {
		_ = e.send(ctx, log, e.cfg.AdminChatID, typeOperator, alert.OperatorReport(u, res))
	}
}

// send отправляет сообщение; ошибка логируется и учитывается в метриках
func (e *Engine) send(ctx context.Context, log *zap.Logger, chatID int64, msgType, text string) error {
	if err := e.messenger.Send(ctx, chatID, text); err != nil {
		log.Error("Failed to send message",
			zap.String("type", msgType),
			zap.Int64("to", chatID),
			zap.Error(err))
		metrics.RecordNotification(msgType, "error")
		return errors.ErrSendFailed.WithError(err).WithContext(chatID)
	}
	metrics.RecordNotification(msgType, "success")
	return nil
}
