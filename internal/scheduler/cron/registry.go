package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/region23/desco-balance-bot/internal/scheduler"
	"github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/errors"
	"github.com/region23/desco-balance-bot/pkg/metrics"
)

// Config настройки фиксированных задач
type Config struct {
	Location    *time.Location
	SweepSpec   string
	RefreshSpec string
}

// Registry реализует scheduler.TriggerRegistry поверх robfig/cron
type Registry struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	runner  scheduler.Runner
	ctx     context.Context
	buckets map[string]cron.EntryID
	fixed   []cron.EntryID
	stopped bool

	// bucketSpec строит cron выражение для ключа HH:MM
	bucketSpec func(hhmm string) (string, error)
}

var _ scheduler.TriggerRegistry = (*Registry)(nil)

// New создает реестр триггеров
func New(cfg Config, logger *zap.Logger) *Registry {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Registry{
		cfg:        cfg,
		logger:     logger,
		buckets:    make(map[string]cron.EntryID),
		bucketSpec: dailySpec,
	}
}

// Start создает планировщик и регистрирует почасовую проверку и самообновление.
// Эти задачи не затрагиваются Rebuild.
func (r *Registry) Start(ctx context.Context, runner scheduler.Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return errors.ErrSchedulerStopped
	}
	if r.cron != nil {
		return fmt.Errorf("registry already started")
	}

	cl := NewLogger(r.logger)
	c := cron.New(
		cron.WithLocation(r.cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	// задачи не должны прерываться при отмене родительского контекста
	jobCtx := context.WithoutCancel(ctx)

	sweepID, err := c.AddFunc(r.cfg.SweepSpec, func() {
		r.logger.Info("Running hourly low balance sweep")
		runner.RunHourlySweep(jobCtx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule hourly sweep: %w", err)
	}

	refreshID, err := c.AddFunc(r.cfg.RefreshSpec, func() {
		r.logger.Info("Refreshing notification schedules")
		if err := runner.Refresh(jobCtx); err != nil {
			r.logger.Error("Scheduled refresh failed", zap.Error(err))
			metrics.RecordError("scheduler", errors.Code(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	r.cron = c
	r.runner = runner
	r.ctx = jobCtx
	r.fixed = []cron.EntryID{sweepID, refreshID}

	c.Start()
	r.logger.Info("Scheduler started",
		zap.String("timezone", r.cfg.Location.String()),
		zap.String("sweep_spec", r.cfg.SweepSpec),
		zap.String("refresh_spec", r.cfg.RefreshSpec))
	return nil
}

// Rebuild удаляет все триггеры по времени и создает заново по одному на ключ.
// Уже выполняющиеся задачи завершаются, удаление отменяет только будущие запуски.
func (r *Registry) Rebuild(usersByTime map[string][]int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron == nil || r.stopped {
		r.logger.Warn("Rebuild skipped: scheduler is not running")
		return 0
	}

	for key, id := range r.buckets {
		r.cron.Remove(id)
		delete(r.buckets, key)
	}

	for key, users := range usersByTime {
		spec, err := r.bucketSpec(key)
		if err != nil {
			r.logger.Warn("Skipping invalid notification time",
				zap.String("time", key),
				zap.Error(err))
			continue
		}

		hhmm := key
		id, err := r.cron.AddFunc(spec, func() {
			r.logger.Info("Running scheduled notifications", zap.String("time", hhmm))
			r.runner.RunTimeBucket(r.ctx, hhmm)
		})
		if err != nil {
			r.logger.Error("Failed to schedule notification time",
				zap.String("time", key),
				zap.Error(err))
			continue
		}

		r.buckets[key] = id
		r.logger.Debug("Scheduled notifications",
			zap.String("time", key),
			zap.Int("users", len(users)))
	}

	metrics.RecordRebuild(len(r.buckets))
	r.logger.Info("Notification schedule rebuilt", zap.Int("buckets", len(r.buckets)))
	return len(r.buckets)
}

// Shutdown останавливает планирование. Новые запуски после возврата не начнутся,
// контекст завершится по окончании уже выполняющихся задач.
func (r *Registry) Shutdown() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	r.buckets = make(map[string]cron.EntryID)
	r.fixed = nil
	metrics.ScheduledTimeBuckets.Set(0)

	if r.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	r.logger.Info("Stopping scheduler")
	return r.cron.Stop()
}

// Buckets возвращает отсортированные ключи активных триггеров
func (r *Registry) Buckets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.buckets))
	for k := range r.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FixedJobs возвращает количество фиксированных задач
func (r *Registry) FixedJobs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fixed)
}

// entries возвращает количество задач в cron, используется в тестах
func (r *Registry) entries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return 0
	}
	return len(r.cron.Entries())
}

// dailySpec переводит "HH:MM" в "MM HH * * *"
func dailySpec(hhmm string) (string, error) {
	canonical, err := models.ParseTime(hhmm)
	if err != nil {
		return "", err
	}
	if canonical != hhmm {
		return "", errors.ErrInvalidTime.WithContext(hhmm)
	}
	t, _ := time.Parse("15:04", canonical)
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}
