package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Источники запуска сессии.
const (
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// ErrNoRunFunc — не задана функция запуска сессии.
var ErrNoRunFunc = errors.New("scheduler: run func is required")

// RunFunc выполняет одну сессию до конца.
type RunFunc func(ctx context.Context, trigger string)

// Config — конфигурация Scheduler.
type Config struct {
	// Cron — cron-выражение. Пусто → только ручные запуски (Trigger).
	Cron string

	// Location — часовой пояс расписания (nil → UTC).
	Location *time.Location

	// Run — запуск сессии (обязателен).
	Run RunFunc

	Logger *slog.Logger
}

// Scheduler запускает сессии по расписанию и по запросу.
//
// Одновременно выполняется не больше одной сессии: срабатывание,
// пришедшее во время работы предыдущей сессии, пропускается.
// Состояние не сохраняется: пропущенные за время простоя запуски
// не догоняются.
type Scheduler struct {
	schedule cron.Schedule
	loc      *time.Location
	run      RunFunc
	logger   *slog.Logger
	now      func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup

	// mu защищает baseCtx, stopped и wg.Add.
	mu      sync.Mutex
	baseCtx context.Context
	stopped bool
}

// New создаёт Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Run == nil {
		return nil, ErrNoRunFunc
	}
	s := &Scheduler{
		loc:     cfg.Location,
		run:     cfg.Run,
		logger:  cfg.Logger,
		now:     time.Now,
		baseCtx: context.Background(),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg.Cron != "" {
		schedule, err := ParseCron(cfg.Cron)
		if err != nil {
			return nil, err
		}
		s.schedule = schedule
	}
	return s, nil
}

// Next возвращает время следующего запуска по расписанию.
// Без расписания — нулевое время.
func (s *Scheduler) Next() time.Time {
	if s.schedule == nil {
		return time.Time{}
	}
	return NextRun(s.schedule, s.loc, s.now())
}

// IsRunning возвращает true, пока выполняется сессия.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Trigger запускает сессию в фоне. Возвращает false, если сессия
// уже выполняется или Run уже завершился.
func (s *Scheduler) Trigger(trigger string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.baseCtx.Err() != nil {
		s.logger.Warn("scheduler stopped, trigger rejected", "trigger", trigger)
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("session already running, trigger skipped", "trigger", trigger)
		return false
	}

	ctx := s.baseCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.run(ctx, trigger)
	}()
	return true
}

// Run срабатывает по расписанию, пока не отменён ctx, затем ждёт
// выполняющуюся сессию. Отмена ctx передаётся и в сессию.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.wg.Wait()
	}()

	if s.schedule == nil {
		s.logger.Info("no schedule configured, waiting for manual triggers")
		<-ctx.Done()
		return nil
	}

	for {
		next := s.Next()
		s.logger.Info("next scheduled session", "at", next.In(s.loc).Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.Trigger(TriggerSchedule)
		}
	}
}
