// Package driver доводит сессию до конца: выполняет главный workflow,
// затем, в зависимости от результата, success или error workflow,
// и сводит всё к Outcome с кодом выхода процесса.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const defaultDrainTimeout = 30 * time.Second

// Коды выхода процесса.
const (
	ExitOK         = 0
	ExitFailed     = 1
	ExitStructural = 2
)

// SessionRecorder — метрики уровня сессии (реализует telemetry.Metrics).
type SessionRecorder interface {
	SessionFinished(status domain.SessionStatus, d time.Duration)
}

// Config — конфигурация Driver.
type Config struct {
	// Main — главный workflow (обязателен).
	Main domain.WorkflowRef

	// Success — выполняется после успешного Main (nil → не настроен).
	Success *domain.WorkflowRef

	// Error — выполняется после неуспешного Main (nil → не настроен).
	Error *domain.WorkflowRef

	// Record — запись сессии (nil → создаётся по Env.Session).
	Record *domain.Session

	// Metrics — метрики сессии (nil → без метрик).
	Metrics SessionRecorder

	// DrainTimeout — сколько ждать задачи, брошенные при fail-fast.
	// По умолчанию 30 секунд; отрицательное значение — не ждать.
	DrainTimeout time.Duration
}

// FromApp собирает Config из конфигурации приложения.
func FromApp(app *config.App) Config {
	return Config{
		Main:    app.MainWorkflow,
		Success: app.SuccessWorkflow,
		Error:   app.ErrorWorkflow,
	}
}

// Outcome — итог сессии.
type Outcome struct {
	// Success — результат главного workflow.
	Success bool

	// Message — сообщение результата главного workflow.
	Message string

	// Duration — длительность сессии.
	Duration time.Duration

	// Err — структурная ошибка (конфигурация, зависимости, фабрика).
	Err error

	// FollowUp — результат success/error workflow (nil, если не выполнялся).
	FollowUp *domain.Result
}

// ExitCode возвращает код выхода процесса:
// 0 — успех, 1 — workflow завершился неуспешно, 2 — структурная ошибка.
func (o *Outcome) ExitCode() int {
	switch {
	case o.Err != nil:
		return ExitStructural
	case o.Success:
		return ExitOK
	default:
		return ExitFailed
	}
}

// Result возвращает итог как domain.Result.
func (o *Outcome) Result() domain.Result {
	if o.Success {
		return domain.Success(o.Message)
	}
	return domain.Failure(o.Message)
}

// Driver выполняет одну сессию.
type Driver struct {
	env      *engine.Env
	cfg      Config
	drainers []engine.Drainer
}

// New создаёт Driver.
func New(env *engine.Env, cfg Config) *Driver {
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.Record == nil {
		cfg.Record = domain.NewSession(env.Session, "", "")
	}
	return &Driver{env: env, cfg: cfg}
}

// Record возвращает запись сессии.
func (d *Driver) Record() *domain.Session {
	return d.cfg.Record
}

// Validate статически проверяет главный и дополнительные workflow:
// строит графы, ничего не запуская.
func (d *Driver) Validate(ctx context.Context) error {
	if err := d.validate(ctx, "main", &d.cfg.Main); err != nil {
		return err
	}
	for _, f := range []struct {
		kind string
		ref  *domain.WorkflowRef
	}{
		{"success", d.cfg.Success},
		{"error", d.cfg.Error},
	} {
		if err := d.validate(ctx, f.kind, f.ref); err != nil && !errors.Is(err, engine.ErrNotConfigured) {
			return err
		}
	}
	return nil
}

func (d *Driver) validate(ctx context.Context, kind string, ref *domain.WorkflowRef) error {
	runner, err := d.create(kind, ref)
	if err != nil {
		return err
	}
	if v, ok := runner.(engine.Validator); ok {
		return v.Validate(ctx)
	}
	return nil
}

// create создаёт runner workflow. Незаданная ссылка → ErrNotConfigured.
func (d *Driver) create(kind string, ref *domain.WorkflowRef) (engine.Runner, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%s workflow: %w", kind, engine.ErrNotConfigured)
	}
	if d.env.Factories == nil {
		return nil, fmt.Errorf("%s workflow: %w: no registry", kind, engine.ErrFactoryNotFound)
	}
	return d.env.Factories.Create(d.env, ref.Factory, ref.Config)
}

// Run выполняет сессию.
//
// Структурная ошибка главного workflow не запускает error workflow:
// конфигурация сломана, и дополнительный workflow, скорее всего, тоже.
func (d *Driver) Run(ctx context.Context) *Outcome {
	rec := d.cfg.Record
	logger, reporter := d.logger(), d.env.Reporter
	if reporter == nil {
		reporter = logger
	}

	timer := telemetry.NewTimer()
	reporter.Info("session started", "session", rec.Name)
	d.emit(ctx, domain.EventSessionStarted, nil)

	out := &Outcome{}
	res, err := d.execute(ctx, "main", &d.cfg.Main)
	switch {
	case err != nil:
		out.Err = err
		out.Message = err.Error()
		logger.Error("main workflow aborted", "error", err)
		reporter.Error("failed to execute the workflow", "error", err)
	default:
		out.Success = res.IsSuccess()
		out.Message = res.Message
		out.FollowUp = d.followUp(ctx, logger, reporter, out.Success)
	}

	d.drain(logger)

	out.Duration = timer.Stop()
	rec.Finish(out.Result())
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.SessionFinished(rec.Status, out.Duration)
	}

	res = out.Result()
	d.emit(ctx, domain.EventSessionFinished, &res)
	reporter.Info("session finished",
		"session", rec.Name,
		"status", rec.Status,
		"duration", telemetry.FormatDuration(out.Duration),
	)
	return out
}

// followUp выполняет success или error workflow.
// Его результат не меняет итог сессии, только попадает в журнал.
func (d *Driver) followUp(ctx context.Context, logger, reporter *slog.Logger, success bool) *domain.Result {
	kind, ref := "error", d.cfg.Error
	if success {
		kind, ref = "success", d.cfg.Success
	}

	res, err := d.execute(ctx, kind, ref)
	switch {
	case errors.Is(err, engine.ErrNotConfigured):
		logger.Info("follow-up workflow not configured", "kind", kind)
		return nil
	case err != nil:
		logger.Error("follow-up workflow aborted", "kind", kind, "error", err)
		reporter.Error("follow-up workflow aborted", "kind", kind, "error", err)
		res = domain.Failure(err.Error())
	case !res.IsSuccess():
		reporter.Warn("follow-up workflow failed", "kind", kind, "message", res.Message)
	default:
		logger.Info("follow-up workflow succeeded", "kind", kind)
	}
	return &res
}

// execute создаёт и выполняет workflow. Ошибка — только структурная
// или ErrNotConfigured; неуспех выполнения возвращается в Result.
func (d *Driver) execute(ctx context.Context, kind string, ref *domain.WorkflowRef) (domain.Result, error) {
	runner, err := d.create(kind, ref)
	if err != nil {
		return domain.Result{}, err
	}
	d.track(runner)

	if err := runner.Execute(ctx); err != nil {
		return domain.Result{}, err
	}

	res, ok := runner.Result()
	if !ok {
		return domain.Failure(runner.IDName() + ": no result"), nil
	}
	return res, nil
}

func (d *Driver) track(r engine.Runner) {
	if dr, ok := r.(engine.Drainer); ok {
		d.drainers = append(d.drainers, dr)
	}
}

// drain ждёт задачи, брошенные workflow при fail-fast.
func (d *Driver) drain(logger *slog.Logger) {
	if d.cfg.DrainTimeout < 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()

	for _, dr := range d.drainers {
		if err := dr.Drain(ctx); err != nil {
			logger.Warn("abandoned runners still running", "error", err)
			return
		}
	}
}

func (d *Driver) emit(ctx context.Context, t domain.EventType, res *domain.Result) {
	if d.env.Events == nil {
		return
	}
	ev := domain.NewEvent(t)
	ev.Session = d.cfg.Record.Name
	ev.Result = res
	if d.cfg.Record.FinishedAt != nil {
		ev.Duration = d.cfg.Record.Duration().Seconds()
	}
	if err := d.env.Events.Emit(context.WithoutCancel(ctx), ev); err != nil {
		d.logger().Warn("event not delivered", "type", t, "error", err)
	}
}

func (d *Driver) logger() *slog.Logger {
	if d.env.Logger != nil {
		return d.env.Logger
	}
	return slog.Default()
}
