// Package launcher собирает сессию целиком: реестр фабрик, метрики,
// журнал и публикацию событий, рабочую папку и driver.
//
// Используется всеми точками входа: `conveyor run`, scheduler
// и POST /api/v1/sessions.
package launcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/driver"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/session"
	"github.com/shaiso/Conveyor/internal/steps"
)

// TriggerCLI — запуск из `conveyor run`. Остальные источники
// объявлены в scheduler.
const TriggerCLI = "cli"

// validateSession — имя сессии при статической проверке.
const validateSession = "validate"

// Metrics — метрики runner'ов и сессий (реализует telemetry.Metrics).
type Metrics interface {
	engine.Recorder
	driver.SessionRecorder
}

// Options — зависимости Launcher. Все поля необязательны.
type Options struct {
	// Factories — реестр фабрик (nil → NewRegistry).
	Factories *engine.Registry

	// Metrics — метрики (nil → без метрик).
	Metrics Metrics

	// History — журнал сессий в БД (nil → без журнала).
	History repo.History

	// Events — дополнительный получатель событий, например mq.Publisher.
	Events engine.EventSink

	// Console — консольный вывод сессии (nil → только файлы).
	Console slog.Handler

	// Configs — источник config-файлов runner'ов (nil → папка конфигурации).
	Configs engine.ConfigSource

	// DrainTimeout — см. driver.Config.
	DrainTimeout time.Duration

	// Logger — журнал процесса (не сессии).
	Logger *slog.Logger

	Now func() time.Time
}

// Report — итог одного запуска.
type Report struct {
	Session *domain.Session
	Outcome *driver.Outcome
}

// Launcher запускает сессии одного задания.
type Launcher struct {
	app  *config.App
	opts Options
}

// NewRegistry создаёт реестр со всеми leaf фабриками и фабрикой workflow.
func NewRegistry(logger *slog.Logger) *engine.Registry {
	r := steps.DefaultRegistry()
	orchestrator.Register(r, orchestrator.Config{Logger: logger})
	return r
}

// New создаёт Launcher.
func New(app *config.App, opts Options) *Launcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Factories == nil {
		opts.Factories = NewRegistry(opts.Logger)
	}
	return &Launcher{app: app, opts: opts}
}

// App возвращает конфигурацию задания.
func (l *Launcher) App() *config.App {
	return l.app
}

// Factories возвращает реестр фабрик.
func (l *Launcher) Factories() *engine.Registry {
	return l.opts.Factories
}

// Run открывает сессию и выполняет её до конца.
//
// Ошибка возвращается, только если сессию не удалось открыть.
// Итог выполнения, включая структурные ошибки workflow, лежит в Report.
func (l *Launcher) Run(ctx context.Context, trigger string) (*Report, error) {
	var recorder engine.Recorder
	if l.opts.Metrics != nil {
		recorder = l.opts.Metrics
	}

	sess, err := session.Open(session.Options{
		App:       l.app,
		Trigger:   trigger,
		Console:   l.opts.Console,
		Factories: l.opts.Factories,
		Configs:   l.opts.Configs,
		Metrics:   recorder,
		Now:       l.opts.Now,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			l.opts.Logger.Warn("session files not closed", "session", sess.Record.Name, "error", err)
		}
	}()

	sess.Env.Events = l.sinks(sess.Record)

	cfg := driver.FromApp(l.app)
	cfg.Record = sess.Record
	cfg.DrainTimeout = l.opts.DrainTimeout
	if l.opts.Metrics != nil {
		cfg.Metrics = l.opts.Metrics
	}

	l.opts.Logger.Info("session started", "session", sess.Record.Name, "trigger", trigger)
	out := driver.New(sess.Env, cfg).Run(ctx)
	l.opts.Logger.Info("session finished",
		"session", sess.Record.Name,
		"status", sess.Record.Status,
		"exit_code", out.ExitCode(),
	)

	return &Report{Session: sess.Record, Outcome: out}, nil
}

// sinks собирает получателей событий сессии.
func (l *Launcher) sinks(rec *domain.Session) engine.EventSink {
	var sinks engine.MultiSink
	if l.opts.History != nil {
		sinks = append(sinks, repo.NewJournal(l.opts.History, rec))
	}
	if l.opts.Events != nil {
		sinks = append(sinks, l.opts.Events)
	}
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return sinks
	}
}

// Validate статически проверяет главный, success и error workflow
// без создания рабочей папки сессии.
func (l *Launcher) Validate(ctx context.Context) error {
	if l.app == nil {
		return errors.New("launcher: app config is required")
	}
	configs := l.opts.Configs
	if configs == nil {
		configs = config.Dir(l.app.Dir)
	}

	env := &engine.Env{
		Logger:    l.opts.Logger,
		Reporter:  l.opts.Logger,
		Configs:   configs,
		Factories: l.opts.Factories,
		Session:   validateSession,
		Vars: map[string]string{
			"session_id": validateSession,
			"job_id":     l.app.JobID,
			"trigger":    validateSession,
		},
	}
	return driver.New(env, driver.FromApp(l.app)).Validate(ctx)
}
