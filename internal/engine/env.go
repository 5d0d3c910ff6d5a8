package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// ConfigSource — источник config-файлов runner'ов.
type ConfigSource interface {
	// Read возвращает содержимое config-файла по имени.
	Read(name string) ([]byte, error)
}

// Recorder — метрики выполнения runner'ов.
type Recorder interface {
	RunnerStarted(factory string)
	RunnerFinished(factory string, res domain.Result, d time.Duration)
	DependencyWait(factory string, d time.Duration)
}

// EventSink — получатель событий жизненного цикла.
//
// Ошибка доставки только логируется: на результат runner'а она не влияет.
type EventSink interface {
	Emit(ctx context.Context, ev *domain.Event) error
}

// Env — окружение, передаваемое каждому runner'у при создании.
//
// Заменяет глобальный менеджер конфигурации: всё, что нужно runner'у
// (логгеры, конфиги, фабрики, метрики), приходит явно.
type Env struct {
	// Logger — основной журнал сессии.
	Logger *slog.Logger

	// Reporter — канал отчётов (тот же набор уровней, отдельные файлы).
	Reporter *slog.Logger

	// Configs — источник config-файлов.
	Configs ConfigSource

	// Factories — реестр фабрик (нужен вложенным workflow).
	Factories *Registry

	// Metrics — метрики (nil → без метрик).
	Metrics Recorder

	// Events — события (nil → без событий).
	Events EventSink

	// Session — имя сессии.
	Session string

	// WorkDir — рабочая папка сессии.
	WorkDir string

	// LogDir — папка логов сессии.
	LogDir string

	// ReportDir — папка отчётов сессии.
	ReportDir string

	// Vars — переменные шаблонов ({{ .Vars.name }}).
	Vars map[string]string
}

// Named возвращает копию окружения с логгерами, помеченными именем runner'а.
func (e *Env) Named(idName string) *Env {
	cp := *e
	cp.Logger = telemetry.WithRunner(e.logger(), idName)
	cp.Reporter = telemetry.WithRunner(e.reporter(), idName)
	return &cp
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) reporter() *slog.Logger {
	if e.Reporter == nil {
		return e.logger()
	}
	return e.Reporter
}

func (e *Env) recorder() Recorder {
	if e.Metrics == nil {
		return nopRecorder{}
	}
	return e.Metrics
}

// emit отправляет событие, если настроен EventSink.
func (e *Env) emit(ctx context.Context, ev *domain.Event) {
	if e.Events == nil {
		return
	}
	ev.Session = e.Session
	if err := e.Events.Emit(ctx, ev); err != nil {
		e.logger().Warn("event delivery failed", "event", ev.Type, "error", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) RunnerStarted(string)                                {}
func (nopRecorder) RunnerFinished(string, domain.Result, time.Duration) {}
func (nopRecorder) DependencyWait(string, time.Duration)                {}

// MultiSink рассылает событие во все получатели параллельно.
// Возвращает первую ошибку, остальные получатели всё равно получают событие.
type MultiSink []EventSink

// Emit реализует EventSink.
func (m MultiSink) Emit(ctx context.Context, ev *domain.Event) error {
	var g errgroup.Group
	for _, sink := range m {
		if sink == nil {
			continue
		}
		g.Go(func() error {
			return sink.Emit(ctx, ev)
		})
	}
	return g.Wait()
}
