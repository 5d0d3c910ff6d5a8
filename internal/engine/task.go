package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Task — реализация Runner.
//
// Task выполняет шаблонную операцию:
//
//	awaitReady → Body.Run → publish
//
// Публикация завершения происходит всегда, даже если тело вернуло
// ошибку или запаниковало: подписчики не остаются ждать вечно.
type Task struct {
	id      int64
	idName  string
	factory string
	cfg     *domain.RunnerConfig
	body    Body
	env     *Env

	broker Broker
	result domain.ResultCell

	mu          sync.Mutex
	state       domain.State
	started     bool
	message     string
	waiting     map[string]Runner  // ключ → провайдер; только уменьшается во время выполнения
	subscribed  map[int64]struct{} // провайдеры, на которые уже подписались
	ready       chan struct{}      // закрывается, когда waiting опустел
	readyClosed bool
}

// NewTask создаёт Task по загруженной конфигурации.
//
// Возвращает *ConfigurationError, если в конфигурации нет
// workflowId, provides или requires.
func NewTask(env *Env, factory string, cfg *domain.RunnerConfig, body Body) (*Task, error) {
	if cfg == nil {
		return nil, NewConfigurationError("", "", "runner config is nil", nil)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("%s: body is nil", factory)
	}
	if env == nil {
		env = &Env{}
	}

	id := nextID()
	idName := fmt.Sprintf("%s-%d", factory, id)

	return &Task{
		id:         id,
		idName:     idName,
		factory:    factory,
		cfg:        cfg,
		body:       body,
		env:        env.Named(idName),
		state:      domain.StateCreated,
		waiting:    make(map[string]Runner),
		subscribed: make(map[int64]struct{}),
		ready:      make(chan struct{}),
	}, nil
}

// LoadConfig читает config-файл runner'а из env.Configs и рендерит его поля.
func LoadConfig(env *Env, ref string) (*domain.RunnerConfig, error) {
	if env == nil || env.Configs == nil {
		return nil, NewConfigurationError(ref, "", "no config source", nil)
	}

	data, err := env.Configs.Read(ref)
	if err != nil {
		return nil, NewConfigurationError(ref, "", fmt.Sprintf("read failed: %v", err), err)
	}

	cfg, err := domain.ParseRunnerConfig(ref, data)
	if err != nil {
		return nil, NewConfigurationError(ref, "", fmt.Sprintf("invalid JSON: %v", err), err)
	}

	fields, err := RenderConfig(cfg.Fields, NewContext(env.Vars))
	if err != nil {
		return nil, NewConfigurationError(ref, "", err.Error(), err)
	}
	cfg.Fields = fields

	return cfg, nil
}

func validateConfig(cfg *domain.RunnerConfig) error {
	switch {
	case cfg.WorkflowID == nil:
		return NewConfigurationError(cfg.Name, "workflowId", "workflowId is required", nil)
	case cfg.Provides == nil:
		return NewConfigurationError(cfg.Name, "provides", "provides is required", nil)
	case cfg.Requires == nil:
		return NewConfigurationError(cfg.Name, "requires", "requires is required", nil)
	}
	return nil
}

// ID возвращает числовой идентификатор.
func (t *Task) ID() int64 { return t.id }

// IDName возвращает "<factory>-<id>".
func (t *Task) IDName() string { return t.idName }

// String реализует fmt.Stringer.
func (t *Task) String() string { return t.idName }

// Factory возвращает имя фабрики, создавшей runner.
func (t *Task) Factory() string { return t.factory }

// WorkflowID возвращает workflowId из конфигурации.
func (t *Task) WorkflowID() string { return t.cfg.ID() }

// Config возвращает конфигурацию runner'а.
func (t *Task) Config() *domain.RunnerConfig { return t.cfg }

// Env возвращает окружение runner'а.
func (t *Task) Env() *Env { return t.env }

// Logger возвращает журнал runner'а.
func (t *Task) Logger() *slog.Logger { return t.env.logger() }

// Reporter возвращает канал отчётов runner'а.
func (t *Task) Reporter() *slog.Logger { return t.env.reporter() }

// Provides возвращает ключи, которые runner публикует.
func (t *Task) Provides() []string {
	return append([]string(nil), t.cfg.Provides...)
}

// Requires возвращает ключи, которые нужны runner'у.
func (t *Task) Requires() []string {
	return append([]string(nil), t.cfg.Requires...)
}

// State возвращает текущее состояние.
func (t *Task) State() domain.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result возвращает результат выполнения.
func (t *Task) Result() (domain.Result, bool) {
	return t.result.Get()
}

// IsResultSuccess возвращает true, если runner завершился успешно.
func (t *Task) IsResultSuccess() bool {
	res, ok := t.result.Get()
	return ok && res.IsSuccess()
}

// ResultMessage возвращает сообщение результата.
func (t *Task) ResultMessage() string {
	res, _ := t.result.Get()
	return res.Message
}

// SetMessage задаёт сообщение успешного результата. Вызывается из тела.
func (t *Task) SetMessage(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = msg
}

// Subscribe добавляет подписчика на завершение runner'а.
func (t *Task) Subscribe(s Subscriber) {
	t.broker.Subscribe(s)
}

// Pending возвращает ключи, которых runner ещё ждёт.
func (t *Task) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.waiting))
	for k := range t.waiting {
		keys = append(keys, k)
	}
	return keys
}

// Observe регистрирует ожидание key от provider и подписывается на него.
func (t *Task) Observe(provider Runner, key string) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s cannot observe %q", ErrAlreadyStarted, t.idName, key)
	}

	t.waiting[key] = provider
	if t.readyClosed {
		t.ready = make(chan struct{})
		t.readyClosed = false
	}
	_, seen := t.subscribed[provider.ID()]
	t.subscribed[provider.ID()] = struct{}{}
	t.mu.Unlock()

	if !seen {
		provider.Subscribe(t)
	}

	t.Logger().Debug("observing dependency", "provider", provider.IDName(), "key", key)
	return nil
}

// Notify снимает ключи из набора ожидания.
//
// С key удаляется ровно этот ключ; отсутствующий ключ — не ошибка.
// Без key удаляются все ключи, ожидаемые именно от provider и
// объявленные в его Provides.
func (t *Task) Notify(provider Runner, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := len(t.waiting)
	if key != "" {
		delete(t.waiting, key)
	} else {
		for _, k := range provider.Provides() {
			if p, ok := t.waiting[k]; ok && p.ID() == provider.ID() {
				delete(t.waiting, k)
			}
		}
	}

	if before > 0 && len(t.waiting) == 0 && !t.readyClosed {
		close(t.ready)
		t.readyClosed = true
	}
}

// awaitReady блокируется, пока набор ожидания не опустеет или не отменится ctx.
func (t *Task) awaitReady(ctx context.Context) error {
	t.mu.Lock()
	if len(t.waiting) == 0 {
		t.mu.Unlock()
		return nil
	}
	ready := t.ready
	t.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute выполняет runner: ждёт зависимости, выполняет тело, публикует завершение.
//
// Ошибки тела и паники превращаются в FAILED. Наружу возвращаются
// только структурные ошибки, они тоже переводят runner в FAILED.
func (t *Task) Execute(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, t.idName)
	}
	t.started = true
	t.state = domain.StateAwaitingDependencies
	t.mu.Unlock()

	// Выполняется последним, после записи результата
	defer t.broker.Publish(t, "")

	rec := t.env.recorder()

	waitStart := time.Now()
	if err := t.awaitReady(ctx); err != nil {
		t.finish(ctx, domain.Failure(fmt.Sprintf("%s: dependencies not satisfied: %v", t.idName, err)), 0)
		return nil
	}
	rec.DependencyWait(t.factory, time.Since(waitStart))

	t.setState(domain.StateRunning)
	rec.RunnerStarted(t.factory)
	t.Logger().Debug("runner started", "workflow_id", t.WorkflowID())
	t.Reporter().Info("runner begin", "workflow_id", t.WorkflowID())

	ev := domain.NewEvent(domain.EventRunnerStarted)
	ev.Runner = t.idName
	ev.WorkflowID = t.WorkflowID()
	ev.State = domain.StateRunning
	t.env.emit(context.WithoutCancel(ctx), ev)

	start := time.Now()
	err := t.runBody(ctx)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		t.finish(ctx, domain.Success(t.successMessage()), elapsed)
		return nil
	case IsStructural(err):
		t.finish(ctx, domain.Failure(err.Error()), elapsed)
		return err
	default:
		t.finish(ctx, domain.Failure(failureMessage(t.idName, err)), elapsed)
		return nil
	}
}

// Validate проверяет runner без запуска, если тело это умеет.
func (t *Task) Validate(ctx context.Context) error {
	if v, ok := t.body.(BodyValidator); ok {
		return v.Validate(ctx, t)
	}
	return nil
}

// Drain ждёт завершения работы, оставленной телом в фоне.
func (t *Task) Drain(ctx context.Context) error {
	if d, ok := t.body.(BodyDrainer); ok {
		return d.Drain(ctx)
	}
	return nil
}

// runBody выполняет тело и превращает панику в ошибку.
func (t *Task) runBody(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.body.Run(ctx, t)
}

func (t *Task) setState(to domain.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if domain.CanTransition(t.state, to) {
		t.state = to
	}
}

func (t *Task) successMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.message != "" {
		return t.message
	}
	return t.idName + " finished"
}

// finish записывает результат и переводит runner в финальное состояние.
func (t *Task) finish(ctx context.Context, res domain.Result, elapsed time.Duration) {
	ran := t.State() == domain.StateRunning
	t.result.Set(res)
	if res.IsSuccess() {
		t.setState(domain.StateSucceeded)
		t.Logger().Info("runner succeeded", "workflow_id", t.WorkflowID(), "duration", elapsed)
		t.Reporter().Info("runner succeeded", "message", res.Message)
	} else {
		t.setState(domain.StateFailed)
		t.Logger().Error("runner failed", "workflow_id", t.WorkflowID(), "message", res.Message)
		t.Reporter().Error("runner failed", "message", res.Message)
	}

	if ran {
		t.env.recorder().RunnerFinished(t.factory, res, elapsed)
	}

	ev := domain.NewEvent(domain.EventRunnerFinished)
	ev.Runner = t.idName
	ev.WorkflowID = t.WorkflowID()
	ev.State = t.State()
	ev.Result = &res
	ev.Duration = elapsed.Seconds()
	t.env.emit(context.WithoutCancel(ctx), ev)
}

func failureMessage(idName string, err error) string {
	var orchErr *OrchestrationError
	if errors.As(err, &orchErr) {
		return orchErr.Error()
	}
	return (&RunnerExecutionError{Runner: idName, Err: err}).Error()
}
