package engine

import (
	"context"
	"sync/atomic"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Runner — единица работы workflow.
//
// Runner объявляет ключи, которые он предоставляет (Provides) и которые
// ему нужны (Requires). Execute блокируется, пока все требуемые ключи
// не опубликованы провайдерами, затем выполняет работу и публикует
// завершение своим подписчикам.
//
// Workflow сам является Runner'ом, поэтому workflow можно вкладывать
// друг в друга как обычные операции.
type Runner interface {
	Subscriber

	// ID — числовой идентификатор, уникальный в пределах процесса.
	ID() int64

	// IDName — "<factory>-<id>".
	IDName() string

	// WorkflowID — workflowId из конфигурации.
	WorkflowID() string

	Provides() []string
	Requires() []string

	// Observe регистрирует, что runner ждёт key от provider.
	// Должен вызываться до Execute.
	Observe(provider Runner, key string) error

	// Subscribe добавляет подписчика на завершение runner'а.
	Subscribe(s Subscriber)

	// Execute выполняет runner. Ошибка тела превращается в FAILED,
	// наружу возвращаются только структурные ошибки (см. IsStructural).
	Execute(ctx context.Context) error

	State() domain.State

	// Result возвращает результат; ok=false, пока Execute не завершился.
	Result() (res domain.Result, ok bool)

	IsResultSuccess() bool
	ResultMessage() string
}

// Validator — runner, который умеет проверить себя статически, без запуска.
type Validator interface {
	Validate(ctx context.Context) error
}

// Drainer — runner, который может дождаться брошенных им runner'ов.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Body — работа, которую выполняет Task после того, как зависимости готовы.
type Body interface {
	Run(ctx context.Context, t *Task) error
}

// BodyFunc — адаптер функции к интерфейсу Body.
type BodyFunc func(ctx context.Context, t *Task) error

// Run вызывает f(ctx, t).
func (f BodyFunc) Run(ctx context.Context, t *Task) error {
	return f(ctx, t)
}

// BodyValidator — тело, которое умеет проверить себя без запуска
// (например, вложенный workflow строит свой граф).
type BodyValidator interface {
	Validate(ctx context.Context, t *Task) error
}

// BodyDrainer — тело, которое оставляет работу в фоне (workflow после сбоя).
type BodyDrainer interface {
	Drain(ctx context.Context) error
}

var lastID atomic.Int64

func nextID() int64 {
	return lastID.Add(1)
}
