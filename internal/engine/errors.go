package engine

import (
	"errors"
	"fmt"
)

// Базовые ошибки движка. Проверяются через errors.Is.
var (
	// ErrConfiguration — в конфигурации runner'а или workflow нет обязательного поля.
	ErrConfiguration = errors.New("configuration error")

	// ErrDependencyUnmet — требуемый ключ не предоставляет ни одна более ранняя операция.
	ErrDependencyUnmet = errors.New("dependency unmet")

	// ErrRunnerExecution — ошибка в теле runner'а.
	ErrRunnerExecution = errors.New("runner execution failed")

	// ErrOrchestration — workflow завершился с ошибкой одного из runner'ов.
	ErrOrchestration = errors.New("orchestration failed")

	// ErrNotConfigured — необязательный workflow отсутствует в конфигурации.
	ErrNotConfigured = errors.New("workflow not configured")

	// ErrFactoryNotFound — фабрика не зарегистрирована.
	ErrFactoryNotFound = errors.New("runner factory not found")

	// ErrAlreadyStarted — Execute уже вызывался, подписки больше не принимаются.
	ErrAlreadyStarted = errors.New("runner already started")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ConfigurationError — ошибка конфигурации с контекстом.
type ConfigurationError struct {
	Config  string // config-файл, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigurationError) Error() string {
	if e.Config != "" {
		return "config " + e.Config + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять ошибку через errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError создаёт новую ошибку конфигурации.
func NewConfigurationError(config, field, message string, err error) *ConfigurationError {
	return &ConfigurationError{
		Config:  config,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// DependencyUnmetError — требуемый ключ не найден в таблице провайдеров.
type DependencyUnmetError struct {
	Operation string // операция, которой нужен ключ
	Runner    string // IDName runner'а операции
	Key       string // ключ без провайдера
}

// Error реализует интерфейс error.
func (e *DependencyUnmetError) Error() string {
	return fmt.Sprintf("operation %q (%s) requires %q, but no earlier operation provides it",
		e.Operation, e.Runner, e.Key)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrDependencyUnmet).
func (e *DependencyUnmetError) Is(target error) bool {
	return target == ErrDependencyUnmet
}

// RunnerExecutionError — ошибка тела runner'а.
//
// Никогда не выходит за пределы Execute: превращается в FAILED и сообщение результата.
type RunnerExecutionError struct {
	Runner string
	Err    error
}

// Error реализует интерфейс error.
func (e *RunnerExecutionError) Error() string {
	return e.Runner + ": " + e.Err.Error()
}

// Unwrap возвращает исходную ошибку тела.
func (e *RunnerExecutionError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять ошибку через errors.Is(err, ErrRunnerExecution).
func (e *RunnerExecutionError) Is(target error) bool {
	return target == ErrRunnerExecution
}

// OrchestrationError — первый неуспешный runner workflow.
type OrchestrationError struct {
	Workflow string // workflowId workflow
	Failed   string // IDName первого неуспешного runner'а (пусто при отмене ctx)
	Message  string // сообщение результата этого runner'а
	Cause    error  // структурная ошибка runner'а, если была
}

// Error реализует интерфейс error.
func (e *OrchestrationError) Error() string {
	if e.Failed == "" {
		return fmt.Sprintf("workflow %s: %s", e.Workflow, e.Message)
	}
	return fmt.Sprintf("workflow %s: %s failed: %s", e.Workflow, e.Failed, e.Message)
}

// Unwrap возвращает структурную ошибку runner'а (или nil).
func (e *OrchestrationError) Unwrap() error {
	return e.Cause
}

// Is позволяет проверять ошибку через errors.Is(err, ErrOrchestration).
func (e *OrchestrationError) Is(target error) bool {
	return target == ErrOrchestration
}

// FactoryError — фабрика не смогла создать runner для операции.
type FactoryError struct {
	Operation string
	Factory   string
	Err       error
}

// Error реализует интерфейс error.
func (e *FactoryError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("operation %q: factory %q: %v", e.Operation, e.Factory, e.Err)
	}
	return fmt.Sprintf("factory %q: %v", e.Factory, e.Err)
}

// Unwrap возвращает причину.
func (e *FactoryError) Unwrap() error {
	return e.Err
}

// IsStructural возвращает true для ошибок, которые прерывают весь запуск:
// плохая конфигурация, неразрешённая зависимость, сбой фабрики.
func IsStructural(err error) bool {
	if err == nil {
		return false
	}

	var (
		cfgErr     *ConfigurationError
		depErr     *DependencyUnmetError
		factoryErr *FactoryError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &depErr), errors.As(err, &factoryErr):
		return true
	case errors.Is(err, ErrAlreadyStarted), errors.Is(err, ErrFactoryNotFound):
		return true
	default:
		return false
	}
}
