package orchestrator

import "errors"

// Ошибки спецификации workflow. Возвращаются внутри *engine.ConfigurationError.
var (
	// ErrMissingOperations — в конфигурации нет "operations".
	ErrMissingOperations = errors.New("workflow config has no operations")

	// ErrMissingSequence — в конфигурации нет "workflow".
	ErrMissingSequence = errors.New("workflow config has no sequence")

	// ErrUnknownOperation — имя из sequence не найдено в operations.
	ErrUnknownOperation = errors.New("sequence references unknown operation")

	// ErrDuplicateOperation — операция встречается в sequence несколько раз.
	ErrDuplicateOperation = errors.New("operation listed twice in sequence")

	// ErrIncompleteOperation — у операции нет factory или configFileName.
	ErrIncompleteOperation = errors.New("operation has no factory or config")

	// ErrRecursiveWorkflow — workflow включает сам себя.
	ErrRecursiveWorkflow = errors.New("workflow includes itself")

	// ErrNoRegistry — в окружении нет реестра фабрик.
	ErrNoRegistry = errors.New("no runner factory registry")
)
