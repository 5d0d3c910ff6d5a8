package domain

// State — состояние runner'а.
//
// Жизненный цикл (каждый переход происходит ровно один раз):
//
//	CREATED → AWAITING_DEPENDENCIES → RUNNING → SUCCEEDED
//	                                          ↘ FAILED
type State string

const (
	// StateCreated — runner создан фабрикой, Execute ещё не вызывался.
	StateCreated State = "CREATED"

	// StateAwaitingDependencies — runner ждёт, пока провайдеры опубликуют ключи.
	StateAwaitingDependencies State = "AWAITING_DEPENDENCIES"

	// StateRunning — выполняется тело runner'а.
	StateRunning State = "RUNNING"

	// StateSucceeded — runner завершился успешно.
	StateSucceeded State = "SUCCEEDED"

	// StateFailed — runner завершился с ошибкой.
	StateFailed State = "FAILED"
)

// IsTerminal возвращает true, если состояние финальное.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed:
		return true
	default:
		return false
	}
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to State) bool {
	switch from {
	case StateCreated:
		return to == StateAwaitingDependencies
	case StateAwaitingDependencies:
		// Ожидание может оборваться отменой контекста — тогда сразу FAILED.
		return to == StateRunning || to == StateFailed
	case StateRunning:
		return to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}

// SessionStatus — статус сессии (одного запуска главного workflow).
type SessionStatus string

const (
	// SessionStatusRunning — сессия выполняется.
	SessionStatusRunning SessionStatus = "RUNNING"

	// SessionStatusSucceeded — главный workflow завершился успешно.
	SessionStatusSucceeded SessionStatus = "SUCCEEDED"

	// SessionStatusFailed — главный workflow завершился с ошибкой.
	SessionStatusFailed SessionStatus = "FAILED"
)

// IsTerminal возвращает true, если сессия завершена.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusSucceeded || s == SessionStatusFailed
}
