package domain

import "sync"

// ResultStatus — итог выполнения runner'а.
type ResultStatus string

const (
	// ResultSuccess — runner выполнил работу.
	ResultSuccess ResultStatus = "SUCCESS"

	// ResultFailure — runner завершился с ошибкой.
	ResultFailure ResultStatus = "FAILURE"
)

// Result — результат runner'а: статус и сообщение.
type Result struct {
	Status  ResultStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// IsSuccess возвращает true для успешного результата.
func (r Result) IsSuccess() bool {
	return r.Status == ResultSuccess
}

// Success создаёт успешный результат.
func Success(msg string) Result {
	return Result{Status: ResultSuccess, Message: msg}
}

// Failure создаёт результат с ошибкой.
func Failure(msg string) Result {
	return Result{Status: ResultFailure, Message: msg}
}

// ResultCell хранит Result, который можно установить только один раз.
//
// До установки результат не определён (Get возвращает ok=false).
// Нулевое значение готово к использованию.
type ResultCell struct {
	mu    sync.RWMutex
	value Result
	set   bool
}

// Set устанавливает результат. Возвращает false, если результат уже был установлен.
func (c *ResultCell) Set(r Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.set {
		return false
	}
	c.value = r
	c.set = true
	return true
}

// Get возвращает результат и признак того, что он установлен.
func (c *ResultCell) Get() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.set
}
