package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события жизненного цикла.
type EventType string

const (
	EventSessionStarted  EventType = "session.started"
	EventSessionFinished EventType = "session.finished"
	EventRunnerStarted   EventType = "runner.started"
	EventRunnerFinished  EventType = "runner.finished"
)

// Event — уведомление о событии сессии или runner'а.
//
// События только наблюдаемые: их доставка никогда не влияет на результат.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	Session    string    `json:"session,omitempty"`
	Runner     string    `json:"runner,omitempty"`
	WorkflowID string    `json:"workflow_id,omitempty"`
	State      State     `json:"state,omitempty"`
	Result     *Result   `json:"result,omitempty"`
	Duration   float64   `json:"duration_sec,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent создаёт событие с новым ID и текущим временем.
func NewEvent(t EventType) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      t,
		Timestamp: time.Now(),
	}
}
