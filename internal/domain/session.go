package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session — один запуск главного workflow.
//
// Session создаётся когда:
// - Пользователь запускает `conveyor run` (CLI)
// - Scheduler срабатывает по cron-выражению
// - Клиент вызывает POST /api/v1/sessions
//
// Session хранится в журнале только для истории: движок никогда
// не читает её обратно для принятия решений.
type Session struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// Name — имя сессии: "YYYY.MM.DD_HH.MM-<jobId>".
	Name string `json:"name"`

	// JobID — идентификатор задания из конфигурации приложения.
	JobID string `json:"job_id"`

	// Status — текущий статус сессии.
	Status SessionStatus `json:"status"`

	// Trigger — источник запуска: "cli", "schedule", "api".
	Trigger string `json:"trigger,omitempty"`

	// WorkDir — рабочая папка сессии (run/<session>).
	WorkDir string `json:"work_dir,omitempty"`

	// Message — сообщение результата главного workflow.
	Message string `json:"message,omitempty"`

	// StartedAt — время начала.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока сессия выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewSession создаёт сессию в статусе RUNNING.
func NewSession(name, jobID, trigger string) *Session {
	return &Session{
		ID:        uuid.New(),
		Name:      name,
		JobID:     jobID,
		Status:    SessionStatusRunning,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
}

// Duration возвращает продолжительность сессии.
// Возвращает 0, если сессия ещё не завершена.
func (s *Session) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Finish переводит сессию в финальный статус по результату главного workflow.
func (s *Session) Finish(res Result) {
	now := time.Now()
	s.FinishedAt = &now
	s.Message = res.Message
	if res.IsSuccess() {
		s.Status = SessionStatusSucceeded
	} else {
		s.Status = SessionStatusFailed
	}
}

// RunnerRecord — результат одного runner'а в журнале сессии.
type RunnerRecord struct {
	// SessionID — сессия, в которой выполнялся runner.
	SessionID uuid.UUID `json:"session_id"`

	// IDName — имя runner'а ("<factory>-<id>").
	IDName string `json:"id_name"`

	// WorkflowID — workflowId из конфигурации runner'а.
	WorkflowID string `json:"workflow_id"`

	// Result — итог выполнения.
	Result Result `json:"result"`

	// Duration — время выполнения тела (без ожидания зависимостей).
	Duration time.Duration `json:"duration"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`
}
