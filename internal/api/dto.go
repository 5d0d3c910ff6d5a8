package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Session DTOs

// SessionResponse — ответ с сессией.
type SessionResponse struct {
	ID          uuid.UUID            `json:"id"`
	Name        string               `json:"name"`
	JobID       string               `json:"job_id"`
	Status      domain.SessionStatus `json:"status"`
	Trigger     string               `json:"trigger,omitempty"`
	WorkDir     string               `json:"work_dir,omitempty"`
	Message     string               `json:"message,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
	DurationSec float64              `json:"duration_sec,omitempty"`
}

// SessionFromDomain конвертирует domain.Session в SessionResponse.
func SessionFromDomain(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		Name:        s.Name,
		JobID:       s.JobID,
		Status:      s.Status,
		Trigger:     s.Trigger,
		WorkDir:     s.WorkDir,
		Message:     s.Message,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		DurationSec: s.Duration().Seconds(),
	}
}

// SessionDetailResponse — сессия вместе с результатами runner'ов.
type SessionDetailResponse struct {
	SessionResponse
	Runners []RunnerRecordResponse `json:"runners"`
}

// RunnerRecord DTOs

// RunnerRecordResponse — ответ с результатом runner'а.
type RunnerRecordResponse struct {
	IDName      string              `json:"id_name"`
	WorkflowID  string              `json:"workflow_id"`
	Status      domain.ResultStatus `json:"status"`
	Message     string              `json:"message,omitempty"`
	DurationSec float64             `json:"duration_sec"`
	FinishedAt  time.Time           `json:"finished_at"`
}

// RunnerRecordFromDomain конвертирует domain.RunnerRecord в RunnerRecordResponse.
func RunnerRecordFromDomain(r domain.RunnerRecord) RunnerRecordResponse {
	return RunnerRecordResponse{
		IDName:      r.IDName,
		WorkflowID:  r.WorkflowID,
		Status:      r.Result.Status,
		Message:     r.Result.Message,
		DurationSec: r.Duration.Seconds(),
		FinishedAt:  r.FinishedAt,
	}
}

// Trigger DTOs

// TriggerResponse — ответ на ручной запуск.
type TriggerResponse struct {
	JobID   string `json:"job_id"`
	Trigger string `json:"trigger"`
}

// ScheduleResponse — состояние планировщика.
type ScheduleResponse struct {
	JobID   string     `json:"job_id"`
	Running bool       `json:"running"`
	NextRun *time.Time `json:"next_run,omitempty"`
}
