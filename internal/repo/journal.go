package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// History — запись в журнал сессий. Реализуется HistoryRepo.
type History interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	FinishSession(ctx context.Context, s *domain.Session) error
	AddRunnerRecord(ctx context.Context, rec *domain.RunnerRecord) error
}

// Journal переводит события сессии в записи журнала.
// Реализует engine.EventSink для одной сессии.
type Journal struct {
	history History
	session *domain.Session
}

// NewJournal создаёт Journal для сессии s.
func NewJournal(history History, s *domain.Session) *Journal {
	return &Journal{history: history, session: s}
}

// Emit записывает событие. События чужих сессий игнорируются.
func (j *Journal) Emit(ctx context.Context, ev *domain.Event) error {
	if ev.Session != "" && ev.Session != j.session.Name {
		return nil
	}

	switch ev.Type {
	case domain.EventSessionStarted:
		return j.history.CreateSession(ctx, j.session)

	case domain.EventSessionFinished:
		return j.history.FinishSession(ctx, j.session)

	case domain.EventRunnerFinished:
		rec := &domain.RunnerRecord{
			SessionID:  j.session.ID,
			IDName:     ev.Runner,
			WorkflowID: ev.WorkflowID,
			Duration:   time.Duration(ev.Duration * float64(time.Second)),
			FinishedAt: ev.Timestamp,
		}
		if ev.Result != nil {
			rec.Result = *ev.Result
		}
		return j.history.AddRunnerRecord(ctx, rec)
	}
	return nil
}

// SessionID возвращает ID записи сессии.
func (j *Journal) SessionID() uuid.UUID {
	return j.session.ID
}
