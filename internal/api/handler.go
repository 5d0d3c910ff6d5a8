package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// SessionStore — чтение журнала сессий. Реализуется repo.HistoryRepo.
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	ListSessions(ctx context.Context, filter repo.SessionFilter) ([]domain.Session, error)
	ListRunnerRecords(ctx context.Context, sessionID uuid.UUID) ([]domain.RunnerRecord, error)
}

// Trigger — ручной запуск сессии. Реализуется scheduler.Scheduler.
type Trigger interface {
	// Trigger запускает сессию в фоне. false — предыдущая ещё выполняется.
	Trigger(trigger string) bool

	// Next возвращает время следующего запуска по расписанию (нулевое — без расписания).
	Next() time.Time

	// IsRunning возвращает true, пока выполняется сессия.
	IsRunning() bool
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store   SessionStore
	trigger Trigger
	jobID   string
	logger  *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Store — журнал сессий (nil → эндпоинты журнала отвечают 503).
	Store SessionStore

	// Trigger — запуск сессий (nil → POST отвечает 503).
	Trigger Trigger

	// JobID — задание, которое обслуживает сервер.
	JobID string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   cfg.Store,
		trigger: cfg.Trigger,
		jobID:   cfg.JobID,
		logger:  logger,
	}
}
