package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/scheduler"
)

const defaultListLimit = 50

// ListSessions возвращает список сессий с фильтрацией, новые первыми.
// GET /api/v1/sessions?job_id=...&status=...&limit=...&offset=...
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		Unavailable(w, "session journal is not configured")
		return
	}

	q := r.URL.Query()
	filter := repo.SessionFilter{
		JobID: q.Get("job_id"),
		Limit: defaultListLimit,
	}

	if status := q.Get("status"); status != "" {
		filter.Status = domain.SessionStatus(status)
		if !filter.Status.IsTerminal() && filter.Status != domain.SessionStatusRunning {
			BadRequest(w, "invalid status")
			return
		}
	}

	var ok bool
	if filter.Limit, ok = queryInt(q.Get("limit"), defaultListLimit); !ok {
		BadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, ok = queryInt(q.Get("offset"), 0); !ok {
		BadRequest(w, "invalid offset")
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), filter)
	if h.storeFailed(w, err) {
		return
	}

	result := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		result[i] = SessionFromDomain(s)
	}

	List(w, result, len(result))
}

// GetSession возвращает сессию с результатами runner'ов.
// GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		Unavailable(w, "session journal is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	s, err := h.store.GetSession(r.Context(), id)
	if h.storeFailed(w, err) {
		return
	}

	records, err := h.store.ListRunnerRecords(r.Context(), id)
	if h.storeFailed(w, err) {
		return
	}

	detail := SessionDetailResponse{
		SessionResponse: SessionFromDomain(*s),
		Runners:         make([]RunnerRecordResponse, len(records)),
	}
	for i, rec := range records {
		detail.Runners[i] = RunnerRecordFromDomain(rec)
	}

	Success(w, detail)
}

// TriggerSession запускает сессию вне расписания.
// POST /api/v1/sessions
//
// Сессия выполняется в фоне: ответ 202 не ждёт её завершения.
// Если предыдущая сессия ещё идёт — 409.
func (h *Handler) TriggerSession(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		Unavailable(w, "scheduler is not configured")
		return
	}

	if !h.trigger.Trigger(scheduler.TriggerAPI) {
		Conflict(w, "session already running")
		return
	}

	Accepted(w, TriggerResponse{JobID: h.jobID, Trigger: scheduler.TriggerAPI})
}

// GetSchedule возвращает состояние планировщика.
// GET /api/v1/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		Unavailable(w, "scheduler is not configured")
		return
	}

	resp := ScheduleResponse{JobID: h.jobID, Running: h.trigger.IsRunning()}
	if next := h.trigger.Next(); !next.IsZero() {
		resp.NextRun = &next
	}

	Success(w, resp)
}

// queryInt парсит неотрицательный query-параметр. Пустая строка → def.
func queryInt(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// storeFailed отвечает на ошибку журнала: неизвестная сессия → 404,
// остальное → 500. Возвращает false, если ошибки нет.
func (h *Handler) storeFailed(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, "session not found")
	default:
		InternalError(w, h.logger, err)
	}
	return true
}
