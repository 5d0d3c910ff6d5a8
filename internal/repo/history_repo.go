package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// pgUniqueViolation — SQLSTATE нарушения уникальности.
const pgUniqueViolation = "23505"

// HistoryRepo — журнал сессий и результатов runner'ов.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// CreateSession записывает начало сессии.
func (r *HistoryRepo) CreateSession(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (id, name, job_id, status, trigger, work_dir, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.JobID,
		s.Status,
		nullString(s.Trigger),
		nullString(s.WorkDir),
		s.StartedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("session %s: %w", s.Name, ErrAlreadyExists)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FinishSession записывает итог сессии.
func (r *HistoryRepo) FinishSession(ctx context.Context, s *domain.Session) error {
	query := `
		UPDATE sessions
		SET status = $2, message = $3, finished_at = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Status,
		nullString(s.Message),
		s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRunnerRecord записывает результат runner'а.
func (r *HistoryRepo) AddRunnerRecord(ctx context.Context, rec *domain.RunnerRecord) error {
	query := `
		INSERT INTO runner_results (session_id, id_name, workflow_id, status, message, duration_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, id_name) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		rec.SessionID,
		rec.IDName,
		rec.WorkflowID,
		rec.Result.Status,
		nullString(rec.Result.Message),
		rec.Duration.Milliseconds(),
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert runner result: %w", err)
	}
	return nil
}

// GetSession возвращает сессию по ID.
func (r *HistoryRepo) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, name, job_id, status, trigger, work_dir, message, started_at, finished_at
		FROM sessions
		WHERE id = $1
	`
	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ListSessions возвращает сессии, новые первыми.
func (r *HistoryRepo) ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	query := `
		SELECT id, name, job_id, status, trigger, work_dir, message, started_at, finished_at
		FROM sessions
		WHERE ($1::text IS NULL OR job_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.JobID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListRunnerRecords возвращает результаты runner'ов сессии в порядке завершения.
func (r *HistoryRepo) ListRunnerRecords(ctx context.Context, sessionID uuid.UUID) ([]domain.RunnerRecord, error) {
	query := `
		SELECT session_id, id_name, workflow_id, status, message, duration_ms, finished_at
		FROM runner_results
		WHERE session_id = $1
		ORDER BY finished_at ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list runner results: %w", err)
	}
	defer rows.Close()

	var records []domain.RunnerRecord
	for rows.Next() {
		var rec domain.RunnerRecord
		var message *string
		var durationMs int64
		if err := rows.Scan(
			&rec.SessionID,
			&rec.IDName,
			&rec.WorkflowID,
			&rec.Result.Status,
			&message,
			&durationMs,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan runner result: %w", err)
		}
		if message != nil {
			rec.Result.Message = *message
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Helpers ---

// SessionFilter — параметры фильтрации сессий.
type SessionFilter struct {
	JobID  string
	Status domain.SessionStatus
	Limit  int
	Offset int
}

// scanSession сканирует строку (pgx.Row или pgx.Rows) в Session.
func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var trigger, workDir, message *string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.JobID,
		&s.Status,
		&trigger,
		&workDir,
		&message,
		&s.StartedAt,
		&s.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if trigger != nil {
		s.Trigger = *trigger
	}
	if workDir != nil {
		s.WorkDir = *workDir
	}
	if message != nil {
		s.Message = *message
	}
	return &s, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
