package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLocked — блокировку держит другой экземпляр.
var ErrLocked = errors.New("locked by another instance")

// JobLock — advisory-блокировка задания в PostgreSQL.
//
// Не даёт двум экземплярам conveyor-server с общей базой выполнять
// сессию одного задания одновременно. Блокировка живёт на отдельном
// соединении из пула и снимается через Release или при разрыве соединения.
type JobLock struct {
	pool *pgxpool.Pool
}

// NewJobLock создаёт JobLock.
func NewJobLock(pool *pgxpool.Pool) *JobLock {
	return &JobLock{pool: pool}
}

// TryAcquire пытается взять блокировку задания jobID без ожидания.
// Возвращает функцию снятия блокировки или ErrLocked.
func (l *JobLock) TryAcquire(ctx context.Context, jobID string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", jobID).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrLocked
	}

	release := func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock(hashtext($1))", jobID)
		conn.Release()
	}
	return release, nil
}
