package launcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
)

// Backends — внешние системы задания: журнал в PostgreSQL
// и публикация событий в RabbitMQ. Каждая необязательна.
type Backends struct {
	Pool      *pgxpool.Pool
	History   *repo.HistoryRepo
	MQ        *mq.Connection
	Publisher *mq.Publisher

	logger *slog.Logger
}

// Connect подключает системы, для которых в конфигурации задан URL.
// Схема журнала создаётся при подключении.
func Connect(ctx context.Context, app *config.App, logger *slog.Logger) (*Backends, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backends{logger: logger}

	if app.Database.URL != "" {
		pool, err := repo.NewPool(ctx, app.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := repo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		b.Pool = pool
		b.History = repo.NewHistoryRepo(pool)
		logger.Info("session journal enabled")
	}

	if app.RabbitMQ.URL != "" {
		conn, err := mq.Dial(app.RabbitMQ.URL, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		if err := mq.SetupTopology(conn); err != nil {
			conn.Close()
			b.Close()
			return nil, fmt.Errorf("setup topology: %w", err)
		}
		b.MQ = conn
		b.Publisher = mq.NewPublisher(conn, logger)
		logger.Info("event publishing enabled")
	}

	return b, nil
}

// Apply подставляет подключённые системы в Options.
func (b *Backends) Apply(opts *Options) {
	if b.History != nil {
		opts.History = b.History
	}
	if b.Publisher != nil {
		opts.Events = b.Publisher
	}
}

// Close закрывает подключения.
func (b *Backends) Close() {
	if b.MQ != nil {
		if err := b.MQ.Close(); err != nil {
			b.logger.Warn("rabbitmq close failed", "error", err)
		}
		b.MQ = nil
	}
	if b.Pool != nil {
		b.Pool.Close()
		b.Pool = nil
	}
}
