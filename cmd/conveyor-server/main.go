// Conveyor server — запускает сессии задания по расписанию и по запросу
// и отдаёт журнал сессий по HTTP.
//
// Конфигурация: <CONVEYOR_CONFIG_DIR>/<CONVEYOR_APP> (по умолчанию
// config/app.json). Журнал в PostgreSQL и события в RabbitMQ
// включаются заданием database.url / rabbitmq.url (или DB_URL / RABBITMQ_URL).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Conveyor/internal/api"
	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/launcher"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/scheduler"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const (
	defaultAppConfig = "app.json"
	shutdownTimeout  = 10 * time.Second
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("conveyor-server failed", "error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, logger *slog.Logger) error {
	name := os.Getenv("CONVEYOR_APP")
	if name == "" {
		name = defaultAppConfig
	}
	app, err := config.Load(config.Dir(config.ConfigDir()), name)
	if err != nil {
		return err
	}
	logger = logger.With("job_id", app.JobID)

	// PostgreSQL и RabbitMQ, если настроены
	backends, err := launcher.Connect(ctx, app, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	opts := launcher.Options{
		Metrics: telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Console: logger.Handler(),
		Logger:  logger,
	}
	backends.Apply(&opts)
	l := launcher.New(app, opts)

	// Сломанную конфигурацию видно при старте, а не в первой сессии
	if err := l.Validate(ctx); err != nil {
		return fmt.Errorf("invalid workflow configuration: %w", err)
	}

	loc, err := app.Schedule.Location()
	if err != nil {
		return err
	}
	sched, err := scheduler.New(scheduler.Config{
		Cron:     app.Schedule.Cron,
		Location: loc,
		Run:      sessionRunner(l, backends, logger),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	var store api.SessionStore
	if backends.History != nil {
		store = backends.History
	}
	handler := api.NewHandler(api.Config{
		Store:   store,
		Trigger: sched,
		JobID:   app.JobID,
		Logger:  logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              app.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", app.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sessionRunner возвращает функцию запуска сессии для scheduler.
// С общей базой сессию задания выполняет только один экземпляр сервера.
func sessionRunner(l *launcher.Launcher, backends *launcher.Backends, logger *slog.Logger) scheduler.RunFunc {
	var lock *repo.JobLock
	if backends.Pool != nil {
		lock = repo.NewJobLock(backends.Pool)
	}

	return func(ctx context.Context, trigger string) {
		if lock != nil {
			release, err := lock.TryAcquire(ctx, l.App().JobID)
			if err != nil {
				logger.Warn("session skipped", "trigger", trigger, "error", err)
				return
			}
			defer release()
		}

		if _, err := l.Run(ctx, trigger); err != nil {
			logger.Error("session not started", "trigger", trigger, "error", err)
		}
	}
}
