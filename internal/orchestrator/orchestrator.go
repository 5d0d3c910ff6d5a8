package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/engine"
)

// Default configuration values.
const (
	defaultHeartbeat = time.Second
)

// Orchestrator запускает операции плана и следит за их завершением.
//
// Один Orchestrator обслуживает один запуск workflow. Каждая операция
// выполняется в своей горутине и сообщает о завершении через канал,
// поэтому первая ошибка замечается сразу, а не на следующем тике.
type Orchestrator struct {
	heartbeat time.Duration
	logger    *slog.Logger

	// wg — все запущенные горутины, включая брошенные после ошибки
	wg sync.WaitGroup

	mu    sync.Mutex
	units []Unit
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Heartbeat — интервал логирования прогресса (default: 1s).
	Heartbeat time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// unitDone — сообщение о завершении операции.
type unitDone struct {
	unit Unit
	err  error
}

// Run запускает все операции плана конкурентно и ждёт результата.
//
// Возвращает nil, если все операции завершились успешно, и
// *engine.OrchestrationError с сообщением первой упавшей операции.
// После ошибки остальные операции продолжают работать в фоне.
func (o *Orchestrator) Run(ctx context.Context, plan *Plan) error {
	state := NewRunState(plan)

	o.mu.Lock()
	o.units = append(o.units, plan.Units...)
	o.mu.Unlock()

	// Буфер на все операции: брошенные горутины не блокируются на отправке
	done := make(chan unitDone, len(plan.Units))

	for _, u := range plan.Units {
		state.MarkRunning(u.Name)

		o.wg.Add(1)
		go func(u Unit) {
			defer o.wg.Done()
			err := u.Runner.Execute(ctx)
			done <- unitDone{unit: u, err: err}
		}(u)
	}

	o.logger.Info("workflow started", "workflow_id", plan.Workflow, "operations", len(plan.Units))

	ticker := time.NewTicker(o.heartbeat)
	defer ticker.Stop()

	for !state.IsComplete() {
		select {
		case d := <-done:
			if d.err == nil && d.unit.Runner.IsResultSuccess() {
				state.MarkCompleted(d.unit.Name)
				o.logger.Debug("operation succeeded", "operation", d.unit.Name, "runner", d.unit.Runner.IDName())
				continue
			}

			state.MarkFailed(d.unit.Name)
			stats := state.Stats()
			o.logger.Error("operation failed, workflow cancelling",
				"workflow_id", plan.Workflow,
				"operation", d.unit.Name,
				"runner", d.unit.Runner.IDName(),
				"message", d.unit.Runner.ResultMessage(),
				"abandoned", stats.Running,
			)
			return &engine.OrchestrationError{
				Workflow: plan.Workflow,
				Failed:   d.unit.Runner.IDName(),
				Message:  d.unit.Runner.ResultMessage(),
				Cause:    d.err,
			}

		case <-ticker.C:
			stats := state.Stats()
			o.logger.Info("workflow progress",
				"workflow_id", plan.Workflow,
				"running", stats.Running,
				"completed", stats.Completed,
				"total", stats.Total,
			)

		case <-ctx.Done():
			state.Cancel()
			o.logger.Warn("workflow interrupted", "workflow_id", plan.Workflow, "error", ctx.Err())
			return &engine.OrchestrationError{
				Workflow: plan.Workflow,
				Message:  "interrupted: " + ctx.Err().Error(),
			}
		}
	}

	o.logger.Info("workflow succeeded", "workflow_id", plan.Workflow, "operations", len(plan.Units))
	return nil
}

// Drain ждёт завершения всех запущенных операций, включая брошенные
// после ошибки, и рекурсивно — операций вложенных workflow.
func (o *Orchestrator) Drain(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	o.mu.Lock()
	units := append([]Unit(nil), o.units...)
	o.mu.Unlock()

	for _, u := range units {
		if d, ok := u.Runner.(engine.Drainer); ok {
			if err := d.Drain(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
