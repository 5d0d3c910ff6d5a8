package steps

import (
	"context"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// NewNoopFactory возвращает фабрику runner'а, который только пишет в журнал.
//
// Конфигурация:
//
//	{
//	    "workflowId": "hello",
//	    "provides": ["greeting"],
//	    "requires": [],
//	    "message": "hello from noop"
//	}
func NewNoopFactory() engine.Factory {
	return newFactory(FactoryNoop, func(cfg *domain.RunnerConfig) (engine.Body, error) {
		msg := GetConfigString(cfg.Fields, "message")
		return engine.BodyFunc(func(ctx context.Context, t *engine.Task) error {
			t.Logger().Info("noop runner", "message", msg, "provides", t.Provides())
			t.Reporter().Info("noop runner done", "workflow_id", t.WorkflowID())
			if msg != "" {
				t.SetMessage(msg)
			}
			return nil
		}), nil
	})
}

// NewErrorFactory возвращает фабрику runner'а, который падает,
// если в конфигурации "error": true (или "True").
//
// Используется для проверки error workflow и fail-fast поведения.
func NewErrorFactory() engine.Factory {
	return newFactory(FactoryError, func(cfg *domain.RunnerConfig) (engine.Body, error) {
		fail := GetConfigBool(cfg.Fields, "error", false)
		msg := GetConfigString(cfg.Fields, "message")
		return engine.BodyFunc(func(ctx context.Context, t *engine.Task) error {
			if !fail {
				t.Logger().Info("error runner configured to pass")
				return nil
			}
			if msg != "" {
				return fmt.Errorf("%w: %s", ErrForcedFailure, msg)
			}
			return ErrForcedFailure
		}), nil
	})
}
