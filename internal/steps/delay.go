package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// Ключи конфигурации delay.
const (
	configDurationSec = "duration_sec"
	configDurationMs  = "duration_ms"
)

// NewDelayFactory возвращает фабрику runner'а задержки.
//
// Приостанавливает выполнение на указанное время.
// Поддерживает отмену через context.
//
// Конфигурация:
//
//	{
//	    "duration_sec": 10,    // задержка в секундах
//	    // или
//	    "duration_ms": 5000    // задержка в миллисекундах
//	}
func NewDelayFactory() engine.Factory {
	return newFactory(FactoryDelay, func(cfg *domain.RunnerConfig) (engine.Body, error) {
		duration, err := parseDuration(cfg.Fields)
		if err != nil {
			return nil, err
		}
		return engine.BodyFunc(func(ctx context.Context, t *engine.Task) error {
			return delay(ctx, t, duration)
		}), nil
	})
}

func delay(ctx context.Context, t *engine.Task, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	case <-timer.C:
		t.SetMessage(fmt.Sprintf("waited %s", duration))
		return nil
	}
}

// parseDuration извлекает длительность из конфигурации.
func parseDuration(config map[string]any) (time.Duration, error) {
	if sec := GetConfigInt(config, configDurationSec); sec > 0 {
		return time.Duration(sec) * time.Second, nil
	}
	if ms := GetConfigInt(config, configDurationMs); ms > 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}

	return 0, fmt.Errorf("%w: %s: duration_sec or duration_ms required",
		ErrInvalidConfig, FactoryDelay)
}
