package steps

import (
	"errors"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// Ошибки шагов.
var (
	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepTimeout — шаг превысил таймаут.
	ErrStepTimeout = errors.New("step execution timeout")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrForcedFailure — шаг настроен на ошибку ("error": true).
	ErrForcedFailure = errors.New("forced failure")

	// ErrNoSessionDir — у окружения нет рабочей папки сессии.
	ErrNoSessionDir = errors.New("session directory is not set")
)

// bodyBuilder строит тело runner'а из загруженной конфигурации.
// Ошибка построения — ошибка конфигурации, она видна ещё до запуска workflow.
type bodyBuilder func(cfg *domain.RunnerConfig) (engine.Body, error)

// newFactory возвращает фабрику leaf runner'а с именем name.
func newFactory(name string, build bodyBuilder) engine.Factory {
	return engine.FactoryFunc(func(env *engine.Env, configRef string) (engine.Runner, error) {
		cfg, err := engine.LoadConfig(env, configRef)
		if err != nil {
			return nil, err
		}

		body, err := build(cfg)
		if err != nil {
			return nil, engine.NewConfigurationError(configRef, "", err.Error(), err)
		}

		return engine.NewTask(env, name, cfg, body)
	})
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из конфига.
// Строки "true"/"True" тоже считаются истиной.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return b == "true" || b == "True"
		}
	}
	return defaultVal
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetConfigStrings извлекает список строк из конфига.
func GetConfigStrings(config map[string]any, key string) []string {
	v, ok := config[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// GetConfigInts извлекает список чисел из конфига.
func GetConfigInts(config map[string]any, key string) []int {
	list, ok := config[key].([]any)
	if !ok {
		return nil
	}
	result := make([]int, 0, len(list))
	for _, item := range list {
		if n, ok := item.(float64); ok {
			result = append(result, int(n))
		}
	}
	return result
}
