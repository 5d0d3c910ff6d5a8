package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// ProvisionTable — ключ → провайдеры в порядке sequence.
//
// Строится однопоточно до запуска и после этого только читается.
type ProvisionTable struct {
	providers map[string][]engine.Runner
}

// NewProvisionTable создаёт пустую таблицу.
func NewProvisionTable() *ProvisionTable {
	return &ProvisionTable{providers: make(map[string][]engine.Runner)}
}

// Add добавляет провайдера ключа в конец списка.
func (p *ProvisionTable) Add(key string, r engine.Runner) {
	p.providers[key] = append(p.providers[key], r)
}

// Lookup возвращает первого провайдера ключа.
func (p *ProvisionTable) Lookup(key string) (engine.Runner, bool) {
	list := p.providers[key]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// Providers возвращает копию списка провайдеров ключа.
func (p *ProvisionTable) Providers(key string) []engine.Runner {
	return append([]engine.Runner(nil), p.providers[key]...)
}

// Keys возвращает отсортированный список ключей.
func (p *ProvisionTable) Keys() []string {
	keys := make([]string, 0, len(p.providers))
	for k := range p.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unit — операция, готовая к запуску.
type Unit struct {
	Name   string
	Runner engine.Runner
}

// Plan — результат построения графа: связанные runner'ы в порядке sequence.
type Plan struct {
	Workflow   string
	Units      []Unit
	Provisions *ProvisionTable
}

// Build создаёт runner'ы всех операций и связывает их зависимости.
//
// Любая ошибка (фабрика, конфигурация, неразрешённый ключ) возвращается
// до запуска хотя бы одного runner'а. Вложенные workflow проверяются
// рекурсивно через engine.Validator.
func Build(ctx context.Context, env *engine.Env, workflowID string, spec *domain.WorkflowSpec) (*Plan, error) {
	if env == nil || env.Factories == nil {
		return nil, engine.NewConfigurationError(workflowID, "", ErrNoRegistry.Error(), ErrNoRegistry)
	}

	// 1. Создание runner'ов
	runners := make(map[string]engine.Runner, len(spec.Operations))
	for _, name := range operationOrder(spec) {
		op := spec.Operations[name]

		r, err := env.Factories.Create(env, op.Factory, op.ConfigFileName)
		if err != nil {
			var factoryErr *engine.FactoryError
			if errors.As(err, &factoryErr) {
				factoryErr.Operation = name
			}
			return nil, err
		}
		runners[name] = r
	}

	// 2. Связывание зависимостей в порядке sequence
	plan := &Plan{
		Workflow:   workflowID,
		Units:      make([]Unit, 0, len(spec.Sequence)),
		Provisions: NewProvisionTable(),
	}
	for _, name := range spec.Sequence {
		r := runners[name]

		for _, key := range r.Requires() {
			provider, ok := plan.Provisions.Lookup(key)
			if !ok {
				return nil, &engine.DependencyUnmetError{Operation: name, Runner: r.IDName(), Key: key}
			}
			if err := r.Observe(provider, key); err != nil {
				return nil, fmt.Errorf("operation %q: %w", name, err)
			}
		}

		// Провайдеры добавляются после связывания: операция не может зависеть от себя
		for _, key := range r.Provides() {
			plan.Provisions.Add(key, r)
		}

		plan.Units = append(plan.Units, Unit{Name: name, Runner: r})
	}

	// 3. Статическая проверка вложенных workflow
	for _, u := range plan.Units {
		v, ok := u.Runner.(engine.Validator)
		if !ok {
			continue
		}
		if err := v.Validate(ctx); err != nil {
			return nil, fmt.Errorf("operation %q: %w", u.Name, err)
		}
	}

	return plan, nil
}

// operationOrder возвращает операции в порядке создания:
// сначала sequence, затем остальные по имени.
func operationOrder(spec *domain.WorkflowSpec) []string {
	order := make([]string, 0, len(spec.Operations))
	seen := make(map[string]bool, len(spec.Operations))
	for _, name := range spec.Sequence {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}

	rest := make([]string, 0)
	for name := range spec.Operations {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// validateSpec проверяет спецификацию workflow до создания runner'ов.
func validateSpec(config string, spec *domain.WorkflowSpec) error {
	if spec.Operations == nil {
		return engine.NewConfigurationError(config, "operations", "operations is required", ErrMissingOperations)
	}
	if spec.Sequence == nil {
		return engine.NewConfigurationError(config, "workflow", "workflow is required", ErrMissingSequence)
	}

	for name, op := range spec.Operations {
		if op.Factory == "" {
			return engine.NewConfigurationError(config, "operations."+name+".factory",
				fmt.Sprintf("operation %q has no factory", name), ErrIncompleteOperation)
		}
		if op.ConfigFileName == "" {
			return engine.NewConfigurationError(config, "operations."+name+".configFileName",
				fmt.Sprintf("operation %q has no configFileName", name), ErrIncompleteOperation)
		}
	}

	seen := make(map[string]bool, len(spec.Sequence))
	for _, name := range spec.Sequence {
		if _, ok := spec.Operations[name]; !ok {
			return engine.NewConfigurationError(config, "workflow",
				fmt.Sprintf("sequence references unknown operation %q", name), ErrUnknownOperation)
		}
		if seen[name] {
			return engine.NewConfigurationError(config, "workflow",
				fmt.Sprintf("operation %q listed twice", name), ErrDuplicateOperation)
		}
		seen[name] = true
	}

	return nil
}
