package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// FactoryName — имя фабрики составного workflow в реестре.
const FactoryName = "workflowEngine"

// Workflow — тело составного runner'а.
//
// Конфигурация:
//
//	{
//	    "workflowId": "nightly",
//	    "provides": ["report"],
//	    "requires": [],
//	    "operations": {
//	        "fetch":  {"factory": "http", "configFileName": "fetch.json"},
//	        "digest": {"factory": "reportDigest", "configFileName": "digest.json"}
//	    },
//	    "workflow": ["fetch", "digest"]
//	}
type Workflow struct {
	spec      *domain.WorkflowSpec
	heartbeat time.Duration

	mu   sync.Mutex
	orch *Orchestrator
}

// Register регистрирует фабрику workflow в реестре.
func Register(r *engine.Registry, cfg Config) {
	r.Register(FactoryName, NewFactory(cfg))
}

// NewFactory возвращает фабрику составных workflow.
func NewFactory(cfg Config) engine.Factory {
	return engine.FactoryFunc(func(env *engine.Env, configRef string) (engine.Runner, error) {
		return NewWorkflow(env, configRef, cfg)
	})
}

// NewWorkflow загружает конфигурацию workflow и создаёт его runner.
func NewWorkflow(env *engine.Env, configRef string, cfg Config) (*engine.Task, error) {
	rc, err := engine.LoadConfig(env, configRef)
	if err != nil {
		return nil, err
	}

	spec, err := specFromFields(rc.Fields)
	if err != nil {
		return nil, engine.NewConfigurationError(configRef, "", fmt.Sprintf("invalid workflow spec: %v", err), err)
	}
	if err := validateSpec(configRef, spec); err != nil {
		return nil, err
	}

	return engine.NewTask(env, FactoryName, rc, &Workflow{
		spec:      spec,
		heartbeat: cfg.Heartbeat,
	})
}

// specFromFields извлекает operations и workflow из уже отрендеренных полей.
func specFromFields(fields map[string]any) (*domain.WorkflowSpec, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return domain.ParseWorkflowSpec(data)
}

// Spec возвращает спецификацию workflow.
func (w *Workflow) Spec() *domain.WorkflowSpec {
	return w.spec
}

// Run строит граф операций и выполняет его.
func (w *Workflow) Run(ctx context.Context, t *engine.Task) error {
	ctx, err := enter(ctx, t.Config().Name)
	if err != nil {
		return err
	}

	plan, err := Build(ctx, t.Env(), t.WorkflowID(), w.spec)
	if err != nil {
		return err
	}

	orch := New(Config{Heartbeat: w.heartbeat, Logger: t.Logger()})
	w.mu.Lock()
	w.orch = orch
	w.mu.Unlock()

	if err := orch.Run(ctx, plan); err != nil {
		return err
	}

	t.SetMessage(fmt.Sprintf("workflow %s: %d operations succeeded", t.WorkflowID(), len(plan.Units)))
	return nil
}

// Validate строит граф без запуска: проверяет фабрики, конфигурации
// и зависимости на всех уровнях вложенности.
func (w *Workflow) Validate(ctx context.Context, t *engine.Task) error {
	ctx, err := enter(ctx, t.Config().Name)
	if err != nil {
		return err
	}
	_, err = Build(ctx, t.Env(), t.WorkflowID(), w.spec)
	return err
}

// Drain ждёт операции последнего запуска, брошенные после ошибки.
func (w *Workflow) Drain(ctx context.Context) error {
	w.mu.Lock()
	orch := w.orch
	w.mu.Unlock()

	if orch == nil {
		return nil
	}
	return orch.Drain(ctx)
}

type chainKey struct{}

// enter добавляет config-файл workflow в цепочку вложенности
// и отклоняет workflow, который включает сам себя.
func enter(ctx context.Context, config string) (context.Context, error) {
	chain, _ := ctx.Value(chainKey{}).([]string)
	for _, c := range chain {
		if c == config {
			return ctx, engine.NewConfigurationError(config, "operations",
				fmt.Sprintf("workflow %s includes itself", config), ErrRecursiveWorkflow)
		}
	}

	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	return context.WithValue(ctx, chainKey{}, append(next, config)), nil
}
