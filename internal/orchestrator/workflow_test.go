package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// memConfigs — ConfigSource в памяти.
type memConfigs map[string]string

func (m memConfigs) Read(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("config %s not found", name)
	}
	return []byte(data), nil
}

// probeLog — время начала и конца тел probe runner'ов (по workflowId).
type probeLog struct {
	mu     sync.Mutex
	starts map[string]time.Time
	ends   map[string]time.Time
}

func newProbeLog() *probeLog {
	return &probeLog{starts: make(map[string]time.Time), ends: make(map[string]time.Time)}
}

func (p *probeLog) start(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts[id] = time.Now()
}

func (p *probeLog) end(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ends[id] = time.Now()
}

func (p *probeLog) get(id string) (start, end time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts[id], p.ends[id]
}

func (p *probeLog) started() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.starts)
}

// probeFactory создаёт runner, который спит sleep_ms и падает, если fail=true.
func probeFactory(log *probeLog) engine.Factory {
	return engine.FactoryFunc(func(env *engine.Env, ref string) (engine.Runner, error) {
		cfg, err := engine.LoadConfig(env, ref)
		if err != nil {
			return nil, err
		}
		return engine.NewTask(env, "probe", cfg, engine.BodyFunc(func(ctx context.Context, t *engine.Task) error {
			id := t.WorkflowID()
			log.start(id)
			defer log.end(id)

			if ms, ok := t.Config().Fields["sleep_ms"].(float64); ok {
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if fail, _ := t.Config().Fields["fail"].(bool); fail {
				return errors.New(id + " exploded")
			}
			return nil
		}))
	})
}

// probe возвращает config-файл probe runner'а.
func probe(id string, provides, requires []string, extra string) string {
	q := func(keys []string) string {
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = `"` + k + `"`
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	s := fmt.Sprintf(`{"workflowId": %q, "provides": %s, "requires": %s`, id, q(provides), q(requires))
	if extra != "" {
		s += ", " + extra
	}
	return s + "}"
}

func testEnv(configs memConfigs, log *probeLog) *engine.Env {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := engine.NewRegistry()
	reg.Register("probe", probeFactory(log))
	Register(reg, Config{Heartbeat: 10 * time.Millisecond})

	return &engine.Env{
		Logger:    logger,
		Reporter:  logger,
		Configs:   configs,
		Factories: reg,
	}
}

func TestWorkflow_DependencyOrdering(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := newProbeLog()
	configs := memConfigs{
		"main.json": `{"workflowId": "main", "provides": [], "requires": [],
			"operations": {
				"a": {"factory": "probe", "configFileName": "a.json"},
				"b": {"factory": "probe", "configFileName": "b.json"},
				"c": {"factory": "probe", "configFileName": "c.json"}
			},
			"workflow": ["a", "c", "b"]}`,
		"a.json": probe("a", []string{"k"}, nil, `"sleep_ms": 60`),
		"b.json": probe("b", nil, []string{"k"}, ""),
		"c.json": probe("c", nil, nil, ""),
	}

	wf, err := NewWorkflow(testEnv(configs, log), "main.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if err := wf.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !wf.IsResultSuccess() {
		t.Fatalf("expected success, got %q", wf.ResultMessage())
	}

	_, aEnd := log.get("a")
	bStart, _ := log.get("b")
	cStart, _ := log.get("c")
	if !bStart.After(aEnd) {
		t.Errorf("b started at %v before a finished at %v", bStart, aEnd)
	}
	if !cStart.Before(aEnd) {
		t.Error("independent c should run in parallel with a")
	}
}

func TestWorkflow_DependencyUnmet(t *testing.T) {
	log := newProbeLog()
	configs := memConfigs{
		// b требует k, но провайдер a идёт позже в sequence
		"main.json": `{"workflowId": "main", "provides": [], "requires": [],
			"operations": {
				"a": {"factory": "probe", "configFileName": "a.json"},
				"b": {"factory": "probe", "configFileName": "b.json"},
				"c": {"factory": "probe", "configFileName": "c.json"}
			},
			"workflow": ["c", "b", "a"]}`,
		"a.json": probe("a", []string{"k"}, nil, ""),
		"b.json": probe("b", nil, []string{"k"}, ""),
		"c.json": probe("c", nil, nil, ""),
	}

	wf, err := NewWorkflow(testEnv(configs, log), "main.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	err = wf.Execute(context.Background())
	var depErr *engine.DependencyUnmetError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DependencyUnmetError, got %v", err)
	}
	if depErr.Operation != "b" || depErr.Key != "k" {
		t.Errorf("unexpected error details: %+v", depErr)
	}
	if log.started() != 0 {
		t.Errorf("no runner body should start, %d started", log.started())
	}
	if wf.IsResultSuccess() {
		t.Error("workflow should be failed")
	}
}

func TestWorkflow_FailFast(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := newProbeLog()
	configs := memConfigs{
		"main.json": `{"workflowId": "main", "provides": [], "requires": [],
			"operations": {
				"a": {"factory": "probe", "configFileName": "a.json"},
				"b": {"factory": "probe", "configFileName": "b.json"},
				"c": {"factory": "probe", "configFileName": "c.json"}
			},
			"workflow": ["a", "b", "c"]}`,
		"a.json": probe("a", nil, nil, `"sleep_ms": 400`),
		"b.json": probe("b", nil, nil, `"sleep_ms": 10, "fail": true`),
		"c.json": probe("c", nil, nil, `"sleep_ms": 400`),
	}

	wf, err := NewWorkflow(testEnv(configs, log), "main.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	start := time.Now()
	if err := wf.Execute(context.Background()); err != nil {
		t.Fatalf("failure of a runner must not be structural: %v", err)
	}
	elapsed := time.Since(start)

	if wf.IsResultSuccess() {
		t.Fatal("workflow should fail")
	}
	if elapsed > 250*time.Millisecond {
		t.Errorf("workflow waited for siblings: %v", elapsed)
	}
	if !strings.Contains(wf.ResultMessage(), "b exploded") {
		t.Errorf("message should carry the first failure, got %q", wf.ResultMessage())
	}

	// a и c продолжают работать в фоне
	if _, aEnd := log.get("a"); !aEnd.IsZero() {
		t.Error("a should still be running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wf.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	_, aEnd := log.get("a")
	_, cEnd := log.get("c")
	if aEnd.IsZero() || cEnd.IsZero() {
		t.Error("abandoned runners should finish in background")
	}
}

func TestWorkflow_Nested(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := newProbeLog()
	configs := memConfigs{
		"outer.json": `{"workflowId": "outer", "provides": [], "requires": [],
			"operations": {
				"first": {"factory": "probe", "configFileName": "first.json"},
				"inner": {"factory": "workflowEngine", "configFileName": "inner.json"},
				"last":  {"factory": "probe", "configFileName": "last.json"}
			},
			"workflow": ["first", "inner", "last"]}`,
		"inner.json": `{"workflowId": "inner", "provides": ["mid"], "requires": ["seed"],
			"operations": {
				"x": {"factory": "probe", "configFileName": "x.json"},
				"y": {"factory": "probe", "configFileName": "y.json"}
			},
			"workflow": ["x", "y"]}`,
		"first.json": probe("first", []string{"seed"}, nil, `"sleep_ms": 30`),
		"x.json":     probe("x", []string{"a"}, nil, `"sleep_ms": 30`),
		"y.json":     probe("y", nil, []string{"a"}, ""),
		"last.json":  probe("last", nil, []string{"mid"}, ""),
	}

	wf, err := NewWorkflow(testEnv(configs, log), "outer.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if err := wf.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !wf.IsResultSuccess() {
		t.Fatalf("expected success, got %q", wf.ResultMessage())
	}

	_, firstEnd := log.get("first")
	xStart, xEnd := log.get("x")
	yStart, yEnd := log.get("y")
	lastStart, _ := log.get("last")

	if !xStart.After(firstEnd) {
		t.Error("inner workflow should wait for its own requirement")
	}
	if !yStart.After(xEnd) {
		t.Error("y should start after x")
	}
	if !lastStart.After(yEnd) {
		t.Error("last should start after the whole inner workflow")
	}
}

func TestWorkflow_NestedFailurePropagates(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := newProbeLog()
	configs := memConfigs{
		"outer.json": `{"workflowId": "outer", "provides": [], "requires": [],
			"operations": {"inner": {"factory": "workflowEngine", "configFileName": "inner.json"}},
			"workflow": ["inner"]}`,
		"inner.json": `{"workflowId": "inner", "provides": [], "requires": [],
			"operations": {"x": {"factory": "probe", "configFileName": "x.json"}},
			"workflow": ["x"]}`,
		"x.json": probe("x", nil, nil, `"fail": true`),
	}

	wf, err := NewWorkflow(testEnv(configs, log), "outer.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if err := wf.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if wf.IsResultSuccess() {
		t.Fatal("outer workflow should fail")
	}
	if !strings.Contains(wf.ResultMessage(), "x exploded") {
		t.Errorf("message should carry inner failure, got %q", wf.ResultMessage())
	}
}

func TestWorkflow_NestedDependencyUnmetDetectedUpfront(t *testing.T) {
	log := newProbeLog()
	configs := memConfigs{
		"outer.json": `{"workflowId": "outer", "provides": [], "requires": [],
			"operations": {
				"first": {"factory": "probe", "configFileName": "first.json"},
				"inner": {"factory": "workflowEngine", "configFileName": "inner.json"}
			},
			"workflow": ["first", "inner"]}`,
		"inner.json": `{"workflowId": "inner", "provides": [], "requires": [],
			"operations": {"y": {"factory": "probe", "configFileName": "y.json"}},
			"workflow": ["y"]}`,
		"first.json": probe("first", nil, nil, ""),
		"y.json":     probe("y", nil, []string{"missing"}, ""),
	}

	wf, err := NewWorkflow(testEnv(configs, log), "outer.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if err := wf.Validate(context.Background()); !errors.Is(err, engine.ErrDependencyUnmet) {
		t.Fatalf("Validate should report nested unmet dependency, got %v", err)
	}
	if err := wf.Execute(context.Background()); !errors.Is(err, engine.ErrDependencyUnmet) {
		t.Fatalf("Execute should fail before launch, got %v", err)
	}
	if log.started() != 0 {
		t.Errorf("no body should run, %d started", log.started())
	}
}

func TestWorkflow_FirstProviderWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := newProbeLog()
	configs := memConfigs{
		"main.json": `{"workflowId": "main", "provides": [], "requires": [],
			"operations": {
				"slow":     {"factory": "probe", "configFileName": "slow.json"},
				"fast":     {"factory": "probe", "configFileName": "fast.json"},
				"consumer": {"factory": "probe", "configFileName": "consumer.json"}
			},
			"workflow": ["slow", "fast", "consumer"]}`,
		"slow.json":     probe("slow", []string{"k"}, nil, `"sleep_ms": 80`),
		"fast.json":     probe("fast", []string{"k"}, nil, ""),
		"consumer.json": probe("consumer", nil, []string{"k"}, ""),
	}
	env := testEnv(configs, log)

	// Статически: таблица хранит обоих, Lookup отдаёт первого
	spec := &domain.WorkflowSpec{
		Operations: map[string]domain.OperationDef{
			"slow":     {Factory: "probe", ConfigFileName: "slow.json"},
			"fast":     {Factory: "probe", ConfigFileName: "fast.json"},
			"consumer": {Factory: "probe", ConfigFileName: "consumer.json"},
		},
		Sequence: []string{"slow", "fast", "consumer"},
	}
	plan, err := Build(context.Background(), env, "main", spec)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n := len(plan.Provisions.Providers("k")); n != 2 {
		t.Fatalf("expected 2 providers, got %d", n)
	}
	if p, _ := plan.Provisions.Lookup("k"); p != plan.Units[0].Runner {
		t.Errorf("expected first provider %s, got %s", plan.Units[0].Runner.IDName(), p.IDName())
	}

	// Динамически: consumer ждёт медленного, хотя быстрый закончил раньше
	wf, err := NewWorkflow(env, "main.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if err := wf.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	_, slowEnd := log.get("slow")
	consumerStart, _ := log.get("consumer")
	if !consumerStart.After(slowEnd) {
		t.Error("consumer should wait for the first provider in sequence")
	}
}

func TestWorkflow_EmptySequence(t *testing.T) {
	configs := memConfigs{
		"main.json": `{"workflowId": "main", "provides": [], "requires": [], "operations": {}, "workflow": []}`,
	}

	wf, err := NewWorkflow(testEnv(configs, newProbeLog()), "main.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if err := wf.Execute(context.Background()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !wf.IsResultSuccess() {
		t.Errorf("empty workflow should succeed, got %q", wf.ResultMessage())
	}
}

func TestWorkflow_FactoryFailureAbortsBeforeLaunch(t *testing.T) {
	log := newProbeLog()
	configs := memConfigs{
		"main.json": `{"workflowId": "main", "provides": [], "requires": [],
			"operations": {
				"a": {"factory": "probe", "configFileName": "a.json"},
				"b": {"factory": "unknown", "configFileName": "b.json"}
			},
			"workflow": ["a", "b"]}`,
		"a.json": probe("a", nil, nil, ""),
	}

	wf, err := NewWorkflow(testEnv(configs, log), "main.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	err = wf.Execute(context.Background())
	var factoryErr *engine.FactoryError
	if !errors.As(err, &factoryErr) {
		t.Fatalf("expected FactoryError, got %v", err)
	}
	if factoryErr.Operation != "b" {
		t.Errorf("expected operation b, got %q", factoryErr.Operation)
	}
	if log.started() != 0 {
		t.Errorf("no body should run, %d started", log.started())
	}
}

func TestWorkflow_Recursive(t *testing.T) {
	configs := memConfigs{
		"self.json": `{"workflowId": "self", "provides": [], "requires": [],
			"operations": {"again": {"factory": "workflowEngine", "configFileName": "self.json"}},
			"workflow": ["again"]}`,
	}

	wf, err := NewWorkflow(testEnv(configs, newProbeLog()), "self.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if err := wf.Validate(context.Background()); !errors.Is(err, ErrRecursiveWorkflow) {
		t.Errorf("expected ErrRecursiveWorkflow, got %v", err)
	}
}

func TestWorkflow_ContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	log := newProbeLog()
	configs := memConfigs{
		"main.json": `{"workflowId": "main", "provides": [], "requires": [],
			"operations": {"a": {"factory": "probe", "configFileName": "a.json"}},
			"workflow": ["a"]}`,
		"a.json": probe("a", nil, nil, `"sleep_ms": 5000`),
	}

	wf, err := NewWorkflow(testEnv(configs, log), "main.json", Config{})
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := wf.Execute(ctx); err != nil {
		t.Fatalf("cancellation is not structural: %v", err)
	}
	if wf.IsResultSuccess() {
		t.Error("cancelled workflow should fail")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Second)
	defer drainCancel()
	if err := wf.Drain(drainCtx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func TestNewWorkflow_InvalidSpec(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   error
	}{
		{
			name:   "missing operations",
			config: `{"workflowId": "w", "provides": [], "requires": [], "workflow": []}`,
			want:   ErrMissingOperations,
		},
		{
			name:   "missing sequence",
			config: `{"workflowId": "w", "provides": [], "requires": [], "operations": {}}`,
			want:   ErrMissingSequence,
		},
		{
			name: "unknown operation",
			config: `{"workflowId": "w", "provides": [], "requires": [],
				"operations": {}, "workflow": ["ghost"]}`,
			want: ErrUnknownOperation,
		},
		{
			name: "duplicate operation",
			config: `{"workflowId": "w", "provides": [], "requires": [],
				"operations": {"a": {"factory": "probe", "configFileName": "a.json"}}, "workflow": ["a", "a"]}`,
			want: ErrDuplicateOperation,
		},
		{
			name: "operation without factory",
			config: `{"workflowId": "w", "provides": [], "requires": [],
				"operations": {"a": {"configFileName": "a.json"}}, "workflow": ["a"]}`,
			want: ErrIncompleteOperation,
		},
		{
			name:   "missing workflowId",
			config: `{"provides": [], "requires": [], "operations": {}, "workflow": []}`,
			want:   engine.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testEnv(memConfigs{"w.json": tt.config}, newProbeLog())
			_, err := NewWorkflow(env, "w.json", Config{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, engine.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}
