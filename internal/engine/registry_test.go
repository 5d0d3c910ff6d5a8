package engine

import (
	"context"
	"errors"
	"testing"
)

type recordingSubscriber struct {
	name string
	log  *[]string
}

func (s recordingSubscriber) Notify(provider Runner, key string) {
	*s.log = append(*s.log, s.name+":"+key)
}

func TestBroker_PublishInSubscriptionOrder(t *testing.T) {
	var b Broker
	var log []string

	b.Subscribe(recordingSubscriber{name: "first", log: &log})
	b.Subscribe(recordingSubscriber{name: "second", log: &log})
	b.Subscribe(recordingSubscriber{name: "third", log: &log})

	b.Publish(nil, "k")

	want := []string{"first:k", "second:k", "third:k"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], log[i])
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	noop := FactoryFunc(func(env *Env, ref string) (Runner, error) {
		cfg, err := LoadConfig(env, ref)
		if err != nil {
			return nil, err
		}
		return NewTask(env, "noop", cfg, BodyFunc(func(ctx context.Context, t *Task) error { return nil }))
	})

	r.Register("noop", noop)
	r.Register("alpha", noop)

	if !r.Has("noop") || r.Has("missing") {
		t.Error("Has returned wrong value")
	}
	if r.Count() != 2 {
		t.Errorf("expected 2 factories, got %d", r.Count())
	}
	if names := r.Names(); names[0] != "alpha" || names[1] != "noop" {
		t.Errorf("names should be sorted: %v", names)
	}

	_, err := r.Get("missing")
	if !errors.Is(err, ErrFactoryNotFound) {
		t.Errorf("expected ErrFactoryNotFound, got %v", err)
	}

	r.Unregister("alpha")
	if r.Has("alpha") {
		t.Error("alpha should be unregistered")
	}
}

func TestRegistry_Create(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", FactoryFunc(func(env *Env, ref string) (Runner, error) {
		cfg, err := LoadConfig(env, ref)
		if err != nil {
			return nil, err
		}
		return NewTask(env, "noop", cfg, BodyFunc(func(ctx context.Context, t *Task) error { return nil }))
	}))

	env := testEnv()
	env.Configs = memConfigs{
		"a.json": `{"workflowId": "a", "provides": [], "requires": []}`,
	}

	runner, err := r.Create(env, "noop", "a.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.WorkflowID() != "a" {
		t.Errorf("unexpected workflow id %s", runner.WorkflowID())
	}

	var factoryErr *FactoryError
	_, err = r.Create(env, "noop", "missing.json")
	if !errors.As(err, &factoryErr) {
		t.Fatalf("expected FactoryError, got %v", err)
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Error("factory error should keep the configuration cause")
	}

	_, err = r.Create(env, "unknown", "a.json")
	if !errors.Is(err, ErrFactoryNotFound) || !IsStructural(err) {
		t.Errorf("expected structural ErrFactoryNotFound, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	orch := &OrchestrationError{Workflow: "main", Failed: "noop-3", Message: "noop-3: boom"}
	if !errors.Is(orch, ErrOrchestration) {
		t.Error("OrchestrationError should match ErrOrchestration")
	}
	if IsStructural(orch) {
		t.Error("plain orchestration failure is not structural")
	}
	if orch.Error() != "workflow main: noop-3 failed: noop-3: boom" {
		t.Errorf("unexpected message %q", orch.Error())
	}

	// Структурная причина всплывает через вложенные workflow
	nested := &OrchestrationError{Workflow: "outer", Failed: "workflowEngine-4", Message: "x",
		Cause: &DependencyUnmetError{Operation: "b", Runner: "noop-5", Key: "k"}}
	if !IsStructural(nested) {
		t.Error("orchestration error with structural cause should be structural")
	}

	exec := &RunnerExecutionError{Runner: "noop-1", Err: context.Canceled}
	if !errors.Is(exec, ErrRunnerExecution) || !errors.Is(exec, context.Canceled) {
		t.Error("RunnerExecutionError should match both sentinel and cause")
	}
	if IsStructural(exec) || IsStructural(nil) {
		t.Error("execution errors are not structural")
	}
}
