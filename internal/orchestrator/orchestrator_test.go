package orchestrator

import (
	"testing"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// --- RunState Tests ---

func TestRunState(t *testing.T) {
	plan := &Plan{Units: []Unit{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	state := NewRunState(plan)

	for _, u := range plan.Units {
		state.MarkRunning(u.Name)
	}
	if s := state.Stats(); s.Total != 3 || s.Running != 3 {
		t.Errorf("unexpected stats %+v", s)
	}

	state.MarkCompleted("a")
	if state.IsComplete() || state.IsCancelling() {
		t.Error("state should be in progress")
	}

	state.MarkFailed("b")
	if !state.IsCancelling() {
		t.Error("failure should switch to cancelling")
	}

	s := state.Stats()
	if s.Completed != 1 || s.Failed != 1 || s.Running != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestRunState_EmptyPlanIsComplete(t *testing.T) {
	state := NewRunState(&Plan{})
	if !state.IsComplete() {
		t.Error("empty plan should be complete")
	}
}

// --- ProvisionTable Tests ---

func TestProvisionTable(t *testing.T) {
	table := NewProvisionTable()

	if _, ok := table.Lookup("k"); ok {
		t.Error("empty table should not resolve keys")
	}

	p1 := newStubRunner(1, "one")
	p2 := newStubRunner(2, "two")
	table.Add("k", p1)
	table.Add("k", p2)
	table.Add("a", p2)

	got, ok := table.Lookup("k")
	if !ok || got.IDName() != "one" {
		t.Errorf("expected first provider, got %v", got)
	}
	if keys := table.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "k" {
		t.Errorf("unexpected keys %v", keys)
	}

	providers := table.Providers("k")
	providers[0] = p2
	_ = append(providers[:1], p1)
	if got, _ := table.Lookup("k"); got.IDName() != "one" {
		t.Error("changing the returned slice must not change the table")
	}
	if n := len(table.Providers("k")); n != 2 {
		t.Errorf("providers = %d, want 2", n)
	}
}

func TestOperationOrder(t *testing.T) {
	spec := specOf([]string{"c", "a"}, "a", "b", "c", "d")
	order := operationOrder(spec)

	want := []string{"c", "a", "b", "d"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

// stubRunner — runner только с идентичностью, для тестов таблицы.
type stubRunner struct {
	engine.Runner
	id   int64
	name string
}

func newStubRunner(id int64, name string) *stubRunner {
	return &stubRunner{id: id, name: name}
}

func (s *stubRunner) ID() int64      { return s.id }
func (s *stubRunner) IDName() string { return s.name }

func specOf(sequence []string, operations ...string) *domain.WorkflowSpec {
	spec := &domain.WorkflowSpec{
		Operations: make(map[string]domain.OperationDef, len(operations)),
		Sequence:   sequence,
	}
	for _, name := range operations {
		spec.Operations[name] = domain.OperationDef{Factory: "probe", ConfigFileName: name + ".json"}
	}
	return spec
}
