package orchestrator

// RunState — учёт выполнения одного запуска workflow.
//
// Изменяется только циклом мониторинга, поэтому без блокировок.
type RunState struct {
	total int

	// running — запущенные операции (name → true).
	running map[string]bool

	// completed — успешно завершённые операции.
	completed map[string]bool

	// failed — операции, завершившиеся с ошибкой.
	failed map[string]bool

	// cancelling — workflow перестал ждать оставшиеся операции.
	cancelling bool
}

// NewRunState создаёт учёт для плана.
func NewRunState(plan *Plan) *RunState {
	return &RunState{
		total:     len(plan.Units),
		running:   make(map[string]bool, len(plan.Units)),
		completed: make(map[string]bool, len(plan.Units)),
		failed:    make(map[string]bool),
	}
}

// MarkRunning помечает операцию как запущенную.
func (s *RunState) MarkRunning(name string) {
	s.running[name] = true
}

// MarkCompleted помечает операцию как успешно завершённую.
func (s *RunState) MarkCompleted(name string) {
	delete(s.running, name)
	s.completed[name] = true
}

// MarkFailed помечает операцию как упавшую и переводит workflow в cancelling.
func (s *RunState) MarkFailed(name string) {
	delete(s.running, name)
	s.failed[name] = true
	s.cancelling = true
}

// Cancel переводит workflow в cancelling без упавшей операции (отмена ctx).
func (s *RunState) Cancel() {
	s.cancelling = true
}

// IsCancelling возвращает true после первой ошибки.
func (s *RunState) IsCancelling() bool {
	return s.cancelling
}

// IsComplete проверяет, все ли операции завершились успешно.
func (s *RunState) IsComplete() bool {
	return len(s.completed) == s.total
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	return RunStats{
		Total:     s.total,
		Running:   len(s.running),
		Completed: len(s.completed),
		Failed:    len(s.failed),
	}
}

// RunStats — статистика выполнения workflow.
type RunStats struct {
	Total     int
	Running   int
	Completed int
	Failed    int
}
