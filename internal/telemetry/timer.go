package telemetry

import (
	"fmt"
	"sync"
	"time"
)

// FormatDuration форматирует длительность для отчётов:
// "1 hours 02 minutes 03 seconds". Доли секунды отбрасываются.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, rest := total/3600, total%3600
	return fmt.Sprintf("%d hours %02d minutes %02d seconds", h, rest/60, rest%60)
}

// Timer — секундомер с кругами.
type Timer struct {
	mu    sync.Mutex
	now   func() time.Time
	start time.Time
	last  time.Time
}

// NewTimer создаёт и запускает Timer.
func NewTimer() *Timer {
	return newTimer(time.Now)
}

func newTimer(now func() time.Time) *Timer {
	t := &Timer{now: now}
	t.Start()
	return t
}

// Start перезапускает секундомер.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = t.now()
	t.last = t.start
}

// Lap возвращает длительность с предыдущего круга (или со старта).
func (t *Timer) Lap() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	d := now.Sub(t.last)
	t.last = now
	return d
}

// Stop возвращает полное время работы и перезапускает секундомер.
func (t *Timer) Stop() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	d := now.Sub(t.start)
	t.start = now
	t.last = now
	return d
}
