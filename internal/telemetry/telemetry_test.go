package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Conveyor/internal/domain"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARNING", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFanoutHandler_LevelsPerHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	logger := slog.New(NewFanoutHandler(
		NewHandler(&debug, "text", slog.LevelDebug),
		NewHandler(&warn, "text", slog.LevelWarn),
	))
	logger = WithSessionID(logger, "s1")

	logger.Debug("details")
	logger.Warn("careful")

	if !strings.Contains(debug.String(), "details") || !strings.Contains(debug.String(), "careful") {
		t.Errorf("debug handler should get both records: %s", debug.String())
	}
	if strings.Contains(warn.String(), "details") {
		t.Error("warn handler should not get debug records")
	}
	if !strings.Contains(warn.String(), "careful") || !strings.Contains(warn.String(), "session=s1") {
		t.Errorf("warn handler should get warn record with attrs: %s", warn.String())
	}
}

func TestFanoutHandler_Enabled(t *testing.T) {
	h := NewFanoutHandler(NewHandler(&bytes.Buffer{}, "json", slog.LevelError))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger")
	}
	logger := Discard()
	if FromContext(WithLogger(context.Background(), logger)) != logger {
		t.Error("expected logger from context")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 hours 00 minutes 00 seconds"},
		{1500 * time.Millisecond, "0 hours 00 minutes 01 seconds"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1 hours 02 minutes 03 seconds"},
		{26 * time.Hour, "26 hours 00 minutes 00 seconds"},
		{-time.Second, "0 hours 00 minutes 00 seconds"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTimer(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	timer := newTimer(func() time.Time { return now })

	now = now.Add(2 * time.Second)
	if d := timer.Lap(); d != 2*time.Second {
		t.Errorf("first lap = %s", d)
	}
	now = now.Add(3 * time.Second)
	if d := timer.Lap(); d != 3*time.Second {
		t.Errorf("second lap = %s", d)
	}
	now = now.Add(6 * time.Second)
	if d := timer.Stop(); d != 11*time.Second {
		t.Errorf("stop = %s", d)
	}
	now = now.Add(time.Second)
	if d := timer.Lap(); d != time.Second {
		t.Errorf("lap after stop = %s", d)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RunnerStarted("noop")
	m.RunnerStarted("noop")
	if got := testutil.ToFloat64(m.runnerRunning.WithLabelValues("noop")); got != 2 {
		t.Errorf("running = %v, want 2", got)
	}

	m.RunnerFinished("noop", domain.Success("ok"), time.Second)
	m.RunnerFinished("noop", domain.Failure("bad"), time.Second)
	m.DependencyWait("noop", time.Millisecond)
	m.SessionFinished(domain.SessionStatusSucceeded, time.Minute)

	if got := testutil.ToFloat64(m.runnerRunning.WithLabelValues("noop")); got != 0 {
		t.Errorf("running = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.runnerResults.WithLabelValues("noop", "SUCCESS")); got != 1 {
		t.Errorf("success results = %v", got)
	}
	if got := testutil.ToFloat64(m.runnerResults.WithLabelValues("noop", "FAILURE")); got != 1 {
		t.Errorf("failure results = %v", got)
	}
	if got := testutil.ToFloat64(m.sessionResults.WithLabelValues(string(domain.SessionStatusSucceeded))); got != 1 {
		t.Errorf("session results = %v", got)
	}
	if n := testutil.CollectAndCount(m.dependencyWait); n != 1 {
		t.Errorf("dependency wait series = %d", n)
	}
}
