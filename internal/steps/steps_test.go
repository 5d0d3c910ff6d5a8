package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

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

func testEnv(configs memConfigs) *engine.Env {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &engine.Env{
		Logger:    logger,
		Reporter:  logger,
		Configs:   configs,
		Factories: DefaultRegistry(),
	}
}

// leafConfig собирает JSON конфигурацию leaf runner'а.
func leafConfig(t *testing.T, fields map[string]any) string {
	t.Helper()
	cfg := map[string]any{
		"workflowId": "leaf",
		"provides":   []string{},
		"requires":   []string{},
	}
	for k, v := range fields {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

// runLeaf создаёт runner фабрикой factory и выполняет его.
func runLeaf(t *testing.T, env *engine.Env, factory string, fields map[string]any) engine.Runner {
	t.Helper()
	if env.Configs == nil {
		env.Configs = memConfigs{}
	}
	env.Configs.(memConfigs)["leaf.json"] = leafConfig(t, fields)

	runner, err := env.Factories.Create(env, factory, "leaf.json")
	if err != nil {
		t.Fatalf("create %s: %v", factory, err)
	}
	if err := runner.Execute(context.Background()); err != nil {
		t.Fatalf("execute %s: %v", factory, err)
	}
	return runner
}

// Registry Tests

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	expected := []string{
		FactoryCommand, FactoryDelay, FactoryError,
		FactoryHTTP, FactoryNoop, FactoryReportDigest,
	}
	names := r.Names()
	if len(names) != len(expected) {
		t.Fatalf("expected %d factories, got %v", len(expected), names)
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("names[%d] = %s, want %s", i, names[i], name)
		}
	}
}

// Noop / Error Tests

func TestNoop(t *testing.T) {
	runner := runLeaf(t, testEnv(memConfigs{}), FactoryNoop, map[string]any{"message": "hi"})

	if !runner.IsResultSuccess() {
		t.Fatalf("expected success, got %s", runner.ResultMessage())
	}
	if runner.ResultMessage() != "hi" {
		t.Errorf("expected message hi, got %q", runner.ResultMessage())
	}
	if runner.State() != domain.StateSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", runner.State())
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		success bool
	}{
		{name: "not configured", fields: nil, success: true},
		{name: "false", fields: map[string]any{"error": false}, success: true},
		{name: "bool", fields: map[string]any{"error": true}, success: false},
		{name: "python-style string", fields: map[string]any{"error": "True"}, success: false},
		{name: "with message", fields: map[string]any{"error": true, "message": "boom"}, success: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := runLeaf(t, testEnv(memConfigs{}), FactoryError, tt.fields)

			if runner.IsResultSuccess() != tt.success {
				t.Fatalf("success = %v, want %v (%s)", runner.IsResultSuccess(), tt.success, runner.ResultMessage())
			}
			if !tt.success && !strings.Contains(runner.ResultMessage(), ErrForcedFailure.Error()) {
				t.Errorf("message should mention forced failure: %s", runner.ResultMessage())
			}
			if msg, _ := tt.fields["message"].(string); msg != "" && !strings.Contains(runner.ResultMessage(), msg) {
				t.Errorf("message should contain %q: %s", msg, runner.ResultMessage())
			}
		})
	}
}

// Delay Tests

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		expected time.Duration
		wantErr  bool
	}{
		{name: "seconds", config: map[string]any{"duration_sec": float64(2)}, expected: 2 * time.Second},
		{name: "milliseconds", config: map[string]any{"duration_ms": float64(150)}, expected: 150 * time.Millisecond},
		{name: "seconds win", config: map[string]any{"duration_sec": float64(1), "duration_ms": float64(5)}, expected: time.Second},
		{name: "missing", config: map[string]any{}, wantErr: true},
		{name: "zero", config: map[string]any{"duration_ms": float64(0)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDuration(tt.config)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, d)
			}
		})
	}
}

func TestDelay_Success(t *testing.T) {
	start := time.Now()
	runner := runLeaf(t, testEnv(memConfigs{}), FactoryDelay, map[string]any{"duration_ms": 50})

	if !runner.IsResultSuccess() {
		t.Fatalf("expected success, got %s", runner.ResultMessage())
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("delay too short: %s", elapsed)
	}
}

func TestDelay_Cancelled(t *testing.T) {
	env := testEnv(memConfigs{"leaf.json": leafConfig(t, map[string]any{"duration_sec": 10})})
	runner, err := env.Factories.Create(env, FactoryDelay, "leaf.json")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := runner.Execute(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("delay ignored cancellation")
	}
	if runner.IsResultSuccess() {
		t.Fatal("cancelled delay should fail")
	}
	if !strings.Contains(runner.ResultMessage(), ErrStepCancelled.Error()) {
		t.Errorf("unexpected message: %s", runner.ResultMessage())
	}
}

func TestDelay_InvalidConfigIsStructural(t *testing.T) {
	env := testEnv(memConfigs{"leaf.json": leafConfig(t, nil)})

	_, err := env.Factories.Create(env, FactoryDelay, "leaf.json")
	if !errors.Is(err, engine.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("should wrap ErrInvalidConfig: %v", err)
	}
	if !engine.IsStructural(err) {
		t.Error("invalid factory config should be structural")
	}
}

// HTTP Tests

func TestParseHTTPConfig(t *testing.T) {
	cfg, err := parseHTTPConfig(map[string]any{
		"url":           "http://example.com",
		"method":        "post",
		"timeout_sec":   float64(5),
		"expect_status": []any{float64(200), float64(404)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", cfg.Method)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.Timeout)
	}
	if !cfg.FollowRedirects || !cfg.ValidateSSL {
		t.Error("redirects and ssl validation should default to true")
	}
	if len(cfg.ExpectStatus) != 2 || cfg.ExpectStatus[1] != 404 {
		t.Errorf("unexpected expect_status %v", cfg.ExpectStatus)
	}

	if _, err := parseHTTPConfig(map[string]any{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing url: expected ErrInvalidConfig, got %v", err)
	}
}

func TestHTTP_Success(t *testing.T) {
	var gotBody map[string]any
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotHeader = r.Header.Get("X-Job")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	env := testEnv(memConfigs{})
	env.Vars = map[string]string{"job_id": "nightly"}

	runner := runLeaf(t, env, FactoryHTTP, map[string]any{
		"method":  "POST",
		"url":     server.URL + "/hook",
		"headers": map[string]any{"X-Job": "{{ .Vars.job_id }}"},
		"body":    map[string]any{"job": "{{ .Vars.job_id }}"},
	})

	if !runner.IsResultSuccess() {
		t.Fatalf("expected success, got %s", runner.ResultMessage())
	}
	if gotHeader != "nightly" {
		t.Errorf("header not rendered: %q", gotHeader)
	}
	if gotBody["job"] != "nightly" {
		t.Errorf("body not rendered: %v", gotBody)
	}
	if !strings.Contains(runner.ResultMessage(), "202") {
		t.Errorf("message should contain status: %s", runner.ResultMessage())
	}
}

func TestHTTP_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("database is down"))
	}))
	defer server.Close()

	runner := runLeaf(t, testEnv(memConfigs{}), FactoryHTTP, map[string]any{"url": server.URL})

	if runner.IsResultSuccess() {
		t.Fatal("500 should fail")
	}
	if !strings.Contains(runner.ResultMessage(), "HTTP 500") {
		t.Errorf("unexpected message: %s", runner.ResultMessage())
	}
	if !strings.Contains(runner.ResultMessage(), "database is down") {
		t.Errorf("message should carry response body: %s", runner.ResultMessage())
	}
}

func TestHTTP_ExpectStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	runner := runLeaf(t, testEnv(memConfigs{}), FactoryHTTP, map[string]any{
		"url":           server.URL,
		"expect_status": []int{404},
	})
	if !runner.IsResultSuccess() {
		t.Fatalf("404 is expected, got %s", runner.ResultMessage())
	}
}

func TestHTTP_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	runner := runLeaf(t, testEnv(memConfigs{}), FactoryHTTP, map[string]any{
		"url":              server.URL + "/start",
		"follow_redirects": false,
		"expect_status":    []int{302},
	})
	if !runner.IsResultSuccess() {
		t.Fatalf("redirect should not be followed: %s", runner.ResultMessage())
	}
}

func TestHTTP_Cancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	env := testEnv(memConfigs{"leaf.json": leafConfig(t, map[string]any{"url": server.URL})})
	runner, err := env.Factories.Create(env, FactoryHTTP, "leaf.json")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := runner.Execute(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.IsResultSuccess() {
		t.Fatal("cancelled request should fail")
	}
	if !strings.Contains(runner.ResultMessage(), ErrStepCancelled.Error()) {
		t.Errorf("unexpected message: %s", runner.ResultMessage())
	}
}

// Command Tests

func TestCommand_Success(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	env := testEnv(memConfigs{})
	env.LogDir = t.TempDir()

	runner := runLeaf(t, env, FactoryCommand, map[string]any{
		"command": "sh",
		"args":    []string{"-c", "echo compiled"},
	})
	if !runner.IsResultSuccess() {
		t.Fatalf("expected success, got %s", runner.ResultMessage())
	}

	logPath := filepath.Join(env.LogDir, fmt.Sprintf("cmd-%s.log", runner.IDName()))
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("command log not written: %v", err)
	}
	if !strings.Contains(string(data), "compiled") {
		t.Errorf("log should contain output: %s", data)
	}
}

func TestCommand_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	runner := runLeaf(t, testEnv(memConfigs{}), FactoryCommand, map[string]any{
		"command": "sh",
		"args":    []string{"-c", "echo first; echo tests failed; exit 3"},
	})
	if runner.IsResultSuccess() {
		t.Fatal("non-zero exit should fail")
	}
	if !strings.Contains(runner.ResultMessage(), "tests failed") {
		t.Errorf("message should carry last output line: %s", runner.ResultMessage())
	}
}

func TestCommand_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep")
	}

	runner := runLeaf(t, testEnv(memConfigs{}), FactoryCommand, map[string]any{
		"command":     "sleep",
		"args":        []string{"5"},
		"timeout_sec": 1,
	})
	if runner.IsResultSuccess() {
		t.Fatal("timed out command should fail")
	}
	if !strings.Contains(runner.ResultMessage(), ErrStepTimeout.Error()) {
		t.Errorf("unexpected message: %s", runner.ResultMessage())
	}
}

func TestCommand_MissingCommand(t *testing.T) {
	env := testEnv(memConfigs{"leaf.json": leafConfig(t, nil)})
	if _, err := env.Factories.Create(env, FactoryCommand, "leaf.json"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

// Report Digest Tests

func TestReportDigest(t *testing.T) {
	root := t.TempDir()
	env := testEnv(memConfigs{})
	env.Session = "2026.10.17_09.30-nightly"
	env.WorkDir = root
	env.LogDir = filepath.Join(root, "logs")
	env.ReportDir = filepath.Join(root, "reports")

	for dir, files := range map[string]map[string]string{
		env.LogDir:    {"nightly-info.log": "log line\n"},
		env.ReportDir: {"nightly.report": "all good\n", "nightly-warn_err.report": ""},
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for name, content := range files {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}

	runner := runLeaf(t, env, FactoryReportDigest, map[string]any{
		"attachLogFiles":    "True",
		"attachReportFiles": true,
		"output":            "digest.txt",
	})
	if !runner.IsResultSuccess() {
		t.Fatalf("expected success, got %s", runner.ResultMessage())
	}

	data, err := os.ReadFile(filepath.Join(root, "digest.txt"))
	if err != nil {
		t.Fatalf("digest not written: %v", err)
	}
	digest := string(data)

	if !strings.Contains(digest, env.Session) {
		t.Error("digest should name the session")
	}
	reportPos := strings.Index(digest, "nightly.report")
	logPos := strings.Index(digest, "nightly-info.log")
	if reportPos < 0 || logPos < 0 {
		t.Fatalf("digest misses files:\n%s", digest)
	}
	if reportPos > logPos {
		t.Error("reports should come before logs")
	}
	if !strings.Contains(digest, "all good") || !strings.Contains(digest, "log line") {
		t.Error("digest should contain file contents")
	}
	if !strings.Contains(runner.ResultMessage(), "3 files") {
		t.Errorf("unexpected message: %s", runner.ResultMessage())
	}
}

func TestReportDigest_NoSessionDir(t *testing.T) {
	runner := runLeaf(t, testEnv(memConfigs{}), FactoryReportDigest, nil)
	if runner.IsResultSuccess() {
		t.Fatal("digest without session dir should fail")
	}
	if !strings.Contains(runner.ResultMessage(), ErrNoSessionDir.Error()) {
		t.Errorf("unexpected message: %s", runner.ResultMessage())
	}
}

func TestReportDigest_RejectsPathOutput(t *testing.T) {
	env := testEnv(memConfigs{"leaf.json": leafConfig(t, map[string]any{"output": "../escape.txt"})})
	if _, err := env.Factories.Create(env, FactoryReportDigest, "leaf.json"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

// Config Helpers Tests

func TestGetConfigHelpers(t *testing.T) {
	var config map[string]any
	if err := json.Unmarshal([]byte(`{
		"s": "text",
		"n": 42,
		"b": "True",
		"h": {"A": "1", "B": 2},
		"l": ["x", 1, "y"],
		"i": [200, "bad", 204]
	}`), &config); err != nil {
		t.Fatal(err)
	}

	if got := GetConfigString(config, "s"); got != "text" {
		t.Errorf("GetConfigString = %q", got)
	}
	if got := GetConfigString(config, "n"); got != "" {
		t.Errorf("GetConfigString on number = %q", got)
	}
	if got := GetConfigInt(config, "n"); got != 42 {
		t.Errorf("GetConfigInt = %d", got)
	}
	if !GetConfigBool(config, "b", false) {
		t.Error("GetConfigBool should accept True")
	}
	if !GetConfigBool(config, "missing", true) {
		t.Error("GetConfigBool should return default")
	}
	if got := GetConfigMapString(config, "h"); len(got) != 1 || got["A"] != "1" {
		t.Errorf("GetConfigMapString = %v", got)
	}
	if got := GetConfigStrings(config, "l"); len(got) != 2 || got[1] != "y" {
		t.Errorf("GetConfigStrings = %v", got)
	}
	if got := GetConfigInts(config, "i"); len(got) != 2 || got[1] != 204 {
		t.Errorf("GetConfigInts = %v", got)
	}
}
