package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

const defaultCommandTimeout = 5 * time.Minute

// NewCommandFactory возвращает фабрику runner'а внешней команды.
//
// Запускает команду, пишет её вывод в папку логов сессии
// (cmd-<runner>.log) и падает при ненулевом коде выхода.
//
// Конфигурация:
//
//	{
//	    "workflowId": "unit-tests",
//	    "provides": ["tested"],
//	    "requires": [],
//	    "command": "go",
//	    "args": ["test", "./..."],
//	    "dir": "/src/project",
//	    "timeout_sec": 600
//	}
func NewCommandFactory() engine.Factory {
	return newFactory(FactoryCommand, func(cfg *domain.RunnerConfig) (engine.Body, error) {
		cc := &commandConfig{
			Command: GetConfigString(cfg.Fields, "command"),
			Args:    GetConfigStrings(cfg.Fields, "args"),
			Dir:     GetConfigString(cfg.Fields, "dir"),
			Timeout: defaultCommandTimeout,
		}
		if cc.Command == "" {
			return nil, fmt.Errorf("%w: %s: command is required", ErrInvalidConfig, FactoryCommand)
		}
		if sec := GetConfigInt(cfg.Fields, configTimeoutSec); sec > 0 {
			cc.Timeout = time.Duration(sec) * time.Second
		}
		return &commandBody{cfg: cc}, nil
	})
}

type commandConfig struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
}

type commandBody struct {
	cfg *commandConfig
}

// Run выполняет команду.
func (b *commandBody) Run(ctx context.Context, t *engine.Task) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.cfg.Command, b.cfg.Args...)
	cmd.Dir = b.cfg.Dir

	start := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if logPath, logErr := b.writeLog(t, output); logErr != nil {
		t.Logger().Warn("command log not written", "error", logErr)
	} else if logPath != "" {
		t.Logger().Debug("command log written", "path", logPath)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrStepTimeout, b.cfg.Command, b.cfg.Timeout)
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %s", b.cfg.Command, err, lastLine(output))
	}

	t.SetMessage(fmt.Sprintf("%s finished in %s", b.cfg.Command, elapsed.Round(time.Millisecond)))
	return nil
}

// writeLog пишет вывод команды в папку логов сессии.
// Без папки логов вывод только попадает в сообщение об ошибке.
func (b *commandBody) writeLog(t *engine.Task, output []byte) (string, error) {
	dir := t.Env().LogDir
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("cmd-%s.log", t.IDName()))
	content := fmt.Sprintf("$ %s %s\n\n%s\n", b.cfg.Command, strings.Join(b.cfg.Args, " "), output)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write log: %w", err)
	}
	return path, nil
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return lines[len(lines)-1]
}
