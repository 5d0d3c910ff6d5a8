package steps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// NewReportDigestFactory возвращает фабрику runner'а, который собирает
// логи и/или отчёты сессии в один файл-дайджест в рабочей папке сессии.
//
// Конфигурация:
//
//	{
//	    "workflowId": "digest",
//	    "provides": [],
//	    "requires": ["tested"],
//	    "attachLogFiles": "True",
//	    "attachReportFiles": true,
//	    "output": "session-digest.txt"    // по умолчанию <workflowId>-digest.txt
//	}
func NewReportDigestFactory() engine.Factory {
	return newFactory(FactoryReportDigest, func(cfg *domain.RunnerConfig) (engine.Body, error) {
		output := GetConfigString(cfg.Fields, "output")
		if output == "" {
			output = cfg.ID() + "-digest.txt"
		}
		if filepath.IsAbs(output) || strings.Contains(output, "..") {
			return nil, fmt.Errorf("%w: %s: output must be a plain file name", ErrInvalidConfig, FactoryReportDigest)
		}
		return &digestBody{
			attachLogs:    GetConfigBool(cfg.Fields, "attachLogFiles", false),
			attachReports: GetConfigBool(cfg.Fields, "attachReportFiles", false),
			output:        output,
		}, nil
	})
}

type digestBody struct {
	attachLogs    bool
	attachReports bool
	output        string
}

// Run собирает файлы и пишет дайджест.
func (b *digestBody) Run(ctx context.Context, t *engine.Task) error {
	env := t.Env()
	if env.WorkDir == "" {
		return ErrNoSessionDir
	}

	var files []string
	if b.attachReports {
		found, err := listFiles(env.ReportDir)
		if err != nil {
			return fmt.Errorf("collect reports: %w", err)
		}
		files = append(files, found...)
	}
	if b.attachLogs {
		found, err := listFiles(env.LogDir)
		if err != nil {
			return fmt.Errorf("collect logs: %w", err)
		}
		files = append(files, found...)
	}
	t.Logger().Debug("collecting digest", "files", len(files))

	path := filepath.Join(env.WorkDir, b.output)
	if err := writeDigest(ctx, path, env.Session, files); err != nil {
		return err
	}

	t.SetMessage(fmt.Sprintf("digest of %d files written to %s", len(files), path))
	return nil
}

// listFiles возвращает файлы папки в алфавитном порядке (без подпапок).
func listFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, ErrNoSessionDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func writeDigest(ctx context.Context, path, session string, files []string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create digest: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	fmt.Fprintf(w, "Session: %s\n\n", session)

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrStepCancelled, err)
		}
		fmt.Fprintf(w, "%s %s\n", strings.Repeat("-", 24), filepath.Base(name))
		if err := appendFile(w, name); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s\n\n", strings.Repeat("-", 80))
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	return out.Close()
}

func appendFile(w io.Writer, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}
