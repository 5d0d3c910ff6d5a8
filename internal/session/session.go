// Package session готовит окружение одного запуска: имя сессии,
// рабочую папку, журналы и отчёты, engine.Env для runner'ов.
//
// Структура рабочей папки:
//
//	run/
//	└── 2026.10.17_03.00-nightly/
//	    ├── logs/
//	    │   ├── nightly-debug.log
//	    │   └── nightly-info.log
//	    └── reports/
//	        ├── nightly.report            INFO и выше
//	        └── nightly-warn_err.report   WARN и выше
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shaiso/Conveyor/internal/config"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

const (
	nameLayout = "2006.01.02_15.04"

	logsFolder    = "logs"
	reportsFolder = "reports"

	// maxNameAttempts — сколько суффиксов пробуем, если папка сессии уже есть.
	maxNameAttempts = 100
)

// ErrSessionExists — не удалось подобрать свободное имя сессии.
var ErrSessionExists = errors.New("session directory already exists")

// Options — параметры открытия сессии.
type Options struct {
	// App — конфигурация приложения (обязательна).
	App *config.App

	// Trigger — источник запуска: "cli", "schedule", "api".
	Trigger string

	// Console — handler консольного вывода (nil → без консоли).
	Console slog.Handler

	// Factories — реестр фабрик.
	Factories *engine.Registry

	// Configs — источник config-файлов (nil → папка конфигурации приложения).
	Configs engine.ConfigSource

	// Metrics — метрики runner'ов (nil → без метрик).
	Metrics engine.Recorder

	// Events — получатель событий (nil → без событий).
	Events engine.EventSink

	// Now — часы (nil → time.Now).
	Now func() time.Time
}

// Session — открытая сессия. Закрывается через Close.
type Session struct {
	// Record — запись сессии для журнала и событий.
	Record *domain.Session

	// Env — окружение runner'ов сессии.
	Env *engine.Env

	Logger   *slog.Logger
	Reporter *slog.Logger

	WorkDir   string
	LogDir    string
	ReportDir string

	files []*os.File
}

// Name возвращает имя сессии: "YYYY.MM.DD_HH.MM-<jobId>".
func Name(now time.Time, jobID string) string {
	return now.Format(nameLayout) + "-" + jobID
}

// Open создаёт рабочую папку сессии, открывает файлы журналов и отчётов
// и собирает engine.Env.
func Open(opts Options) (*Session, error) {
	if opts.App == nil {
		return nil, errors.New("session: app config is required")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	app := opts.App

	runFolder, err := filepath.Abs(app.RunFolder)
	if err != nil {
		return nil, fmt.Errorf("resolve run folder: %w", err)
	}
	if err := ensureDir(runFolder); err != nil {
		return nil, err
	}

	name, workDir, err := createWorkDir(runFolder, Name(now(), app.JobID))
	if err != nil {
		return nil, err
	}

	s := &Session{
		Record:    domain.NewSession(name, app.JobID, opts.Trigger),
		WorkDir:   workDir,
		LogDir:    filepath.Join(workDir, logsFolder),
		ReportDir: filepath.Join(workDir, reportsFolder),
	}
	s.Record.WorkDir = workDir

	for _, dir := range []string{s.LogDir, s.ReportDir} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	if err := s.openLoggers(app, opts.Console); err != nil {
		s.Close()
		return nil, err
	}

	configs := opts.Configs
	if configs == nil {
		configs = config.Dir(app.Dir)
	}

	s.Env = &engine.Env{
		Logger:    s.Logger,
		Reporter:  s.Reporter,
		Configs:   configs,
		Factories: opts.Factories,
		Metrics:   opts.Metrics,
		Events:    opts.Events,
		Session:   name,
		WorkDir:   s.WorkDir,
		LogDir:    s.LogDir,
		ReportDir: s.ReportDir,
		Vars: map[string]string{
			"session_id": name,
			"job_id":     app.JobID,
			"work_dir":   s.WorkDir,
			"log_dir":    s.LogDir,
			"report_dir": s.ReportDir,
			"trigger":    opts.Trigger,
		},
	}

	s.Logger.Debug("session opened", "work_dir", s.WorkDir)
	return s, nil
}

// openLoggers открывает файлы журналов и отчётов.
func (s *Session) openLoggers(app *config.App, console slog.Handler) error {
	level := telemetry.ParseLevel(app.Logger.LogLevel)

	debugLog, err := s.create(s.LogDir, app.JobID+"-debug.log")
	if err != nil {
		return err
	}
	infoLog, err := s.create(s.LogDir, app.JobID+"-info.log")
	if err != nil {
		return err
	}
	report, err := s.create(s.ReportDir, app.JobID+".report")
	if err != nil {
		return err
	}
	warnReport, err := s.create(s.ReportDir, app.JobID+"-warn_err.report")
	if err != nil {
		return err
	}

	logHandlers := []slog.Handler{
		fileHandler(debugLog, maxLevel(slog.LevelDebug, level)),
		fileHandler(infoLog, maxLevel(slog.LevelInfo, level)),
	}
	if console != nil {
		logHandlers = append(logHandlers, console)
	}

	s.Logger = telemetry.WithSessionID(slog.New(telemetry.NewFanoutHandler(logHandlers...)), s.Record.Name)
	s.Reporter = slog.New(telemetry.NewFanoutHandler(
		fileHandler(report, slog.LevelInfo),
		fileHandler(warnReport, slog.LevelWarn),
	))
	return nil
}

func (s *Session) create(dir, name string) (*os.File, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	s.files = append(s.files, f)
	return f, nil
}

// Close закрывает файлы журналов и отчётов.
func (s *Session) Close() error {
	var errs []error
	for _, f := range s.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.files = nil
	return errors.Join(errs...)
}

func fileHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

func maxLevel(a, b slog.Level) slog.Level {
	if a > b {
		return a
	}
	return b
}

// ensureDir создаёт папку, если её нет. Существующий файл с тем же
// именем — ошибка.
func ensureDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s is not a folder", path)
	case err == nil:
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

// createWorkDir создаёт папку сессии. Если папка с таким именем уже есть
// (два запуска в одну минуту), к имени добавляется суффикс _2, _3, ...
func createWorkDir(runFolder, name string) (string, string, error) {
	candidate := name
	for i := 2; i <= maxNameAttempts+1; i++ {
		dir := filepath.Join(runFolder, candidate)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return candidate, dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", fmt.Errorf("create session dir: %w", err)
		}
		candidate = name + "_" + strconv.Itoa(i)
	}
	return "", "", fmt.Errorf("%w: %s", ErrSessionExists, name)
}
