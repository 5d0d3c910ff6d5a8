package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel разбирает уровень логирования.
// Возможные значения: DEBUG, INFO, WARN (WARNING), ERROR, без учёта регистра.
// Неизвестное значение → INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevel определяет уровень логирования из переменной окружения LOG_LEVEL.
// По умолчанию: INFO
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию) — JSON формат для production
//   - "text" — человекочитаемый формат для разработки
func SetupLogger() *slog.Logger {
	logger := slog.New(NewHandler(os.Stdout, os.Getenv("LOG_FORMAT"), LogLevel()))
	slog.SetDefault(logger)
	return logger
}

// NewHandler создаёт handler в формате format ("text" или "json").
func NewHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level.Level() == slog.LevelDebug,
	}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// FanoutHandler рассылает запись всем вложенным handler'ам.
//
// Каждый handler сам решает по своему уровню, принимать ли запись,
// так один логгер пишет и в консоль, и в файлы сессии разных уровней.
type FanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler создаёт FanoutHandler.
func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

// Enabled реализует slog.Handler.
func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle реализует slog.Handler.
func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs реализует slog.Handler.
func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: next}
}

// WithGroup реализует slog.Handler.
func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithGroup(name)
	}
	return &FanoutHandler{handlers: next}
}

// Discard возвращает логгер, который ничего не пишет.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithSessionID возвращает логгер с добавленным session.
func WithSessionID(logger *slog.Logger, session string) *slog.Logger {
	return logger.With("session", session)
}

// WithRunner возвращает логгер с добавленным runner.
func WithRunner(logger *slog.Logger, idName string) *slog.Logger {
	return logger.With("runner", idName)
}

// WithWorkflowID возвращает логгер с добавленным workflow_id.
func WithWorkflowID(logger *slog.Logger, workflowID string) *slog.Logger {
	return logger.With("workflow_id", workflowID)
}
