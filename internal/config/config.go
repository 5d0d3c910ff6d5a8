package config

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// Значения по умолчанию.
const (
	DefaultConfigDir = "config"
	DefaultRunFolder = "run"
	DefaultLogLevel  = "DEBUG"
	DefaultAddr      = ":8080"
)

// ErrMissingField — в конфигурации приложения нет обязательного поля.
var ErrMissingField = errors.New("missing required field")

// App — конфигурация приложения.
type App struct {
	// JobID — идентификатор задания, входит в имя сессии и имена файлов.
	JobID string `json:"jobId"`

	// RunFolder — корень рабочих папок сессий.
	RunFolder string `json:"runFolder"`

	Logger LoggerConfig `json:"logger"`

	// MainWorkflow — главный workflow сессии (обязателен).
	MainWorkflow domain.WorkflowRef `json:"mainWorkflow"`

	// SuccessWorkflow — выполняется после успешного главного workflow.
	SuccessWorkflow *domain.WorkflowRef `json:"successWorkflow,omitempty"`

	// ErrorWorkflow — выполняется после неуспешного главного workflow.
	ErrorWorkflow *domain.WorkflowRef `json:"errorWorkflow,omitempty"`

	Database DatabaseConfig `json:"database"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
	Server   ServerConfig   `json:"server"`
	Schedule ScheduleConfig `json:"schedule"`

	// Dir — папка, из которой загружена конфигурация.
	Dir string `json:"-"`

	// Name — имя файла конфигурации.
	Name string `json:"-"`
}

// LoggerConfig — настройки журналов сессии.
type LoggerConfig struct {
	// LogLevel — минимальный уровень основного журнала: DEBUG, INFO, WARN, ERROR.
	LogLevel string `json:"loglevel"`

	// Format — формат консольного вывода: "text" или "json".
	Format string `json:"format"`
}

// DatabaseConfig — журнал сессий в PostgreSQL (пустой URL → без журнала).
type DatabaseConfig struct {
	URL string `json:"url"`
}

// RabbitMQConfig — публикация событий (пустой URL → без публикации).
type RabbitMQConfig struct {
	URL string `json:"url"`
}

// ServerConfig — HTTP сервер conveyor-server.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// ScheduleConfig — запуск сессий по расписанию.
type ScheduleConfig struct {
	// Cron — cron выражение (5 полей). Пусто → без расписания.
	Cron string `json:"cron"`

	// Timezone — часовой пояс (IANA). Пусто → UTC.
	Timezone string `json:"timezone"`
}

// Location возвращает часовой пояс расписания.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// ConfigDir возвращает папку конфигурации: CONVEYOR_CONFIG_DIR или "config".
func ConfigDir() string {
	if v := os.Getenv("CONVEYOR_CONFIG_DIR"); v != "" {
		return v
	}
	return DefaultConfigDir
}

// Load читает конфигурацию приложения name из папки src,
// применяет переменные окружения и значения по умолчанию и проверяет её.
func Load(src Dir, name string) (*App, error) {
	data, err := src.Read(name)
	if err != nil {
		return nil, engine.NewConfigurationError(name, "", "read app config", err)
	}

	app, err := Parse(data)
	if err != nil {
		return nil, engine.NewConfigurationError(name, "", "parse app config", err)
	}
	app.Dir = src.Path()
	app.Name = name

	app.applyEnv()
	app.applyDefaults()

	if err := app.Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

// Parse разбирает JSON конфигурацию приложения без проверки.
func Parse(data []byte) (*App, error) {
	var app App
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// applyEnv переопределяет поля переменными окружения.
func (a *App) applyEnv() {
	overrides := []struct {
		env   string
		field *string
	}{
		{"LOG_LEVEL", &a.Logger.LogLevel},
		{"LOG_FORMAT", &a.Logger.Format},
		{"DB_URL", &a.Database.URL},
		{"RABBITMQ_URL", &a.RabbitMQ.URL},
		{"CONVEYOR_ADDR", &a.Server.Addr},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.field = v
		}
	}
}

func (a *App) applyDefaults() {
	if a.RunFolder == "" {
		a.RunFolder = DefaultRunFolder
	}
	if a.Logger.LogLevel == "" {
		a.Logger.LogLevel = DefaultLogLevel
	}
	if a.Server.Addr == "" {
		a.Server.Addr = DefaultAddr
	}
}

// Validate проверяет обязательные поля.
func (a *App) Validate() error {
	if strings.TrimSpace(a.JobID) == "" {
		return missing(a.Name, "jobId")
	}
	if strings.ContainsAny(a.JobID, `/\`) {
		return engine.NewConfigurationError(a.Name, "jobId", "jobId must not contain path separators", nil)
	}
	if a.MainWorkflow.Factory == "" {
		return missing(a.Name, "mainWorkflow.factory")
	}
	if a.MainWorkflow.Config == "" {
		return missing(a.Name, "mainWorkflow.config")
	}
	optional := []struct {
		field string
		ref   *domain.WorkflowRef
	}{
		{"successWorkflow", a.SuccessWorkflow},
		{"errorWorkflow", a.ErrorWorkflow},
	}
	for _, o := range optional {
		if o.ref.IsZero() {
			continue
		}
		if o.ref.Factory == "" || o.ref.Config == "" {
			return engine.NewConfigurationError(a.Name, o.field, o.field+": factory and config are both required", nil)
		}
	}
	if _, err := a.Schedule.Location(); err != nil {
		return engine.NewConfigurationError(a.Name, "schedule.timezone", err.Error(), err)
	}
	return nil
}

func missing(config, field string) error {
	return engine.NewConfigurationError(config, field, ErrMissingField.Error()+" "+field, ErrMissingField)
}
