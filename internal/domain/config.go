package domain

import "encoding/json"

// RunnerConfig — конфигурация runner'а (содержимое его config-файла).
//
// Общие поля обязательны для любого runner'а; всё остальное
// относится к конкретной фабрике и лежит в Fields.
//
//	{
//	    "workflowId": "fetch-orders",
//	    "provides":   ["orders"],
//	    "requires":   [],
//	    "url":        "http://example.com/orders"
//	}
type RunnerConfig struct {
	// Name — имя config-файла, из которого загружена конфигурация.
	Name string `json:"-"`

	// WorkflowID — идентификатор workflow (обязателен).
	WorkflowID *string `json:"workflowId"`

	// Provides — ключи, которые runner публикует по завершении (обязателен, может быть пустым).
	Provides []string `json:"provides"`

	// Requires — ключи, которые runner ждёт перед запуском (обязателен, может быть пустым).
	Requires []string `json:"requires"`

	// Fields — все поля config-файла, включая специфичные для фабрики.
	Fields map[string]any `json:"-"`
}

// ParseRunnerConfig разбирает JSON конфигурацию runner'а.
//
// Отсутствующие или null provides/requires остаются nil — это отличается
// от пустого списка и проверяется при создании runner'а.
func ParseRunnerConfig(name string, data []byte) (*RunnerConfig, error) {
	var cfg RunnerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	// "provides": [] даёт пустой, но не nil слайс; null считается отсутствием
	if v, ok := fields["provides"]; ok && v != nil && cfg.Provides == nil {
		cfg.Provides = []string{}
	}
	if v, ok := fields["requires"]; ok && v != nil && cfg.Requires == nil {
		cfg.Requires = []string{}
	}

	cfg.Name = name
	cfg.Fields = fields
	return &cfg, nil
}

// ID возвращает workflowId или пустую строку.
func (c *RunnerConfig) ID() string {
	if c.WorkflowID == nil {
		return ""
	}
	return *c.WorkflowID
}

// OperationDef — описание операции workflow.
type OperationDef struct {
	// Factory — имя фабрики в реестре.
	Factory string `json:"factory"`

	// ConfigFileName — config-файл, передаваемый фабрике.
	ConfigFileName string `json:"configFileName"`
}

// WorkflowSpec — спецификация составного workflow.
//
//	{
//	    "workflowId": "nightly",
//	    "provides": [], "requires": [],
//	    "operations": {
//	        "fetch":  {"factory": "http",  "configFileName": "fetch.json"},
//	        "report": {"factory": "noop",  "configFileName": "report.json"}
//	    },
//	    "workflow": ["fetch", "report"]
//	}
type WorkflowSpec struct {
	// Operations — операции по имени (nil, если ключ отсутствует в конфиге).
	Operations map[string]OperationDef `json:"operations"`

	// Sequence — порядок операций. Определяет и порядок создания,
	// и то, кто может быть провайдером: только более ранние операции.
	Sequence []string `json:"workflow"`
}

// ParseWorkflowSpec разбирает JSON спецификацию workflow.
func ParseWorkflowSpec(data []byte) (*WorkflowSpec, error) {
	var spec WorkflowSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// WorkflowRef — ссылка на workflow в конфигурации приложения.
type WorkflowRef struct {
	// Factory — имя фабрики.
	Factory string `json:"factory"`

	// Config — config-файл workflow.
	Config string `json:"config"`
}

// IsZero возвращает true, если ссылка не задана.
func (r *WorkflowRef) IsZero() bool {
	return r == nil || (r.Factory == "" && r.Config == "")
}
