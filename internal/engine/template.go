package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"
)

// Context — контекст для рендеринга config-файлов.
//
// Используется в Go templates для доступа к данным:
//   - {{ .Vars.session_id }}
//   - {{ .Vars.log_dir }}
//   - {{ .Env.VAR_NAME }}
type Context struct {
	// Vars — переменные сессии.
	Vars map[string]string `json:"vars"`

	// Env — переменные окружения.
	Env map[string]string `json:"env"`
}

// NewContext создаёт контекст с переменными сессии и окружением процесса.
func NewContext(vars map[string]string) *Context {
	if vars == nil {
		vars = make(map[string]string)
	}
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return &Context{
		Vars: vars,
		Env:  env,
	}
}

// SetEnv устанавливает переменную окружения.
func (c *Context) SetEnv(key, value string) {
	c.Env[key] = value
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// now — текущее время в заданном формате
	"now": func(layout string) string {
		return time.Now().Format(layout)
	},

	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},
	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
}

// Render рендерит строковый шаблон с контекстом.
//
// Шаблон может содержать Go template выражения:
//
//	{{ .Vars.session_id }}
//	{{ .Env.HOME }}/reports
//	{{ default "8080" .Env.PORT }}
func Render(tmpl string, ctx *Context) (string, error) {
	// Проверяем, содержит ли строка шаблонные выражения
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderValue рендерит значение, полученное из JSON.
// Рекурсивно обрабатывает объекты и массивы; числа и bool возвращаются как есть.
func RenderValue(value any, ctx *Context) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return Render(v, ctx)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = rendered
		}
		return result, nil

	default:
		return value, nil
	}
}

// RenderConfig рендерит поля config-файла runner'а.
// Это обёртка над RenderValue для map[string]any.
func RenderConfig(config map[string]any, ctx *Context) (map[string]any, error) {
	if config == nil {
		return make(map[string]any), nil
	}

	rendered, err := RenderValue(config, ctx)
	if err != nil {
		return nil, err
	}

	result, ok := rendered.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected map, got %T", ErrTemplateRender, rendered)
	}

	return result, nil
}
