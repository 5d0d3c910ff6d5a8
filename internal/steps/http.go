package steps

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 4 * 1024
)

// Ключи конфигурации HTTP runner'а.
const (
	configMethod          = "method"
	configURL             = "url"
	configHeaders         = "headers"
	configBody            = "body"
	configFollowRedirects = "follow_redirects"
	configValidateSSL     = "validate_ssl"
	configTimeoutSec      = "timeout_sec"
	configExpectStatus    = "expect_status"
)

// NewHTTPFactory возвращает фабрику HTTP runner'а.
//
// Выполняет HTTP запрос и падает, если статус ответа не ожидаемый.
//
// Конфигурация:
//
//	{
//	    "workflowId": "notify",
//	    "provides": ["notified"],
//	    "requires": ["report"],
//	    "method": "POST",
//	    "url": "https://hooks.example.com/{{ .Vars.job_id }}",
//	    "headers": {"Authorization": "Bearer {{ .Env.HOOK_TOKEN }}"},
//	    "body": {"session": "{{ .Vars.session_id }}"},
//	    "follow_redirects": true,
//	    "validate_ssl": true,
//	    "timeout_sec": 30,
//	    "expect_status": [200, 202]   // по умолчанию любой 2xx
//	}
func NewHTTPFactory() engine.Factory {
	return newFactory(FactoryHTTP, func(cfg *domain.RunnerConfig) (engine.Body, error) {
		hc, err := parseHTTPConfig(cfg.Fields)
		if err != nil {
			return nil, err
		}
		return &httpBody{cfg: hc}, nil
	})
}

// httpConfig — распарсенная конфигурация HTTP runner'а.
type httpConfig struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            any
	FollowRedirects bool
	ValidateSSL     bool
	Timeout         time.Duration
	ExpectStatus    []int
}

// parseHTTPConfig парсит конфигурацию HTTP runner'а.
func parseHTTPConfig(config map[string]any) (*httpConfig, error) {
	cfg := &httpConfig{
		Method:          GetConfigString(config, configMethod),
		URL:             GetConfigString(config, configURL),
		Headers:         GetConfigMapString(config, configHeaders),
		Body:            config[configBody],
		FollowRedirects: GetConfigBool(config, configFollowRedirects, true),
		ValidateSSL:     GetConfigBool(config, configValidateSSL, true),
		Timeout:         defaultHTTPTimeout,
		ExpectStatus:    GetConfigInts(config, configExpectStatus),
	}

	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, FactoryHTTP)
	}

	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	cfg.Method = strings.ToUpper(cfg.Method)

	if sec := GetConfigInt(config, configTimeoutSec); sec > 0 {
		cfg.Timeout = time.Duration(sec) * time.Second
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return cfg, nil
}

type httpBody struct {
	cfg *httpConfig
}

// Run выполняет HTTP запрос.
func (b *httpBody) Run(ctx context.Context, t *engine.Task) error {
	client := b.buildClient()

	req, err := b.buildRequest(ctx)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	t.Logger().Debug("http response",
		"method", b.cfg.Method,
		"url", b.cfg.URL,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if !b.expected(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	// Дочитываем тело, чтобы соединение вернулось в пул
	_, _ = io.Copy(io.Discard, resp.Body)

	t.SetMessage(fmt.Sprintf("%s %s: %d", b.cfg.Method, b.cfg.URL, resp.StatusCode))
	return nil
}

// expected проверяет статус ответа.
func (b *httpBody) expected(status int) bool {
	if len(b.cfg.ExpectStatus) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range b.cfg.ExpectStatus {
		if s == status {
			return true
		}
	}
	return false
}

// buildClient создаёт HTTP клиент с нужными настройками.
func (b *httpBody) buildClient() *http.Client {
	var checkRedirect func(*http.Request, []*http.Request) error
	if !b.cfg.FollowRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &http.Client{
		Timeout:       b.cfg.Timeout,
		CheckRedirect: checkRedirect,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !b.cfg.ValidateSSL},
		},
	}
}

// buildRequest создаёт HTTP запрос.
func (b *httpBody) buildRequest(ctx context.Context) (*http.Request, error) {
	var bodyReader io.Reader
	headers := make(map[string]string, len(b.cfg.Headers)+1)
	for k, v := range b.cfg.Headers {
		headers[k] = v
	}

	if b.cfg.Body != nil {
		data, err := serializeBody(b.cfg.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(data)

		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, b.cfg.Method, b.cfg.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

// serializeBody сериализует body: строки как есть, остальное в JSON.
func serializeBody(body any) ([]byte, error) {
	if s, ok := body.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(body)
}

// HTTPError — неожиданный статус ответа.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error реализует интерфейс error.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Status, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}
