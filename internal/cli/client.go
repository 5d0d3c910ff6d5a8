package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SessionResponse — сессия из API.
type SessionResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	JobID       string  `json:"job_id"`
	Status      string  `json:"status"`
	Trigger     string  `json:"trigger,omitempty"`
	WorkDir     string  `json:"work_dir,omitempty"`
	Message     string  `json:"message,omitempty"`
	StartedAt   string  `json:"started_at"`
	FinishedAt  string  `json:"finished_at,omitempty"`
	DurationSec float64 `json:"duration_sec,omitempty"`
}

// RunnerRecordResponse — результат runner'а из API.
type RunnerRecordResponse struct {
	IDName      string  `json:"id_name"`
	WorkflowID  string  `json:"workflow_id"`
	Status      string  `json:"status"`
	Message     string  `json:"message,omitempty"`
	DurationSec float64 `json:"duration_sec"`
	FinishedAt  string  `json:"finished_at"`
}

// SessionDetailResponse — сессия с результатами runner'ов.
type SessionDetailResponse struct {
	SessionResponse
	Runners []RunnerRecordResponse `json:"runners"`
}

// TriggerResponse — ответ на ручной запуск.
type TriggerResponse struct {
	JobID   string `json:"job_id"`
	Trigger string `json:"trigger"`
}

// ScheduleResponse — состояние планировщика.
type ScheduleResponse struct {
	JobID   string `json:"job_id"`
	Running bool   `json:"running"`
	NextRun string `json:"next_run,omitempty"`
}

// ListSessionsOpts — параметры фильтрации сессий.
type ListSessionsOpts struct {
	JobID  string
	Status string
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API conveyor-server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Sessions ---

// ListSessions возвращает сессии из журнала, новые первыми.
func (c *Client) ListSessions(opts ListSessionsOpts) ([]SessionResponse, error) {
	params := url.Values{}
	if opts.JobID != "" {
		params.Set("job_id", opts.JobID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var sessions []SessionResponse
	err := c.list("/api/v1/sessions", params, &sessions)
	return sessions, err
}

// GetSession возвращает сессию с результатами runner'ов.
func (c *Client) GetSession(id string) (*SessionDetailResponse, error) {
	var session SessionDetailResponse
	err := c.get("/api/v1/sessions/"+url.PathEscape(id), &session)
	return &session, err
}

// TriggerSession просит сервер запустить сессию вне расписания.
func (c *Client) TriggerSession() (*TriggerResponse, error) {
	var resp TriggerResponse
	err := c.post("/api/v1/sessions", nil, &resp)
	return &resp, err
}

// --- Schedule ---

// GetSchedule возвращает состояние планировщика.
func (c *Client) GetSchedule() (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedule", &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}

// APIError — ответ API с кодом 4xx/5xx.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
