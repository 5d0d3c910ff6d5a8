package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorCode — машинно-читаемый код ошибки в ответе.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// envelope — тело успешного ответа. Total заполняется только для списков.
type envelope struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// ErrorResponse — тело ответа с ошибкой: {"error": {"code", "message"}}.
type ErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, resp)
}

// Success — 200 с объектом.
func Success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

// List — 200 со списком и его длиной.
func List(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, envelope{Data: data, Total: total})
}

// Accepted — 202: сессия запущена в фоне.
func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, envelope{Data: data})
}

func BadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func NotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func Conflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// Unavailable — 503: журнал или планировщик не настроены.
func Unavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// InternalError — 500. Детали ошибки пишутся в лог, клиенту не отдаются.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("internal error", "error", err)
	}
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}
