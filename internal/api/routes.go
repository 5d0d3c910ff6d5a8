package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestID(h.logger),
		Recovery(),
		Logging(),
	)

	// Sessions
	mux.Handle("GET /api/v1/sessions", chain(http.HandlerFunc(h.ListSessions)))
	mux.Handle("POST /api/v1/sessions", chain(http.HandlerFunc(h.TriggerSession)))
	mux.Handle("GET /api/v1/sessions/{id}", chain(http.HandlerFunc(h.GetSession)))

	// Schedule
	mux.Handle("GET /api/v1/schedule", chain(http.HandlerFunc(h.GetSchedule)))
}
