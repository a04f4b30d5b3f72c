package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// StatusHandler handles health and version endpoints.
type StatusHandler struct {
	version string
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(version string) *StatusHandler {
	return &StatusHandler{version: version}
}

// RegisterRoutes registers the status routes.
func (h *StatusHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/health", h.health).Methods("GET")
}

func (h *StatusHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}
