package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sitewatch/sitewatch/internal/database"
)

// ScanHandler handles scan execution endpoints.
type ScanHandler struct {
	repo    database.Repository
	service *ScanService
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(repo database.Repository, service *ScanService) *ScanHandler {
	return &ScanHandler{repo: repo, service: service}
}

// RegisterRoutes registers the scan routes.
func (h *ScanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/scans", h.listScans).Methods("GET")
	r.HandleFunc("/api/scans", h.startScan).Methods("POST")
	r.HandleFunc("/api/scans/{id}", h.getScan).Methods("GET")
	r.HandleFunc("/api/scans/{id}/result", h.getScanResult).Methods("GET")
}

type startScanRequest struct {
	SiteID string `json:"site_id"`
}

// startScan creates an execution and launches the scan in the background.
// The response carries the pending execution; poll its status for the
// result.
func (h *ScanHandler) startScan(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "startScan").Logger()

	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SiteID == "" {
		http.Error(w, "site_id is required", http.StatusBadRequest)
		return
	}

	if h.service.IsRunning(req.SiteID) {
		http.Error(w, "A scan is already in progress for this site", http.StatusConflict)
		return
	}

	execution, err := h.service.TriggerScan(r.Context(), req.SiteID)
	if err != nil {
		logger.Error().Err(err).Str("site", req.SiteID).Msg("Failed to trigger scan")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, execution)
}

// listScans returns executions, optionally filtered by site.
func (h *ScanHandler) listScans(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "listScans").Logger()
	siteID := r.URL.Query().Get("site_id")

	executions, err := h.repo.ListExecutions(r.Context(), siteID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list executions")
		http.Error(w, "Failed to list executions", http.StatusInternalServerError)
		return
	}
	if executions == nil {
		executions = []*database.Execution{}
	}

	// Result payloads can be large; the list view omits them.
	for _, e := range executions {
		e.Result = ""
	}

	writeJSON(w, http.StatusOK, executions)
}

func (h *ScanHandler) getScan(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getScan").Logger()
	id := mux.Vars(r)["id"]

	execution, err := h.repo.GetExecution(r.Context(), id)
	if err != nil {
		logger.Error().Err(err).Str("id", id).Msg("Failed to retrieve execution")
		http.Error(w, "Failed to retrieve execution", http.StatusInternalServerError)
		return
	}
	if execution == nil {
		http.Error(w, "Execution not found", http.StatusNotFound)
		return
	}

	execution.Result = ""
	writeJSON(w, http.StatusOK, execution)
}

// getScanResult returns the stored scan-result JSON of a completed
// execution.
func (h *ScanHandler) getScanResult(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getScanResult").Logger()
	id := mux.Vars(r)["id"]

	execution, err := h.repo.GetExecution(r.Context(), id)
	if err != nil {
		logger.Error().Err(err).Str("id", id).Msg("Failed to retrieve execution")
		http.Error(w, "Failed to retrieve execution", http.StatusInternalServerError)
		return
	}
	if execution == nil {
		http.Error(w, "Execution not found", http.StatusNotFound)
		return
	}
	if execution.Status != database.StatusCompleted {
		http.Error(w, "Execution has no result (status: "+execution.Status+")", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(execution.Result))
}
