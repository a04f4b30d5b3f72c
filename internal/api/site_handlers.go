package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sitewatch/sitewatch/internal/database"
	"github.com/sitewatch/sitewatch/pkg/scan"
)

// SiteHandler handles site configuration endpoints.
type SiteHandler struct {
	repo database.Repository
}

// NewSiteHandler creates a new site handler.
func NewSiteHandler(repo database.Repository) *SiteHandler {
	return &SiteHandler{repo: repo}
}

// RegisterRoutes registers the site routes.
func (h *SiteHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/sites", h.listSites).Methods("GET")
	r.HandleFunc("/api/sites", h.createSite).Methods("POST")
	r.HandleFunc("/api/sites/{id}", h.getSite).Methods("GET")
	r.HandleFunc("/api/sites/{id}/config", h.updateConfig).Methods("PUT")
	r.HandleFunc("/api/sites/{id}", h.deleteSite).Methods("DELETE")
}

type createSiteRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

func (h *SiteHandler) createSite(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "createSite").Logger()

	var req createSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Site name is required", http.StatusBadRequest)
		return
	}

	// The config must at least parse as a run configuration.
	var cfg scan.SiteConfig
	if err := json.Unmarshal(req.Config, &cfg); err != nil {
		http.Error(w, "Invalid site config", http.StatusBadRequest)
		return
	}

	site := &database.Site{Name: req.Name, Config: string(req.Config)}
	if err := h.repo.CreateSite(r.Context(), site); err != nil {
		logger.Error().Err(err).Str("name", req.Name).Msg("Failed to create site")
		http.Error(w, "Failed to create site", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, site)
}

func (h *SiteHandler) listSites(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "listSites").Logger()

	sites, err := h.repo.ListSites(r.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list sites")
		http.Error(w, "Failed to list sites", http.StatusInternalServerError)
		return
	}
	if sites == nil {
		sites = []*database.Site{}
	}

	writeJSON(w, http.StatusOK, sites)
}

func (h *SiteHandler) getSite(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "getSite").Logger()
	id := mux.Vars(r)["id"]

	site, err := h.repo.GetSite(r.Context(), id)
	if err != nil {
		logger.Error().Err(err).Str("id", id).Msg("Failed to retrieve site")
		http.Error(w, "Failed to retrieve site", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.Error(w, "Site not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, site)
}

func (h *SiteHandler) updateConfig(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "updateConfig").Logger()
	id := mux.Vars(r)["id"]

	var cfg scan.SiteConfig
	body := json.RawMessage{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		http.Error(w, "Invalid site config", http.StatusBadRequest)
		return
	}

	site, err := h.repo.GetSite(r.Context(), id)
	if err != nil {
		logger.Error().Err(err).Str("id", id).Msg("Failed to retrieve site")
		http.Error(w, "Failed to retrieve site", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.Error(w, "Site not found", http.StatusNotFound)
		return
	}

	if err := h.repo.UpdateSiteConfig(r.Context(), id, string(body)); err != nil {
		logger.Error().Err(err).Str("id", id).Msg("Failed to update site config")
		http.Error(w, "Failed to update site config", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SiteHandler) deleteSite(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("handler", "deleteSite").Logger()
	id := mux.Vars(r)["id"]

	if err := h.repo.DeleteSite(r.Context(), id); err != nil {
		logger.Error().Err(err).Str("id", id).Msg("Failed to delete site")
		http.Error(w, "Failed to delete site", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
