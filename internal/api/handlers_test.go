package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/database"
	"github.com/sitewatch/sitewatch/pkg/device"
	"github.com/sitewatch/sitewatch/pkg/scan"
)

func testRouter(t *testing.T) (*mux.Router, database.Repository) {
	t.Helper()
	repo, err := database.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	// An empty registry is enough here: these tests exercise the HTTP
	// surface and execution lifecycle, not device protocols.
	scanner := scan.NewScanner(device.NewRegistry())
	service := NewScanService(repo, scanner)

	r := mux.NewRouter()
	NewSiteHandler(repo).RegisterRoutes(r)
	NewScanHandler(repo, service).RegisterRoutes(r)
	NewStatusHandler("test").RegisterRoutes(r)
	return r, repo
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

const validConfig = `{"username":"root","password":"root","timeout":1,"site_id":"north-field","subsections":[{"name":"rack-1","ip_ranges":[],"miners":[]}]}`

func TestCreateAndGetSite(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSON(t, router, "POST", "/api/sites", map[string]interface{}{
		"name":   "north-field",
		"config": json.RawMessage(validConfig),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var site database.Site
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&site))
	assert.NotEmpty(t, site.ID)
	assert.Equal(t, "north-field", site.Name)

	rec = doJSON(t, router, "GET", "/api/sites/"+site.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, "GET", "/api/sites/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSiteValidation(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSON(t, router, "POST", "/api/sites", map[string]interface{}{
		"config": json.RawMessage(validConfig),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "name is required")

	rec = doJSON(t, router, "POST", "/api/sites", map[string]interface{}{
		"name":   "bad",
		"config": json.RawMessage(`"not an object"`),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "config must parse as a run configuration")
}

func TestUpdateSiteConfig(t *testing.T) {
	router, repo := testRouter(t)

	site := &database.Site{Name: "site-a", Config: validConfig}
	require.NoError(t, repo.CreateSite(context.Background(), site))

	rec := doJSON(t, router, "PUT", "/api/sites/"+site.ID+"/config", json.RawMessage(validConfig))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, "PUT", "/api/sites/nope/config", json.RawMessage(validConfig))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartScanLifecycle(t *testing.T) {
	router, repo := testRouter(t)

	site := &database.Site{Name: "site-a", Config: validConfig}
	require.NoError(t, repo.CreateSite(context.Background(), site))

	rec := doJSON(t, router, "POST", "/api/scans", map[string]string{"site_id": site.ID})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var execution database.Execution
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&execution))
	assert.Equal(t, site.ID, execution.SiteID)
	assert.Equal(t, database.StatusPending, execution.Status)

	// The subsection list is empty, so the background scan finishes
	// almost immediately.
	require.Eventually(t, func() bool {
		e, err := repo.GetExecution(context.Background(), execution.ID)
		return err == nil && e != nil && e.Status == database.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	rec = doJSON(t, router, "GET", "/api/scans/"+execution.ID+"/result", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result scan.SiteResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "north-field", result.SiteID)
}

func TestStartScanUnknownSite(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSON(t, router, "POST", "/api/scans", map[string]string{"site_id": "ghost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/scans", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanResultUnavailableBeforeCompletion(t *testing.T) {
	router, repo := testRouter(t)

	site := &database.Site{Name: "site-a", Config: validConfig}
	require.NoError(t, repo.CreateSite(context.Background(), site))
	execution := &database.Execution{SiteID: site.ID, Config: site.Config}
	require.NoError(t, repo.CreateExecution(context.Background(), execution))

	rec := doJSON(t, router, "GET", "/api/scans/"+execution.ID+"/result", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, "GET", "/api/scans/missing/result", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListScansStripsResults(t *testing.T) {
	router, repo := testRouter(t)

	site := &database.Site{Name: "site-a", Config: validConfig}
	require.NoError(t, repo.CreateSite(context.Background(), site))
	execution := &database.Execution{SiteID: site.ID, Config: site.Config}
	require.NoError(t, repo.CreateExecution(context.Background(), execution))
	require.NoError(t, repo.CompleteExecution(context.Background(), execution.ID, `{"site_id":"x"}`))

	rec := doJSON(t, router, "GET", "/api/scans", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var executions []database.Execution
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&executions))
	require.Len(t, executions, 1)
	assert.Empty(t, executions[0].Result, "list view omits result payloads")

	rec = doJSON(t, router, "GET", "/api/scans/"+execution.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var single database.Execution
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&single))
	assert.Empty(t, single.Result)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := testRouter(t)

	rec := doJSON(t, router, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}
