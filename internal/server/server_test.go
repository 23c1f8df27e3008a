package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/cache"
	"github.com/JustJay7/ojv-scraper/internal/config"
	"github.com/JustJay7/ojv-scraper/internal/database"
	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		LogLevel:         "info",
		DatabasePath:     filepath.Join(dir, "ojv.db"),
		PortalBaseURL:    "http://127.0.0.1:0",
		SessionTTL:       time.Minute,
		SheetsExportPath: filepath.Join(dir, "causas.csv"),
	}

	db, err := database.Initialize(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return New(cfg, database.NewStore(db, logger.Nop()), cache.NewCache(10, time.Minute), logger.Nop())
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ojv_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/scraper/buscar-causa", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestSyncSheetsWritesExportFile(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scraper/sincronizar-con-sheets", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.FileExists(t, s.cfg.SheetsExportPath)
}
