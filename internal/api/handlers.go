package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/cache"
	"github.com/JustJay7/ojv-scraper/internal/database"
	"github.com/JustJay7/ojv-scraper/internal/metrics"
	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"github.com/JustJay7/ojv-scraper/internal/session"
	"github.com/JustJay7/ojv-scraper/internal/sheets"
	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/gin-gonic/gin"
)

const (
	bulkPreviewSize = 10
	defaultPageSize = 20
	maxPageSize     = 100
)

// SessionFactory creates a fresh anonymous portal session.
type SessionFactory func() (*scraper.Session, error)

// Dependencies are the collaborators the handlers need.
type Dependencies struct {
	Store      *database.Store
	Cache      cache.Cache
	Sessions   *session.Pool
	NewSession SessionFactory
	Pacing     scraper.Pacing
	Sink       sheets.Sink
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

// Handlers holds all HTTP handlers
type Handlers struct {
	store      *database.Store
	cache      cache.Cache
	sessions   *session.Pool
	newSession SessionFactory
	pacing     scraper.Pacing
	sink       sheets.Sink
	metrics    *metrics.Metrics
	logger     *logger.Logger

	bulkRuns atomic.Int32
}

// NewHandlers creates a new handlers instance
func NewHandlers(d Dependencies) *Handlers {
	return &Handlers{
		store:      d.Store,
		cache:      d.Cache,
		sessions:   d.Sessions,
		newSession: d.NewSession,
		pacing:     d.Pacing,
		sink:       d.Sink,
		metrics:    d.Metrics,
		logger:     d.Logger,
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

// portalSession reuses a pooled session when id is known and otherwise
// opens a per-request one that is treated as already authenticated.
func (h *Handlers) portalSession(id string) (*scraper.Session, error) {
	if id != "" {
		if s, err := h.sessions.Get(id); err == nil {
			return s, nil
		}
		h.logger.Debug("Session not pooled, using a fresh one", "session_id", id)
	}

	s, err := h.newSession()
	if err != nil {
		return nil, err
	}
	s.AssumeAuthenticated()
	return s, nil
}

func parseCompetencies(names []string) ([]scraper.Competency, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]scraper.Competency, 0, len(names))
	for _, n := range names {
		comp, err := scraper.ParseCompetency(n)
		if err != nil {
			return nil, err
		}
		out = append(out, comp)
	}
	return out, nil
}

func competencyOrCivil(name string) (scraper.Competency, error) {
	if strings.TrimSpace(name) == "" {
		return scraper.Civil, nil
	}
	return scraper.ParseCompetency(name)
}

// Login handles POST /api/scraper/login
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		AuthType string `json:"auth_type"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Usuario y contraseña son requeridos")
		return
	}

	kind, err := scraper.ParseCredentialKind(req.AuthType)
	if err != nil {
		fail(c, http.StatusBadRequest, "Tipo de autenticación no válido")
		return
	}

	s, err := h.newSession()
	if err != nil {
		h.logger.Error("Failed to create portal session", "error", err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	if !s.Login(c.Request.Context(), kind, req.Username, req.Password) {
		fail(c, http.StatusUnauthorized, "Credenciales inválidas")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Login exitoso",
		"session_id": h.sessions.Add(s),
	})
}

// SearchCase handles POST /api/scraper/buscar-causa
func (h *Handlers) SearchCase(c *gin.Context) {
	var req struct {
		Rol         string `json:"rol" binding:"required"`
		Competencia string `json:"competencia"`
		SessionID   string `json:"session_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "El rol es requerido")
		return
	}

	comp, err := competencyOrCivil(req.Competencia)
	if err != nil {
		fail(c, http.StatusBadRequest, "Competencia no válida: "+req.Competencia)
		return
	}

	// Check cache first
	cacheKey := cache.GenerateCacheKey(comp, req.Rol)
	if cached, found := h.cache.Get(cacheKey); found {
		h.logger.Info("Cache hit", "key", cacheKey)
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"causas":     cached,
			"total":      len(cached),
			"from_cache": true,
		})
		return
	}

	s, err := h.portalSession(req.SessionID)
	if err != nil {
		h.logger.Error("Failed to create portal session", "error", err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	ctx := c.Request.Context()
	causas := s.Search(ctx, req.Rol, comp)
	h.metrics.ObserveScraped(comp, len(causas))
	h.cache.Set(cacheKey, causas)

	h.store.LogScrape(ctx, &database.ScrapeLog{
		Kind:         "buscar-causa",
		Roles:        req.Rol,
		Competencies: string(comp),
		Results:      len(causas),
		Success:      true,
		IPAddress:    c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"causas":     causas,
		"total":      len(causas),
		"from_cache": false,
	})
}

// BulkScrape handles POST /api/scraper/scraping-masivo
func (h *Handlers) BulkScrape(c *gin.Context) {
	var req struct {
		Roles        []string `json:"roles" binding:"required,min=1"`
		Competencias []string `json:"competencias"`
		ActualizarBD *bool    `json:"actualizar_bd"`
		SessionID    string   `json:"session_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Se requiere al menos un rol")
		return
	}

	comps, err := parseCompetencies(req.Competencias)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(comps) == 0 {
		comps = scraper.DefaultCompetencies
	}
	updateDB := req.ActualizarBD == nil || *req.ActualizarBD

	s, err := h.portalSession(req.SessionID)
	if err != nil {
		h.logger.Error("Failed to create portal session", "error", err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	ctx := c.Request.Context()
	causas := h.runBulk(c, s, req.Roles, comps)

	for _, cs := range causas {
		h.metrics.ObserveScraped(cs.Competencia, 1)
	}

	scrapeLog := &database.ScrapeLog{
		Kind:         "scraping-masivo",
		Roles:        strings.Join(req.Roles, ","),
		Competencies: joinCompetencies(comps),
		Results:      len(causas),
		Success:      true,
		IPAddress:    c.ClientIP(),
	}

	var stored database.UpsertResult
	if updateDB {
		stored, err = h.store.Upsert(ctx, causas)
		if err != nil {
			h.logger.Error("Failed to store bulk results", "error", err)
			scrapeLog.Success = false
			scrapeLog.ErrorMessage = err.Error()
			h.store.LogScrape(ctx, scrapeLog)
			fail(c, http.StatusInternalServerError, "Error guardando en base de datos")
			return
		}
		h.metrics.ObserveStored(stored.Created, stored.Updated, stored.Skipped)
	}
	h.store.LogScrape(ctx, scrapeLog)

	preview := causas
	if len(preview) > bulkPreviewSize {
		preview = preview[:bulkPreviewSize]
	}
	if preview == nil {
		preview = []scraper.Case{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                 true,
		"message":                 "Scraping masivo completado",
		"total_causas_scrapeadas": len(causas),
		"causas_nuevas":           stored.Created,
		"causas_actualizadas":     stored.Updated,
		"causas":                  preview,
	})
}

func (h *Handlers) runBulk(c *gin.Context, s *scraper.Session, roles []string, comps []scraper.Competency) []scraper.Case {
	h.bulkRuns.Add(1)
	defer h.bulkRuns.Add(-1)
	defer h.metrics.StartBulk()()

	return scraper.NewOrchestrator(s, h.pacing, h.logger).Run(c.Request.Context(), roles, comps)
}

func joinCompetencies(comps []scraper.Competency) string {
	names := make([]string, len(comps))
	for i, c := range comps {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}

// CaseDetail handles POST /api/scraper/detalle-causa
func (h *Handlers) CaseDetail(c *gin.Context) {
	var req struct {
		CausaID     string `json:"causa_id" binding:"required"`
		Competencia string `json:"competencia"`
		SessionID   string `json:"session_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "El ID de la causa es requerido")
		return
	}

	comp, err := competencyOrCivil(req.Competencia)
	if err != nil {
		fail(c, http.StatusBadRequest, "Competencia no válida: "+req.Competencia)
		return
	}

	s, err := h.portalSession(req.SessionID)
	if err != nil {
		h.logger.Error("Failed to create portal session", "error", err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	ctx := c.Request.Context()
	detail := s.FetchDetail(ctx, req.CausaID, comp)

	h.store.LogScrape(ctx, &database.ScrapeLog{
		Kind:         "detalle-causa",
		Roles:        req.CausaID,
		Competencies: string(comp),
		Results:      boolToInt(detail != nil),
		Success:      detail != nil,
		IPAddress:    c.ClientIP(),
	})

	if detail == nil {
		fail(c, http.StatusNotFound, "No se pudo obtener el detalle de la causa")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"detalle": detail,
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SyncSheets handles POST /api/scraper/sincronizar-con-sheets
func (h *Handlers) SyncSheets(c *gin.Context) {
	ctx := c.Request.Context()

	records, _, err := h.store.List(ctx, database.CaseFilter{})
	if err != nil {
		h.logger.Error("Failed to load cases for export", "error", err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	if err := h.sink.Write(ctx, records); err != nil {
		h.logger.Error("Failed to export cases", "error", err)
		fail(c, http.StatusInternalServerError, "Error sincronizando con la planilla")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              "Sincronización con la planilla completada",
		"causas_sincronizadas": len(records),
	})
}

// ScraperStatus handles GET /api/scraper/estado-scraper
func (h *Handlers) ScraperStatus(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read case stats", "error", err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"estado": gin.H{
			"total_causas":           stats.Total,
			"causas_por_competencia": stats.PorCompetencia,
			"ultima_actualizacion":   stats.UltimaActualizacion,
			"scraper_activo":         h.bulkRuns.Load() > 0,
			"sesiones_activas":       h.sessions.Len(),
		},
	})
}

// ListCases handles GET /api/causas
func (h *Handlers) ListCases(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		fail(c, http.StatusBadRequest, "page debe ser un entero positivo")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		fail(c, http.StatusBadRequest, "limit debe ser un entero positivo")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	records, total, err := h.store.List(c.Request.Context(), database.CaseFilter{
		Competencia: c.Query("competencia"),
		Estado:      c.Query("estado"),
		RolContains: c.Query("rol"),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		h.logger.Error("Failed to list cases", "error", err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetCase handles GET /api/causas/:rol
func (h *Handlers) GetCase(c *gin.Context) {
	record, err := h.store.Get(c.Request.Context(), c.Param("rol"))
	if errors.Is(err, database.ErrNotFound) {
		fail(c, http.StatusNotFound, "Causa no encontrada")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load case", "rol", c.Param("rol"), "error", err)
		fail(c, http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    record,
	})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	dbHealthy := false
	if sqlDB, err := h.store.DB().DB(); err == nil {
		dbHealthy = sqlDB.PingContext(c.Request.Context()) == nil
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": dbHealthy,
		"cache":    h.cache.Stats(),
		"time":     time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.cache.Stats(),
	})
}
