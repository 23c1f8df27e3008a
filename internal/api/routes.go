package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := router.Group("/api")
	{
		scraperRoutes := api.Group("/scraper")
		scraperRoutes.POST("/login", h.Login)
		scraperRoutes.POST("/buscar-causa", h.SearchCase)
		scraperRoutes.POST("/scraping-masivo", h.BulkScrape)
		scraperRoutes.POST("/detalle-causa", h.CaseDetail)
		scraperRoutes.POST("/sincronizar-con-sheets", h.SyncSheets)
		scraperRoutes.GET("/estado-scraper", h.ScraperStatus)

		// Persisted cases
		api.GET("/causas", h.ListCases)
		api.GET("/causas/:rol", h.GetCase)

		// Cache stats
		api.GET("/cache/stats", h.CacheStats)
	}
}
