package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Публичные маршруты для граждан
	reports := api.Group("/reports")
	{
		reports.POST("", h.submitReport)
		reports.GET("", h.listReports)
		reports.POST("/classify", h.classifyImage)
		reports.GET("/:id", h.getReport)
		reports.DELETE("/:id", h.deleteReport)
		reports.POST("/:id/verify", h.verifyReport)
		reports.DELETE("/:id/verify", h.unverifyReport)
		reports.GET("/:id/verifications", h.listVerifications)
	}
	api.GET("/categories", h.listCategories)

	// Маршруты для внешних служб, требуют API-ключ
	external := api.Group("/external", APIKeyAuthMiddleware(h.partnerService, h.logger))
	{
		external.GET("/incidents", h.listIncidents)
		external.GET("/incidents/:id", h.getIncident)
		external.PATCH("/incidents/:id/status", h.changeStatus)
		external.GET("/incidents/:id/history", h.getHistory)
		external.GET("/stats", h.getStats)
		external.POST("/webhooks", h.registerWebhook)
		external.GET("/webhooks", h.listWebhooks)
		external.DELETE("/webhooks/:id", h.deleteWebhook)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
