package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/service"
	"github.com/sirupsen/logrus"
)

const partnerContextKey = "partner"

// APIKeyAuthMiddleware - middleware для аутентификации партнёров по API-ключу
func APIKeyAuthMiddleware(partners service.PartnerService, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			// Проверяем также заголовок Authorization: Bearer
			authHeader := c.GetHeader("Authorization")
			if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			log.Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "API key required"})
			return
		}

		partner, err := partners.Authenticate(c.Request.Context(), apiKey)
		if err != nil {
			if errors.Is(err, models.ErrUnauthorized) {
				log.WithError(err).Warn("Invalid API key provided")
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid API key"})
				return
			}
			log.WithError(err).Error("Failed to authenticate partner")
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		c.Set(partnerContextKey, partner)
		c.Next()
	}
}

// partnerFromContext возвращает партнёра, установленного APIKeyAuthMiddleware
func partnerFromContext(c *gin.Context) *models.Partner {
	if v, ok := c.Get(partnerContextKey); ok {
		if partner, ok := v.(*models.Partner); ok {
			return partner
		}
	}
	return nil
}
