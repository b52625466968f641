package v1

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/category"
	"github.com/shenikar/snap_and_send/internal/classifier"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	incidentService     service.IncidentService
	subscriptionService service.SubscriptionService
	partnerService      service.PartnerService
	categories          category.Registry
	classifier          classifier.Classifier
	logger              *logrus.Logger
	validate            *validator.Validate
}

func NewHandler(
	incidentService service.IncidentService,
	subscriptionService service.SubscriptionService,
	partnerService service.PartnerService,
	categories category.Registry,
	imageClassifier classifier.Classifier,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		incidentService:     incidentService,
		subscriptionService: subscriptionService,
		partnerService:      partnerService,
		categories:          categories,
		classifier:          imageClassifier,
		logger:              logger,
		validate:            validator.New(),
	}
}

// bindJSON разбирает и валидирует тело запроса. При ошибке ответ уже отправлен.
func (h *Handler) bindJSON(c *gin.Context, log *logrus.Entry, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// writeError переводит доменные ошибки в HTTP-ответ
func (h *Handler) writeError(c *gin.Context, log *logrus.Entry, err error) {
	var outOfRange *models.OutOfRangeError
	switch {
	case errors.As(err, &outOfRange):
		distance := math.Round(outOfRange.Distance)
		limit := outOfRange.Limit
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:       outOfRange.Error(),
			Distance:    &distance,
			MaxDistance: &limit,
		})
	case errors.Is(err, models.ErrMissingLocation),
		errors.Is(err, models.ErrMissingIdentity),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrInvalidCategory),
		errors.Is(err, models.ErrInvalidEvent):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: rootMessage(err)})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, models.ErrAlreadyVerified):
		c.JSON(http.StatusConflict, ErrorResponse{Error: models.ErrAlreadyVerified.Error()})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
	default:
		log.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	log.WithError(err).Info("Request rejected")
}

// rootMessage отбрасывает префиксы "service: ..." из цепочки обёрток
func rootMessage(err error) string {
	for _, sentinel := range []error{
		models.ErrMissingLocation,
		models.ErrMissingIdentity,
		models.ErrInvalidStatus,
		models.ErrInvalidCategory,
		models.ErrInvalidEvent,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// @Summary List known categories
// @Description Known categories for UI hints. Any valid lowercase tag is accepted on submit.
// @Tags Reports
// @Produce json
// @Success 200 {array} category.Category
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /categories [get]
func (h *Handler) listCategories(c *gin.Context) {
	log := h.logger.WithField("method", "listCategories")

	known, err := h.categories.Known(c.Request.Context())
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, known)
}

// @Summary Suggest a category for an image
// @Description Opaque classifier suggestion: category, confidence, title, description
// @Tags Reports
// @Accept json
// @Produce json
// @Param request body ClassifyRequest true "Image reference"
// @Success 200 {object} classifier.Suggestion
// @Failure 400 {object} ErrorResponse "Invalid request body or validation error"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/classify [post]
func (h *Handler) classifyImage(c *gin.Context) {
	log := h.logger.WithField("method", "classifyImage")

	var input ClassifyRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	suggestion, err := h.classifier.Classify(c.Request.Context(), input.ImageURL)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
