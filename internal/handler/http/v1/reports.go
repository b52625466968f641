package v1

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/snap_and_send/internal/geo"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/service"
)

// identityFromQuery читает идентичность из query-параметров или заголовков
func identityFromQuery(c *gin.Context) (models.Identity, error) {
	userID := c.Query("user_id")
	if userID == "" {
		userID = c.GetHeader("X-User-ID")
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = c.GetHeader("X-Session-ID")
	}
	return models.IdentityFromRequest(userID, sessionID)
}

// @Summary Submit a report
// @Description Submit a geotagged report. A report near an open incident of the same category is merged into it as a verification.
// @Tags Reports
// @Accept json
// @Produce json
// @Param report body SubmitReportRequest true "Report"
// @Success 201 {object} SubmitReportResponse "New incident created"
// @Success 200 {object} SubmitReportResponse "Merged into existing incident"
// @Failure 400 {object} ErrorResponse "Invalid request body or validation error"
// @Failure 409 {object} ErrorResponse "Already verified"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports [post]
func (h *Handler) submitReport(c *gin.Context) {
	log := h.logger.WithField("method", "submitReport")

	var input SubmitReportRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	if input.Latitude == nil || input.Longitude == nil {
		h.writeError(c, log, models.ErrMissingLocation)
		return
	}

	identity, err := models.IdentityFromRequest(input.UserID, input.SessionID)
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	result, err := h.incidentService.SubmitReport(c.Request.Context(), service.SubmitReportInput{
		Category:    input.Category,
		Title:       input.Title,
		Description: input.Description,
		Latitude:    *input.Latitude,
		Longitude:   *input.Longitude,
		Address:     input.Address,
		ImageURLs:   input.ImageURLs,
		Identity:    identity,
	})
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	if result.Merged {
		distance := math.Round(result.MergeDistance)
		c.JSON(http.StatusOK, SubmitReportResponse{
			Incident:      ModelToIncidentResponse(result.Incident),
			Merged:        true,
			MergeDistance: &distance,
			Message:       fmt.Sprintf("Similar incident found %.0fm away. Your report was added as a verification.", distance),
		})
		return
	}
	c.JSON(http.StatusCreated, SubmitReportResponse{
		Incident: ModelToIncidentResponse(result.Incident),
		Message:  "Report submitted successfully",
	})
}

// @Summary List reports
// @Description Paginated list of incidents, newest first
// @Tags Reports
// @Produce json
// @Param category query string false "Category"
// @Param status query string false "Status" Enums(pending, verified, investigating, resolved)
// @Param since query string false "RFC3339 timestamp"
// @Param lat query number false "Latitude"
// @Param lon query number false "Longitude"
// @Param radius query number false "Radius in meters"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} IncidentListResponse
// @Failure 400 {object} ErrorResponse "Invalid query"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports [get]
func (h *Handler) listReports(c *gin.Context) {
	h.listIncidents(c)
}

// @Summary Get report by ID
// @Tags Reports
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/{id} [get]
func (h *Handler) getReport(c *gin.Context) {
	h.getIncident(c)
}

// @Summary Delete a report
// @Description Only the reporter (same user_id or session_id) may delete a report
// @Tags Reports
// @Param id path string true "Incident ID"
// @Param user_id query string false "User ID"
// @Param session_id query string false "Anonymous session token"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse "Invalid incident ID or identity"
// @Failure 403 {object} ErrorResponse "Not the reporter"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/{id} [delete]
func (h *Handler) deleteReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "deleteReport").WithField("id", id)

	identity, err := identityFromQuery(c)
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	if err := h.incidentService.DeleteIncident(c.Request.Context(), id, identity); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Verify a report
// @Description Corroborate an incident from within the verification radius
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param request body VerifyRequest true "Location and identity"
// @Success 200 {object} VerifyResponse
// @Failure 400 {object} ErrorResponse "Missing location, identity or out of range"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 409 {object} ErrorResponse "Already verified"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/{id}/verify [post]
func (h *Handler) verifyReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "verifyReport").WithField("id", id)

	var input VerifyRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	identity, err := models.IdentityFromRequest(input.UserID, input.SessionID)
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	var at *geo.Point
	if input.Latitude != nil && input.Longitude != nil {
		at = &geo.Point{Lat: *input.Latitude, Lon: *input.Longitude}
	}

	result, err := h.incidentService.Verify(c.Request.Context(), id, identity, at)
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{
		Verification:      ModelToVerificationResponse(result.Verification),
		VerificationCount: result.Incident.VerificationCount,
		Status:            string(result.Incident.Status),
		Promoted:          result.Promoted,
	})
}

// @Summary Remove a verification
// @Tags Reports
// @Produce json
// @Param id path string true "Incident ID"
// @Param user_id query string false "User ID"
// @Param session_id query string false "Anonymous session token"
// @Success 200 {object} VerificationCountResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID or identity"
// @Failure 404 {object} ErrorResponse "Verification not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/{id}/verify [delete]
func (h *Handler) unverifyReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "unverifyReport").WithField("id", id)

	identity, err := identityFromQuery(c)
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	incident, err := h.incidentService.Unverify(c.Request.Context(), id, identity)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, VerificationCountResponse{
		VerificationCount: incident.VerificationCount,
		Status:            string(incident.Status),
	})
}

// @Summary List verifications of a report
// @Tags Reports
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {array} VerificationResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /reports/{id}/verifications [get]
func (h *Handler) listVerifications(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "listVerifications").WithField("id", id)

	verifications, err := h.incidentService.ListVerifications(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToVerificationResponses(verifications))
}

// parseListQuery разбирает параметры выборки. При ошибке ответ уже отправлен.
func (h *Handler) parseListQuery(c *gin.Context) (models.IncidentFilter, bool) {
	log := h.logger.WithField("method", "parseListQuery")

	var q ListIncidentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		log.WithError(err).Warn("Failed to bind query")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid query"})
		return models.IncidentFilter{}, false
	}
	if err := h.validate.Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return models.IncidentFilter{}, false
	}
	if (q.Lat == nil) != (q.Lon == nil) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lon must be given together"})
		return models.IncidentFilter{}, false
	}

	filter := models.IncidentFilter{
		Category: q.Category,
		Status:   models.Status(q.Status),
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if q.Since != "" {
		since, _ := time.Parse(time.RFC3339, q.Since)
		filter.Since = &since
	}
	if q.Lat != nil {
		filter.Near = &geo.Point{Lat: *q.Lat, Lon: *q.Lon}
		filter.RadiusM = q.Radius
		if filter.RadiusM == 0 {
			filter.RadiusM = 5000
		}
	}
	return filter, true
}
