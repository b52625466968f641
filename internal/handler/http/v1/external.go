package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/service"
)

// @Summary Get a list of incidents
// @Description Paginated list of incidents for partner systems. Requires API key.
// @Tags External
// @Produce json
// @Security ApiKeyAuth
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
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /external/incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")

	filter, ok := h.parseListQuery(c)
	if !ok {
		return
	}

	incidents, total, err := h.incidentService.ListIncidents(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, log, err)
		return
	}

	limit := filter.Limit
	if limit == 0 {
		limit = len(incidents)
	}
	c.JSON(http.StatusOK, IncidentListResponse{
		Items:  ModelsToIncidentResponses(incidents),
		Total:  total,
		Limit:  limit,
		Offset: filter.Offset,
	})
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID. Requires API key.
// @Tags External
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /external/incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Change incident status
// @Description Move an incident to investigating or resolved. Resolved is terminal. Requires API key.
// @Tags External
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param request body ChangeStatusRequest true "New status"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} ErrorResponse "Invalid status or transition"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /external/incidents/{id}/status [patch]
func (h *Handler) changeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "changeStatus").WithField("id", id)

	var input ChangeStatusRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	in := service.ChangeStatusInput{
		IncidentID:  id,
		Status:      models.Status(input.Status),
		Notes:       input.Notes,
		EvidenceURL: input.EvidenceURL,
	}
	if partner := partnerFromContext(c); partner != nil {
		in.Actor = partner.Name
		in.PartnerID = &partner.ID
	}

	incident, err := h.incidentService.ChangeStatus(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get incident status history
// @Description Status change log, newest first. Requires API key.
// @Tags External
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {array} StatusLogResponse
// @Failure 400 {object} ErrorResponse "Invalid incident ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Incident not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /external/incidents/{id}/history [get]
func (h *Handler) getHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "getHistory").WithField("id", id)

	history, err := h.incidentService.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToStatusLogResponses(history))
}

// @Summary Get incident statistics
// @Description Totals by status and category, optionally since a timestamp. Requires API key.
// @Tags External
// @Produce json
// @Security ApiKeyAuth
// @Param since query string false "RFC3339 timestamp"
// @Success 200 {object} StatsResponse
// @Failure 400 {object} ErrorResponse "Invalid since"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /external/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	log := h.logger.WithField("method", "getStats")

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "since must be an RFC3339 timestamp"})
			return
		}
		since = &parsed
	}

	stats, err := h.incidentService.GetStats(c.Request.Context(), since)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToStatsResponse(stats))
}

// @Summary Register a webhook
// @Description Subscribe to incident events. Deliveries are signed with HMAC-SHA256 when a secret is given. Requires API key.
// @Tags External
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body RegisterWebhookRequest true "Webhook"
// @Success 201 {object} WebhookResponse
// @Failure 400 {object} ErrorResponse "Invalid request body or unknown event"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /external/webhooks [post]
func (h *Handler) registerWebhook(c *gin.Context) {
	log := h.logger.WithField("method", "registerWebhook")

	var input RegisterWebhookRequest
	if !h.bindJSON(c, log, &input) {
		return
	}
	partner := partnerFromContext(c)
	if partner == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "API key required"})
		return
	}

	events := make([]models.EventKind, len(input.Events))
	for i, e := range input.Events {
		events[i] = models.EventKind(e)
	}

	sub, err := h.subscriptionService.Register(c.Request.Context(), partner.ID, input.URL, events, input.Secret)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToWebhookResponse(sub))
}

// @Summary List webhooks
// @Tags External
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} WebhookResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /external/webhooks [get]
func (h *Handler) listWebhooks(c *gin.Context) {
	log := h.logger.WithField("method", "listWebhooks")

	partner := partnerFromContext(c)
	if partner == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "API key required"})
		return
	}

	subs, err := h.subscriptionService.List(c.Request.Context(), partner.ID)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	responses := make([]*WebhookResponse, len(subs))
	for i, sub := range subs {
		responses[i] = ModelToWebhookResponse(sub)
	}
	c.JSON(http.StatusOK, responses)
}

// @Summary Delete a webhook
// @Tags External
// @Security ApiKeyAuth
// @Param id path string true "Webhook ID"
// @Success 204 "No Content"
// @Failure 400 {object} ErrorResponse "Invalid webhook ID"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Webhook not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /external/webhooks/{id} [delete]
func (h *Handler) deleteWebhook(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	log := h.logger.WithField("method", "deleteWebhook").WithField("id", id)

	partner := partnerFromContext(c)
	if partner == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "API key required"})
		return
	}

	if err := h.subscriptionService.Delete(c.Request.Context(), partner.ID, id); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
