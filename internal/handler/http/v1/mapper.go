package v1

import (
	"math"

	"github.com/shenikar/snap_and_send/internal/models"
)

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа.
// Владелец инцидента наружу не отдаётся.
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	imageURLs := model.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}
	return &IncidentResponse{
		ID:                 model.ID,
		Category:           model.Category,
		Title:              model.Title,
		Description:        model.Description,
		Latitude:           model.Latitude,
		Longitude:          model.Longitude,
		Address:            model.Address,
		ImageURLs:          imageURLs,
		Status:             string(model.Status),
		VerificationCount:  model.VerificationCount,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
		InvestigatingAt:    model.InvestigatingAt,
		ResolvedAt:         model.ResolvedAt,
		ResolutionNotes:    model.ResolutionNotes,
		ResolutionEvidence: model.ResolutionEvidence,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(items []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(items))
	for i, model := range items {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func ModelToVerificationResponse(model *models.Verification) *VerificationResponse {
	return &VerificationResponse{
		ID:         model.ID,
		IncidentID: model.IncidentID,
		Distance:   math.Round(model.Distance),
		CreatedAt:  model.CreatedAt,
	}
}

func ModelsToVerificationResponses(items []*models.Verification) []*VerificationResponse {
	responses := make([]*VerificationResponse, len(items))
	for i, model := range items {
		responses[i] = ModelToVerificationResponse(model)
	}
	return responses
}

func ModelsToStatusLogResponses(items []*models.StatusLog) []*StatusLogResponse {
	responses := make([]*StatusLogResponse, len(items))
	for i, entry := range items {
		responses[i] = &StatusLogResponse{
			ID:             entry.ID,
			PreviousStatus: string(entry.PreviousStatus),
			NewStatus:      string(entry.NewStatus),
			Notes:          entry.Notes,
			ChangedBy:      entry.ChangedBy,
			CreatedAt:      entry.CreatedAt,
		}
	}
	return responses
}

func ModelToWebhookResponse(model *models.Subscription) *WebhookResponse {
	events := make([]string, len(model.Events))
	for i, e := range model.Events {
		events[i] = string(e)
	}
	return &WebhookResponse{
		ID:        model.ID,
		URL:       model.URL,
		Events:    events,
		Signed:    model.Secret != nil,
		IsActive:  model.IsActive,
		CreatedAt: model.CreatedAt,
	}
}

func ModelToStatsResponse(stats *models.Stats) *StatsResponse {
	return &StatsResponse{
		Total:      stats.Total,
		Last24h:    stats.Last24h,
		ByStatus:   stats.ByStatus,
		ByCategory: stats.ByCategory,
	}
}
