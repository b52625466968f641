package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/models"
	"github.com/shenikar/snap_and_send/internal/webhook"
)

type eventLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   *string `json:"address,omitempty"`
}

type incidentCreatedData struct {
	ID        uuid.UUID     `json:"id"`
	Title     string        `json:"title"`
	Category  string        `json:"category"`
	Location  eventLocation `json:"location"`
	CreatedAt time.Time     `json:"created_at"`
}

type incidentVerifiedData struct {
	ID                uuid.UUID     `json:"id"`
	Title             string        `json:"title"`
	VerificationCount int           `json:"verification_count"`
	Status            models.Status `json:"status"`
}

type incidentStatusChangedData struct {
	ID             uuid.UUID     `json:"id"`
	Title          string        `json:"title"`
	PreviousStatus models.Status `json:"previous_status"`
	NewStatus      models.Status `json:"new_status"`
	ChangedBy      string        `json:"changed_by"`
}

type incidentResolvedData struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	ResolvedAt *time.Time `json:"resolved_at"`
	Notes      *string    `json:"resolution_notes,omitempty"`
}

func createdEvent(inc *models.Incident) (webhook.Event, error) {
	return webhook.NewEvent(models.EventIncidentCreated, incidentCreatedData{
		ID:       inc.ID,
		Title:    inc.Title,
		Category: inc.Category,
		Location: eventLocation{
			Latitude:  inc.Latitude,
			Longitude: inc.Longitude,
			Address:   inc.Address,
		},
		CreatedAt: inc.CreatedAt,
	})
}

// transitionEvents строит события для перехода статуса
func transitionEvents(inc *models.Incident, from models.Status, actor string) ([]webhook.Event, error) {
	var events []webhook.Event
	add := func(kind models.EventKind, data any) error {
		ev, err := webhook.NewEvent(kind, data)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	}

	switch inc.Status {
	case models.StatusVerified:
		if err := add(models.EventIncidentVerified, incidentVerifiedData{
			ID:                inc.ID,
			Title:             inc.Title,
			VerificationCount: inc.VerificationCount,
			Status:            inc.Status,
		}); err != nil {
			return nil, err
		}
	default:
		if err := add(models.EventIncidentStatusChanged, incidentStatusChangedData{
			ID:             inc.ID,
			Title:          inc.Title,
			PreviousStatus: from,
			NewStatus:      inc.Status,
			ChangedBy:      actor,
		}); err != nil {
			return nil, err
		}
		if inc.Status == models.StatusResolved {
			if err := add(models.EventIncidentResolved, incidentResolvedData{
				ID:         inc.ID,
				Title:      inc.Title,
				ResolvedAt: inc.ResolvedAt,
				Notes:      inc.ResolutionNotes,
			}); err != nil {
				return nil, err
			}
		}
	}
	return events, nil
}
