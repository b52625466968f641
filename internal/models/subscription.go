package models

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventIncidentCreated       EventKind = "incident.created"
	EventIncidentVerified      EventKind = "incident.verified"
	EventIncidentStatusChanged EventKind = "incident.status_changed"
	EventIncidentResolved      EventKind = "incident.resolved"
)

// AllEventKinds - события, на которые может подписаться партнёр
var AllEventKinds = []EventKind{
	EventIncidentCreated,
	EventIncidentVerified,
	EventIncidentStatusChanged,
	EventIncidentResolved,
}

func (k EventKind) Valid() bool {
	for _, known := range AllEventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Subscription - зарегистрированный вебхук партнёра
type Subscription struct {
	ID        uuid.UUID   `json:"id"`
	PartnerID uuid.UUID   `json:"partner_id"`
	URL       string      `json:"url"`
	Events    []EventKind `json:"events"`
	Secret    *string     `json:"-"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
}

func (s *Subscription) Wants(kind EventKind) bool {
	for _, e := range s.Events {
		if e == kind {
			return true
		}
	}
	return false
}
