package models

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending       Status = "pending"
	StatusVerified      Status = "verified"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusInvestigating, StatusResolved:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusResolved }

// StatusLog - запись журнала смены статуса, только добавление
type StatusLog struct {
	ID             uuid.UUID  `json:"id"`
	IncidentID     uuid.UUID  `json:"incident_id"`
	PreviousStatus Status     `json:"previous_status"`
	NewStatus      Status     `json:"new_status"`
	Notes          *string    `json:"notes,omitempty"`
	ChangedBy      string     `json:"changed_by"`
	PartnerID      *uuid.UUID `json:"partner_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
