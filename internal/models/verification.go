package models

import (
	"time"

	"github.com/google/uuid"
)

// Verification - подтверждение инцидента наблюдателем поблизости
type Verification struct {
	ID         uuid.UUID `json:"id"`
	IncidentID uuid.UUID `json:"incident_id"`
	Identity   Identity  `json:"identity"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Distance   float64   `json:"distance"`
	CreatedAt  time.Time `json:"created_at"`
}
