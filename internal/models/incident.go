package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/snap_and_send/internal/geo"
)

type Incident struct {
	ID                 uuid.UUID  `json:"id"`
	Category           string     `json:"category"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	Address            *string    `json:"address,omitempty"`
	ImageURLs          []string   `json:"image_urls"`
	Status             Status     `json:"status"`
	VerificationCount  int        `json:"verification_count"`
	Owner              Identity   `json:"owner"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	InvestigatingAt    *time.Time `json:"investigating_at,omitempty"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes    *string    `json:"resolution_notes,omitempty"`
	ResolutionEvidence *string    `json:"resolution_evidence,omitempty"`
}

func (i *Incident) Location() geo.Point {
	return geo.Point{Lat: i.Latitude, Lon: i.Longitude}
}

// IncidentFilter - параметры выборки списка инцидентов
type IncidentFilter struct {
	Category string
	Status   Status
	Since    *time.Time
	Near     *geo.Point
	RadiusM  float64
	Limit    int
	Offset   int
}

// GroupField - поле для сгруппированного подсчёта
type GroupField string

const (
	GroupByStatus   GroupField = "status"
	GroupByCategory GroupField = "category"
)

// Stats - агрегированная статистика по инцидентам
type Stats struct {
	Total      int            `json:"total"`
	Last24h    int            `json:"last_24h"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}
