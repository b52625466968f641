package v1

import (
	"time"

	"github.com/google/uuid"
)

// SubmitReportRequest DTO для отправки отчёта
// @Description DTO для отправки отчёта. Должно быть задано ровно одно из user_id/session_id.
type SubmitReportRequest struct {
	Category    string   `json:"category" validate:"required,max=40"`
	Title       string   `json:"title" validate:"required,min=2,max=255"`
	Description string   `json:"description,omitempty" validate:"max=2000"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
	Address     *string  `json:"address,omitempty" validate:"omitempty,max=500"`
	ImageURLs   []string `json:"image_urls,omitempty" validate:"max=10,dive,url"`
	UserID      string   `json:"user_id,omitempty"`
	SessionID   string   `json:"session_id,omitempty"`
}

// SubmitReportResponse DTO результата приёма отчёта
// @Description Новый инцидент или инцидент, в который слит отчёт
type SubmitReportResponse struct {
	Incident      *IncidentResponse `json:"incident"`
	Merged        bool              `json:"merged"`
	MergeDistance *float64          `json:"merge_distance,omitempty"`
	Message       string            `json:"message"`
}

// VerifyRequest DTO для подтверждения инцидента
// @Description DTO для подтверждения инцидента
type VerifyRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	UserID    string   `json:"user_id,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// VerifyResponse DTO результата подтверждения
// @Description DTO результата подтверждения
type VerifyResponse struct {
	Verification      *VerificationResponse `json:"verification"`
	VerificationCount int                   `json:"verification_count"`
	Status            string                `json:"status"`
	Promoted          bool                  `json:"promoted"`
}

// VerificationCountResponse DTO после отзыва подтверждения
type VerificationCountResponse struct {
	VerificationCount int    `json:"verification_count"`
	Status            string `json:"status"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Category           string     `json:"category"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	Address            *string    `json:"address,omitempty"`
	ImageURLs          []string   `json:"image_urls"`
	Status             string     `json:"status"`
	VerificationCount  int        `json:"verification_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	InvestigatingAt    *time.Time `json:"investigating_at,omitempty"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes    *string    `json:"resolution_notes,omitempty"`
	ResolutionEvidence *string    `json:"resolution_evidence,omitempty"`
}

// IncidentListResponse DTO страницы инцидентов
type IncidentListResponse struct {
	Items  []*IncidentResponse `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ListIncidentsQuery параметры выборки списка
type ListIncidentsQuery struct {
	Category string   `form:"category" validate:"omitempty,max=40"`
	Status   string   `form:"status" validate:"omitempty,oneof=pending verified investigating resolved"`
	Since    string   `form:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Lat      *float64 `form:"lat" validate:"omitempty,latitude"`
	Lon      *float64 `form:"lon" validate:"omitempty,longitude"`
	Radius   float64  `form:"radius" validate:"omitempty,gt=0,max=50000"`
	Limit    int      `form:"limit" validate:"omitempty,min=1,max=500"`
	Offset   int      `form:"offset" validate:"omitempty,min=0"`
}

// VerificationResponse DTO подтверждения. Идентичность не раскрывается.
type VerificationResponse struct {
	ID         uuid.UUID `json:"id"`
	IncidentID uuid.UUID `json:"incident_id"`
	Distance   float64   `json:"distance"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChangeStatusRequest DTO смены статуса внешней службой
// @Description Допустимые статусы: investigating, resolved
type ChangeStatusRequest struct {
	Status      string  `json:"status" validate:"required"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	EvidenceURL *string `json:"evidence_url,omitempty" validate:"omitempty,url"`
}

// StatusLogResponse DTO записи журнала статусов
type StatusLogResponse struct {
	ID             uuid.UUID `json:"id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Notes          *string   `json:"notes,omitempty"`
	ChangedBy      string    `json:"changed_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// StatsResponse DTO для ответа со статистикой
// @Description DTO для ответа со статистикой
type StatsResponse struct {
	Total      int            `json:"total"`
	Last24h    int            `json:"last_24h"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}

// RegisterWebhookRequest DTO регистрации вебхука
// @Description Пустой список events означает подписку на все события
type RegisterWebhookRequest struct {
	URL    string   `json:"url" validate:"required,url,max=2000"`
	Events []string `json:"events,omitempty"`
	Secret *string  `json:"secret,omitempty" validate:"omitempty,min=8,max=255"`
}

// WebhookResponse DTO подписки. Секрет не возвращается.
type WebhookResponse struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Signed    bool      `json:"signed"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ClassifyRequest DTO запроса подсказки категории
type ClassifyRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
}

// ErrorResponse DTO ошибки
type ErrorResponse struct {
	Error       string   `json:"error"`
	Distance    *float64 `json:"distance,omitempty"`
	MaxDistance *float64 `json:"max_distance,omitempty"`
}
