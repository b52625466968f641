package models

import (
	"time"

	"github.com/google/uuid"
)

// Partner - внешняя система (например, муниципальная служба), работающая через API-ключ
type Partner struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Description *string    `json:"description,omitempty"`
	APIKeyHash  string     `json:"-"`
	IsActive    bool       `json:"is_active"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
