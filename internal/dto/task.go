package dto

import (
	"encoding/json"
	"time"
)

type TaskCreateDTO struct {
	Name        string          `json:"name" validate:"required"`
	Payload     json.RawMessage `json:"payload" validate:"required"`
	ScheduledAt *time.Time      `json:"scheduled_at,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

type TaskResponseDTO struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	PayloadType string          `json:"payload_type"`
	Status      string          `json:"status"`
	RetryCount  int             `json:"retry_count"`
	Error       string          `json:"error,omitempty"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	LockedAt    *time.Time      `json:"locked_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
