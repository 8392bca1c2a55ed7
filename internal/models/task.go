package models

import (
	"time"

	"github.com/solophp/taskqueue/internal/config"
	"gorm.io/datatypes"
)

// Task is one unit of work. A row is owned by exactly one consumer while
// LockedAt is non-nil; a lock older than the configured timeout is treated
// as abandoned and the row becomes claimable again.
type Task struct {
	ID          uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string            `gorm:"type:varchar(255);not null" json:"name"`
	Payload     datatypes.JSON    `gorm:"type:jsonb" json:"payload"`
	PayloadType string            `gorm:"type:varchar(255);not null;default:'default';index" json:"payload_type"`
	ScheduledAt time.Time         `gorm:"not null;index:idx_tasks_status_scheduled_at,priority:2" json:"scheduled_at"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Status      config.TaskStatus `gorm:"type:varchar(50);not null;default:'pending';index:idx_tasks_status_scheduled_at,priority:1" json:"status"`
	RetryCount  int               `gorm:"default:0;not null" json:"retry_count"`
	Error       string            `gorm:"type:text" json:"error,omitempty"`
	LockedAt    *time.Time        `gorm:"index" json:"locked_at,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
