package model

import (
	"time"

	"gorm.io/gorm/schema"
)

const (
	NotificationTypeTaskAssigned = "task_assigned"
	NotificationTypeStatusChange = "status_change"
)

// Notification is an in-app message addressed to a single user profile.
type Notification struct {
	// ID is the UUID primary key.
	ID string `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	// UserProfileID is the recipient.
	UserProfileID string `json:"user_profile_id" gorm:"column:user_profile_id;type:uuid;index" validate:"required"`
	// Type is the notification kind (e.g., 'task_assigned', 'status_change').
	Type    string `json:"type" gorm:"column:type" validate:"required"`
	Message string `json:"message" gorm:"column:message" validate:"required"`
	// EntityType and EntityID point to the record the notification is about.
	EntityType string `json:"entity_type" gorm:"column:entity_type"`
	EntityID   string `json:"entity_id" gorm:"column:entity_id;type:uuid"`
	// ReadAt stays nil until the recipient opens the notification.
	ReadAt    *time.Time `json:"read_at,omitempty" gorm:"column:read_at"`
	CreatedAt time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName(namer schema.Namer) string {
	return namer.TableName("notification")
}
