package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Entity types shared by activities, notifications and rule conditions.
const (
	EntityTypeLead    = "lead"
	EntityTypeProject = "project"
	EntityTypeTask    = "task"
)

const (
	ActivityTypeTaskCreated = "task_created"
	ActivityTypeNote        = "note"
	ActivityTypeCall        = "call"
	ActivityTypeEmail       = "email"
)

// Activity is an audit / timeline entry attached to a CRM entity.
type Activity struct {
	// ID is the UUID primary key.
	ID string `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	// EntityType is the kind of record the activity belongs to (e.g., 'lead').
	EntityType string `json:"entity_type" gorm:"column:entity_type;index:idx_activity_entity" validate:"required"`
	// EntityID is the ID of that record.
	EntityID string `json:"entity_id" gorm:"column:entity_id;type:uuid;index:idx_activity_entity" validate:"required"`
	// Type describes what happened (e.g., 'task_created').
	Type string `json:"type" gorm:"column:type" validate:"required"`
	// Metadata is a free-form document describing the event.
	Metadata  datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb;column:metadata"`
	CreatedBy *string        `json:"created_by,omitempty" gorm:"column:created_by;type:uuid"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime;index"`
}

// TableName specifies the table name for GORM.
func (Activity) TableName(namer schema.Namer) string {
	return namer.TableName("activity")
}
