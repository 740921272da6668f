package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Trigger types an automation rule can declare. Only TriggerDailyCron is executed by the engine.
const (
	TriggerDailyCron        = "daily_cron"
	TriggerLeadStatusChange = "lead_status_change"
	TriggerProjectCreated   = "project_created"
	TriggerTaskCompleted    = "task_completed"
)

// Action types understood by the rule decoder.
const (
	ActionCreateTaskAndNotification = "create_task_and_notification"
	ActionCreateNotificationOnly    = "create_notification_only"
)

// AutomationRule is a user-editable rule. Condition and Action are schema-less documents
// decoded by the rule executor.
type AutomationRule struct {
	// ID is the UUID primary key.
	ID string `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	// Name is a short label shown to users.
	Name        string `json:"name" gorm:"column:name" validate:"required"`
	Description string `json:"description,omitempty" gorm:"column:description"`
	// IsActive toggles whether the rule is picked up by scheduled runs.
	IsActive bool `json:"is_active" gorm:"column:is_active;index:idx_rule_trigger_active"`
	// TriggerType names the event that fires the rule (e.g., 'daily_cron').
	TriggerType string `json:"trigger_type" gorm:"column:trigger_type;index:idx_rule_trigger_active" validate:"required,oneof=daily_cron lead_status_change project_created task_completed"`
	// Condition selects the target entities (e.g., {"entity":"lead","days_without_activity":7}).
	Condition datatypes.JSON `json:"condition" gorm:"type:jsonb;column:condition"`
	// Action describes what to create (e.g., {"type":"create_task_and_notification"}).
	Action    datatypes.JSON `json:"action" gorm:"type:jsonb;column:action"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (AutomationRule) TableName(namer schema.Namer) string {
	return namer.TableName("automation_rule")
}
