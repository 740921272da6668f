package model

import (
	"time"

	"gorm.io/gorm/schema"
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Task is a unit of work, optionally attached to a lead or a project.
type Task struct {
	// ID is the UUID primary key.
	ID string `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	// Title is the short summary shown in task lists.
	Title       string `json:"title" gorm:"column:title" validate:"required"`
	Description string `json:"description,omitempty" gorm:"column:description"`
	// Status is one of 'todo', 'in_progress' or 'done'.
	Status   string `json:"status" gorm:"column:status;index" validate:"required,oneof=todo in_progress done"`
	Priority string `json:"priority" gorm:"column:priority" validate:"omitempty,oneof=low medium high"`
	// LeadID links the task to a lead, if any.
	LeadID *string `json:"lead_id,omitempty" gorm:"column:lead_id;type:uuid;index"`
	// ProjectID links the task to a project, if any.
	ProjectID  *string    `json:"project_id,omitempty" gorm:"column:project_id;type:uuid;index"`
	AssignedTo *string    `json:"assigned_to,omitempty" gorm:"column:assigned_to;type:uuid"`
	CreatedBy  *string    `json:"created_by,omitempty" gorm:"column:created_by;type:uuid"`
	DueDate    *time.Time `json:"due_date,omitempty" gorm:"column:due_date"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Task) TableName(namer schema.Namer) string {
	return namer.TableName("task")
}

// LastTouched returns the most recent of the creation and update timestamps.
func (t *Task) LastTouched() time.Time {
	if t.UpdatedAt.After(t.CreatedAt) {
		return t.UpdatedAt
	}
	return t.CreatedAt
}
