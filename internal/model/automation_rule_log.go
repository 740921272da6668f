package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

const (
	RuleResultSuccess = "success"
	RuleResultError   = "error"
)

// AutomationRuleLog is an append-only record of one rule execution.
type AutomationRuleLog struct {
	ID string `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	// RuleID references the executed AutomationRule.
	RuleID string `json:"rule_id" gorm:"column:rule_id;type:uuid;index" validate:"required"`
	// Result is either 'success' or 'error'.
	Result string `json:"result" gorm:"column:result" validate:"required,oneof=success error"`
	// Error holds the failure message when Result is 'error'.
	Error string `json:"error,omitempty" gorm:"column:error"`
	// Metadata carries execution counters (tasks_created, notifications_created).
	Metadata   datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb;column:metadata"`
	ExecutedAt time.Time      `json:"executed_at" gorm:"column:executed_at;autoCreateTime;index"`
}

// TableName specifies the table name for GORM.
func (AutomationRuleLog) TableName(namer schema.Namer) string {
	return namer.TableName("automation_rule_log")
}
