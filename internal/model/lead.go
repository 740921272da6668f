package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Lead stages the automation engine cares about.
const (
	LeadStageNew       = "new"
	LeadStageContacted = "contacted"
	LeadStageQualified = "qualified"
	LeadStageWon       = "won"
	LeadStageLost      = "lost"
)

// Lead represents a sales opportunity tracked in the CRM.
type Lead struct {
	// ID is the UUID primary key.
	ID string `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	// Title is the human readable name of the opportunity.
	Title string `json:"title" gorm:"column:title" validate:"required"`
	// Stage is the pipeline stage (e.g., 'new', 'contacted').
	Stage string `json:"stage" gorm:"column:stage;index" validate:"required"`
	// OwnerID is the user profile responsible for the lead. Leads without an owner are never followed up.
	OwnerID *string `json:"owner_id,omitempty" gorm:"column:owner_id;type:uuid;index"`
	// Value is the expected deal value.
	Value     float64   `json:"value,omitempty" gorm:"column:value"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Lead) TableName(namer schema.Namer) string {
	return namer.TableName("lead")
}

// HasOwner reports whether the lead is assigned to someone.
func (l *Lead) HasOwner() bool {
	return l.OwnerID != nil && *l.OwnerID != ""
}
