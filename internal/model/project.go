package model

import (
	"time"

	"gorm.io/gorm/schema"
)

const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
)

// Project is a unit of delivery work owned by a user profile.
type Project struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid" validate:"required"`
	Name      string    `json:"name" gorm:"column:name" validate:"required"`
	Status    string    `json:"status" gorm:"column:status;index" validate:"required"`
	OwnerID   *string   `json:"owner_id,omitempty" gorm:"column:owner_id;type:uuid;index"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Project) TableName(namer schema.Namer) string {
	return namer.TableName("project")
}

// HasOwner reports whether the project is assigned to someone.
func (p *Project) HasOwner() bool {
	return p.OwnerID != nil && *p.OwnerID != ""
}
