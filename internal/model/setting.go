package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Well-known settings keys read by the automation engine.
const (
	SettingStaleLeadDays    = "stale_lead_days"
	SettingStaleProjectDays = "stale_project_days"
)

// Setting is a key/value pair of company-wide configuration.
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;column:key" validate:"required"`
	Value     string    `json:"value" gorm:"column:value"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Setting) TableName(namer schema.Namer) string {
	return namer.TableName("setting")
}
