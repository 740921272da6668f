package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// RandomJSONB generates random JSON data for testing.
func RandomJSONB() datatypes.JSON {
	jsonData := map[string]interface{}{
		"note":  gofakeit.Word(),
		"score": gofakeit.Number(1, 100),
	}
	bytes, _ := json.Marshal(jsonData)
	return datatypes.JSON(bytes)
}

// RandomJSONBMap generates JSON data from a map for testing.
func RandomJSONBMap(data map[string]interface{}) datatypes.JSON {
	bytes, _ := json.Marshal(data)
	return datatypes.JSON(bytes)
}

func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

func strPtr(s string) *string { return &s }

// NewLead creates a new Lead instance with default fake data.
// The default lead is in the 'contacted' stage and has an owner.
func NewLead(overrideDefaults ...*Lead) *Lead {
	base := &Lead{
		ID:        gofakeit.UUID(),
		Title:     gofakeit.Company() + " deal",
		Stage:     LeadStageContacted,
		OwnerID:   strPtr(gofakeit.UUID()),
		Value:     gofakeit.Price(1000, 50000),
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(30, 90)) * 24 * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Title != "" {
			base.Title = ovr.Title
		}
		if ovr.Stage != "" {
			base.Stage = ovr.Stage
		}
		// Allow overriding with nil owner by direct assignment
		base.OwnerID = ovr.OwnerID
		if ovr.Value != 0 {
			base.Value = ovr.Value
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewProject creates a new active Project with an owner.
func NewProject(overrideDefaults ...*Project) *Project {
	base := &Project{
		ID:        gofakeit.UUID(),
		Name:      gofakeit.AppName(),
		Status:    ProjectStatusActive,
		OwnerID:   strPtr(gofakeit.UUID()),
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(30, 90)) * 24 * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		base.OwnerID = ovr.OwnerID
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewTask creates a new Task instance with default fake data.
func NewTask(overrideDefaults ...*Task) *Task {
	now := utils.Now()
	base := &Task{
		ID:          gofakeit.UUID(),
		Title:       gofakeit.HackerPhrase(),
		Description: gofakeit.Sentence(8),
		Status:      gofakeit.RandomString([]string{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}),
		Priority:    TaskPriorityMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Title != "" {
			base.Title = ovr.Title
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.Priority != "" {
			base.Priority = ovr.Priority
		}
		base.LeadID = ovr.LeadID
		base.ProjectID = ovr.ProjectID
		base.AssignedTo = ovr.AssignedTo
		base.CreatedBy = ovr.CreatedBy
		base.DueDate = ovr.DueDate
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewActivity creates a new Activity for a random lead.
func NewActivity(overrideDefaults ...*Activity) *Activity {
	base := &Activity{
		ID:         gofakeit.UUID(),
		EntityType: EntityTypeLead,
		EntityID:   gofakeit.UUID(),
		Type:       gofakeit.RandomString([]string{ActivityTypeNote, ActivityTypeCall, ActivityTypeEmail}),
		Metadata:   RandomJSONB(),
		CreatedAt:  utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.EntityType != "" {
			base.EntityType = ovr.EntityType
		}
		if ovr.EntityID != "" {
			base.EntityID = ovr.EntityID
		}
		if ovr.Type != "" {
			base.Type = ovr.Type
		}
		if ovr.Metadata != nil {
			base.Metadata = ovr.Metadata
		}
		base.CreatedBy = ovr.CreatedBy
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
	}
	return base
}

// NewNotification creates a new unread Notification instance with default fake data.
func NewNotification(overrideDefaults ...*Notification) *Notification {
	base := &Notification{
		ID:            gofakeit.UUID(),
		UserProfileID: gofakeit.UUID(),
		Type:          NotificationTypeTaskAssigned,
		Message:       gofakeit.Sentence(6),
		EntityType:    EntityTypeLead,
		EntityID:      gofakeit.UUID(),
		CreatedAt:     utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.UserProfileID != "" {
			base.UserProfileID = ovr.UserProfileID
		}
		if ovr.Type != "" {
			base.Type = ovr.Type
		}
		if ovr.Message != "" {
			base.Message = ovr.Message
		}
		if ovr.EntityType != "" {
			base.EntityType = ovr.EntityType
		}
		if ovr.EntityID != "" {
			base.EntityID = ovr.EntityID
		}
		base.ReadAt = ovr.ReadAt
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
	}
	return base
}

// NewAutomationRule creates an active daily lead follow-up rule.
func NewAutomationRule(overrideDefaults ...*AutomationRule) *AutomationRule {
	now := utils.Now()
	base := &AutomationRule{
		ID:          gofakeit.UUID(),
		Name:        "Follow up " + gofakeit.BuzzWord() + " leads",
		Description: gofakeit.Sentence(8),
		IsActive:    true,
		TriggerType: TriggerDailyCron,
		Condition:   RandomJSONBMap(map[string]interface{}{"entity": EntityTypeLead, "days_without_activity": 7}),
		Action:      RandomJSONBMap(map[string]interface{}{"type": ActionCreateTaskAndNotification}),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Description != "" {
			base.Description = ovr.Description
		}
		// Allow overriding with false by direct assignment
		base.IsActive = ovr.IsActive
		if ovr.TriggerType != "" {
			base.TriggerType = ovr.TriggerType
		}
		if ovr.Condition != nil {
			base.Condition = ovr.Condition
		}
		if ovr.Action != nil {
			base.Action = ovr.Action
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewAutomationRuleLog creates a successful log entry for a random rule.
func NewAutomationRuleLog(overrideDefaults ...*AutomationRuleLog) *AutomationRuleLog {
	base := &AutomationRuleLog{
		ID:         gofakeit.UUID(),
		RuleID:     gofakeit.UUID(),
		Result:     RuleResultSuccess,
		Metadata:   RandomJSONBMap(map[string]interface{}{"tasks_created": gofakeit.Number(0, 5), "notifications_created": gofakeit.Number(0, 5)}),
		ExecutedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.RuleID != "" {
			base.RuleID = ovr.RuleID
		}
		if ovr.Result != "" {
			base.Result = ovr.Result
		}
		base.Error = ovr.Error
		if ovr.Metadata != nil {
			base.Metadata = ovr.Metadata
		}
		if !ovr.ExecutedAt.IsZero() {
			base.ExecutedAt = ovr.ExecutedAt
		}
	}
	return base
}
