package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLead_Defaults(t *testing.T) {
	l := NewLead()
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, LeadStageContacted, l.Stage)
	assert.True(t, l.HasOwner())
	assert.True(t, l.CreatedAt.Before(l.UpdatedAt))
}

func TestNewLead_OverrideNilOwner(t *testing.T) {
	l := NewLead(&Lead{Title: "Acme", OwnerID: nil})
	assert.Equal(t, "Acme", l.Title)
	assert.False(t, l.HasOwner())

	empty := ""
	l = NewLead(&Lead{OwnerID: &empty})
	assert.False(t, l.HasOwner())
}

func TestNewAutomationRule_OverrideInactive(t *testing.T) {
	r := NewAutomationRule(&AutomationRule{IsActive: false, TriggerType: TriggerTaskCompleted})
	assert.False(t, r.IsActive)
	assert.Equal(t, TriggerTaskCompleted, r.TriggerType)
	assert.JSONEq(t, `{"type":"create_task_and_notification"}`, string(r.Action))
}

func TestTask_LastTouched(t *testing.T) {
	task := NewTask()
	task.UpdatedAt = task.CreatedAt.Add(-1)
	assert.Equal(t, task.CreatedAt, task.LastTouched())

	task.UpdatedAt = task.CreatedAt.Add(1)
	assert.Equal(t, task.UpdatedAt, task.LastTouched())
}
