package usecase

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/validator"
)

const (
	DefaultLeadTaskTitleTemplate       = "Follow-up lead: {{lead.title}}"
	DefaultLeadTaskDescriptionTemplate = "Lead {{lead.title}} has had no activity for {{days}} days. Reach out to keep it moving."
	DefaultLeadNotificationTemplate    = "New follow-up task for lead {{lead.title}}: no activity for {{days}} days"
	DefaultProjectRiskMessageTemplate  = "Project {{project.name}} has had no task activity for {{days}} days"
)

const (
	conditionSchemaURL = "rule_condition.json"
	actionSchemaURL    = "rule_action.json"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compileSchemasOnce sync.Once
	conditionSchema    *jsonschema.Schema
	actionSchema       *jsonschema.Schema
	compileSchemasErr  error
)

// RuleSpec is a decoded automation rule. The concrete type selects the handler.
type RuleSpec interface {
	ID() string
	Entity() string
}

// LeadFollowUpRule creates a task, a notification and an activity for every stale lead.
type LeadFollowUpRule struct {
	RuleID                      string `json:"rule_id" validate:"required"`
	DaysWithoutActivity         int    `json:"days_without_activity" validate:"min=1,max=3650"`
	TaskTitleTemplate           string `json:"task_title_template" validate:"required"`
	TaskDescriptionTemplate     string `json:"task_description_template"`
	NotificationMessageTemplate string `json:"notification_message_template" validate:"required"`
}

func (r *LeadFollowUpRule) ID() string { return r.RuleID }
func (r *LeadFollowUpRule) Entity() string { return model.EntityTypeLead }

// ProjectRiskRule notifies the owner of every stale project.
type ProjectRiskRule struct {
	RuleID          string `json:"rule_id" validate:"required"`
	DaysWithoutTask int    `json:"days_without_task" validate:"min=1,max=3650"`
	MessageTemplate string `json:"message_template" validate:"required"`
}

func (r *ProjectRiskRule) ID() string { return r.RuleID }
func (r *ProjectRiskRule) Entity() string { return model.EntityTypeProject }

// ruleCondition is the union of every condition field the handlers read.
type ruleCondition struct {
	Entity              string  `json:"entity"`
	DaysWithoutActivity float64 `json:"days_without_activity"`
	DaysWithoutTask     float64 `json:"days_without_task"`
}

// ruleAction is the union of every action field the handlers read.
type ruleAction struct {
	Type                        string `json:"type"`
	TaskTitleTemplate           string `json:"task_title_template"`
	TaskDescriptionTemplate     string `json:"task_description_template"`
	NotificationMessageTemplate string `json:"notification_message_template"`
	MessageTemplate             string `json:"message_template"`
}

func loadSchemas() error {
	compileSchemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		for _, name := range []string{conditionSchemaURL, actionSchemaURL} {
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileSchemasErr = fmt.Errorf("failed to read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
				compileSchemasErr = fmt.Errorf("failed to add schema resource %s: %w", name, err)
				return
			}
		}
		if conditionSchema, compileSchemasErr = compiler.Compile(conditionSchemaURL); compileSchemasErr != nil {
			return
		}
		actionSchema, compileSchemasErr = compiler.Compile(actionSchemaURL)
	})
	return compileSchemasErr
}

// validateDocument checks a raw JSON document against schema and decodes it into out.
// Empty documents decode as {}.
func validateDocument(schema *jsonschema.Schema, field string, raw []byte, out interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		raw = []byte("{}")
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: rule %s is not valid JSON: %v", apperrors.ErrValidation, field, err)
	}
	if err := schema.Validate(doc); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("%w: rule %s failed schema validation: %v", apperrors.ErrValidation, field, validationErr)
		}
		return fmt.Errorf("%w: rule %s failed schema validation: %v", apperrors.ErrValidation, field, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: rule %s could not be decoded: %v", apperrors.ErrValidation, field, err)
	}
	return nil
}

// DecodeRule turns a persisted rule into a RuleSpec, filling defaults for missing or zero fields.
// Missing windows come from defaults; its non-positive fields fall back to 7 / 14 days.
// Unknown (entity, action type) pairs yield apperrors.ErrUnsupportedRule.
func DecodeRule(rule model.AutomationRule, defaults DetectorConfig) (RuleSpec, error) {
	if defaults.StaleLeadDays <= 0 {
		defaults.StaleLeadDays = DefaultStaleLeadDays
	}
	if defaults.StaleProjectDays <= 0 {
		defaults.StaleProjectDays = DefaultStaleProjectDays
	}
	if err := loadSchemas(); err != nil {
		return nil, err
	}

	var condition ruleCondition
	if err := validateDocument(conditionSchema, "condition", rule.Condition, &condition); err != nil {
		return nil, err
	}
	var action ruleAction
	if err := validateDocument(actionSchema, "action", rule.Action, &action); err != nil {
		return nil, err
	}

	var spec RuleSpec
	switch {
	case condition.Entity == model.EntityTypeLead && action.Type == model.ActionCreateTaskAndNotification:
		spec = &LeadFollowUpRule{
			RuleID:                      rule.ID,
			DaysWithoutActivity:         windowDays(condition.DaysWithoutActivity, defaults.StaleLeadDays),
			TaskTitleTemplate:           stringOrDefault(action.TaskTitleTemplate, DefaultLeadTaskTitleTemplate),
			TaskDescriptionTemplate:     stringOrDefault(action.TaskDescriptionTemplate, DefaultLeadTaskDescriptionTemplate),
			NotificationMessageTemplate: stringOrDefault(action.NotificationMessageTemplate, DefaultLeadNotificationTemplate),
		}
	case condition.Entity == model.EntityTypeProject && action.Type == model.ActionCreateNotificationOnly:
		spec = &ProjectRiskRule{
			RuleID:          rule.ID,
			DaysWithoutTask: windowDays(condition.DaysWithoutTask, defaults.StaleProjectDays),
			MessageTemplate: stringOrDefault(action.MessageTemplate, DefaultProjectRiskMessageTemplate),
		}
	default:
		return nil, apperrors.UnsupportedRuleError(condition.Entity, action.Type)
	}

	if err := validator.Validate(spec); err != nil {
		return nil, fmt.Errorf("invalid rule %s: %w", rule.ID, err)
	}
	return spec, nil
}

// windowDays floors a fractional window to whole days, never below one.
func windowDays(v float64, def int) int {
	if v <= 0 {
		return def
	}
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	return max(int(math.Floor(v)), 1)
}

func stringOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
