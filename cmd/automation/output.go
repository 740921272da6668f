package main

import (
	"encoding/json"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printRules(w io.Writer, rules []model.AutomationRule) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Trigger", "Entity", "Active"})
	for _, r := range rules {
		tw.AppendRow(table.Row{r.ID, r.Name, r.TriggerType, ruleEntity(r), r.IsActive})
	}
	tw.Render()
}

// ruleLogCounters mirrors the counters stored in AutomationRuleLog.Metadata.
type ruleLogCounters struct {
	TasksCreated         int    `json:"tasks_created"`
	NotificationsCreated int    `json:"notifications_created"`
	RunID                string `json:"run_id"`
}

func printRuleLogs(w io.Writer, logs []model.AutomationRuleLog) {
	tw := newTable(w)
	tw.AppendHeader(table.Row{"Executed at", "Result", "Tasks", "Notifications", "Run", "Error"})
	for _, l := range logs {
		var counters ruleLogCounters
		if len(l.Metadata) > 0 {
			_ = json.Unmarshal(l.Metadata, &counters)
		}
		tw.AppendRow(table.Row{utils.FormatISO8601(l.ExecutedAt), l.Result, counters.TasksCreated, counters.NotificationsCreated, counters.RunID, l.Error})
	}
	tw.Render()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
