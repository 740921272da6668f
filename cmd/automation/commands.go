package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/usecase"
)

func (e *cliEnv) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute every active daily rule once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				summary, err := app.runner.RunDailyAutomations(ctx)
				if err != nil {
					return err
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), summary)
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Rules executed", "Tasks created", "Notifications created", "Errors"})
				tw.AppendRow(table.Row{summary.RulesExecuted, summary.TasksCreated, summary.NotificationsCreated, summary.Errors})
				tw.Render()
				return nil
			})
		},
	}
}

func (e *cliEnv) staleCmd() *cobra.Command {
	stale := &cobra.Command{Use: "stale", Short: "List stale leads or projects without acting on them"}
	stale.AddCommand(e.staleLeadsCmd())
	stale.AddCommand(e.staleProjectsCmd())
	return stale
}

func (e *cliEnv) staleLeadsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List contacted leads without recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				leads, err := app.detector.FindStaleLeads(ctx, days)
				if err != nil {
					return err
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), leads)
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Title", "Owner", "Days since activity"})
				for _, s := range leads {
					tw.AppendRow(table.Row{s.Lead.ID, s.Lead.Title, deref(s.Lead.OwnerID), s.DaysSinceLastActivity})
				}
				tw.AppendFooter(table.Row{"", "", "Total", len(leads)})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "window in days (0 uses the stale_lead_days setting)")
	return cmd
}

func (e *cliEnv) staleProjectsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List active projects without recent or open tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				projects, err := app.detector.FindStaleProjects(ctx, days)
				if err != nil {
					return err
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), projects)
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"ID", "Name", "Owner", "Days since last task"})
				for _, s := range projects {
					tw.AppendRow(table.Row{s.Project.ID, s.Project.Name, deref(s.Project.OwnerID), s.DaysSinceLastTask})
				}
				tw.AppendFooter(table.Row{"", "", "Total", len(projects)})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "window in days (0 uses the stale_project_days setting)")
	return cmd
}

func (e *cliEnv) rulesCmd() *cobra.Command {
	rules := &cobra.Command{Use: "rules", Short: "Manage automation rules"}
	rules.AddCommand(e.rulesListCmd())
	rules.AddCommand(e.rulesRunCmd())
	rules.AddCommand(e.rulesToggleCmd("enable", "Include a rule in scheduled runs", true))
	rules.AddCommand(e.rulesToggleCmd("disable", "Exclude a rule from scheduled runs", false))
	rules.AddCommand(e.rulesLogsCmd())
	rules.AddCommand(e.rulesSeedCmd())
	return rules
}

func (e *cliEnv) rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List automation rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				rules, err := app.admin.List(ctx)
				if err != nil {
					return err
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), rules)
				}
				printRules(cmd.OutOrStdout(), rules)
				return nil
			})
		},
	}
}

func (e *cliEnv) rulesRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <rule-id>",
		Short: "Execute one rule now, regardless of its active flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				rule, err := app.admin.Get(ctx, args[0])
				if err != nil {
					return err
				}
				result, err := app.runner.RunRule(ctx, *rule)
				if err != nil {
					return fmt.Errorf("rule %s failed: %w", rule.ID, err)
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), result)
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Rule", "Tasks created", "Notifications created"})
				tw.AppendRow(table.Row{rule.Name, result.TasksCreated, result.NotificationsCreated})
				tw.Render()
				return nil
			})
		},
	}
}

func (e *cliEnv) rulesToggleCmd(verb, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <rule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				if err := app.admin.SetActive(ctx, args[0], active); err != nil {
					return err
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"id": args[0], "is_active": active})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rule %s %sd\n", args[0], verb)
				return nil
			})
		},
	}
}

func (e *cliEnv) rulesLogsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs <rule-id>",
		Short: "Show the newest execution log entries of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				logs, err := app.admin.Logs(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), logs)
				}
				printRuleLogs(cmd.OutOrStdout(), logs)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	return cmd
}

func (e *cliEnv) rulesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the default stale lead and project risk rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				created, err := app.admin.Seed(ctx)
				if err != nil {
					return err
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), created)
				}
				if len(created) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "default rules already installed")
					return nil
				}
				printRules(cmd.OutOrStdout(), created)
				return nil
			})
		},
	}
}

func (e *cliEnv) settingsCmd() *cobra.Command {
	settings := &cobra.Command{Use: "settings", Short: "Edit automation settings"}
	settings.AddCommand(&cobra.Command{
		Use:   "set <" + model.SettingStaleLeadDays + "|" + model.SettingStaleProjectDays + "> <days>",
		Short: "Override a stale window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("days must be an integer: %w", err)
			}
			return e.withApp(cmd, func(ctx context.Context, app *cliApp) error {
				if err := app.admin.SetStaleWindow(ctx, args[0], days); err != nil {
					return err
				}
				if e.jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{"key": args[0], "value": days})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s set to %d\n", args[0], days)
				return nil
			})
		},
	})
	return settings
}

// ruleEntity reports the entity a rule targets, or why it cannot be decoded.
// Windows do not affect the entity, so the built-in defaults are enough.
func ruleEntity(rule model.AutomationRule) string {
	spec, err := usecase.DecodeRule(rule, usecase.DefaultDetectorConfig())
	if err != nil {
		return "invalid: " + err.Error()
	}
	return spec.Entity()
}
