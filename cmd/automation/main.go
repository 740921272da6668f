package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/config"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

const closeTimeout = 10 * time.Second

// cliEnv carries the global flags and the app opener shared by every command.
type cliEnv struct {
	configPath string
	jsonOutput bool
	logLevel   string
	open       appOpener
}

func main() {
	time.Local = time.UTC

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openApp).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(open appOpener) *cobra.Command {
	env := &cliEnv{open: open}

	root := &cobra.Command{
		Use:   "crm-automation",
		Short: "CRM automation engine",
		Long: `Runs the daily CRM automations: follow-up tasks for contacted leads that went quiet
and at-risk notifications for active projects without task activity.

Automation rules live in the automation_rules table; every execution is recorded in
automation_rule_logs. Stale windows come from the stale_lead_days / stale_project_days
settings, falling back to the configured defaults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&env.configPath, "config", "", "directory containing default.yaml")
	root.PersistentFlags().BoolVar(&env.jsonOutput, "json", false, "output JSON")
	root.PersistentFlags().StringVar(&env.logLevel, "log-level", "", "log level override (logs go to stderr)")

	root.AddCommand(env.runCmd())
	root.AddCommand(env.staleCmd())
	root.AddCommand(env.rulesCmd())
	root.AddCommand(env.settingsCmd())
	return root
}

// withApp loads configuration, wires the engine and runs fn in the tenant context.
func (e *cliEnv) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cliApp) error) error {
	cfg, err := config.LoadConfig(e.configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if e.logLevel != "" {
		level = e.logLevel
	}
	if err := logger.InitializeWithOutput(level, "stderr"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	// Nothing scrapes a one-shot process.
	observer.InitMetrics(false)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := e.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		app.Close(closeCtx)
	}()

	return fn(app.tenantContext(ctx), app)
}
