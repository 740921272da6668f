package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

const (
	DefaultStaleLeadDays    = 7
	DefaultStaleProjectDays = 14
)

// DetectorConfig holds the fallback windows used when neither the caller nor the settings table supplies one.
type DetectorConfig struct {
	StaleLeadDays    int
	StaleProjectDays int
}

// DefaultDetectorConfig returns the 7 / 14 day windows.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		StaleLeadDays:    DefaultStaleLeadDays,
		StaleProjectDays: DefaultStaleProjectDays,
	}
}

// StaleLead is a contacted, owned lead without recent activity.
type StaleLead struct {
	Lead                  model.Lead `json:"lead"`
	DaysSinceLastActivity int        `json:"days_since_last_activity"`
}

// StaleProject is an active project without recent or open tasks.
type StaleProject struct {
	Project           model.Project `json:"project"`
	DaysSinceLastTask int           `json:"days_since_last_task"`
}

// StaleEntityFinder is the detector surface the rule executor depends on.
type StaleEntityFinder interface {
	FindStaleLeads(ctx context.Context, days int) ([]StaleLead, error)
	FindStaleProjects(ctx context.Context, days int) ([]StaleProject, error)
}

// StaleDetector finds leads and projects that went quiet.
type StaleDetector struct {
	leads      storage.LeadRepo
	projects   storage.ProjectRepo
	tasks      storage.TaskRepo
	activities storage.ActivityRepo
	settings   SettingsProvider
	cfg        DetectorConfig
	now        func() time.Time
	baseLogger *zap.Logger
}

var _ StaleEntityFinder = (*StaleDetector)(nil)

// NewStaleDetector creates a detector. Non-positive config windows fall back to the 7 / 14 day defaults.
func NewStaleDetector(
	leads storage.LeadRepo,
	projects storage.ProjectRepo,
	tasks storage.TaskRepo,
	activities storage.ActivityRepo,
	settings SettingsProvider,
	cfg DetectorConfig,
	baseLogger *zap.Logger,
) *StaleDetector {
	if cfg.StaleLeadDays <= 0 {
		cfg.StaleLeadDays = DefaultStaleLeadDays
	}
	if cfg.StaleProjectDays <= 0 {
		cfg.StaleProjectDays = DefaultStaleProjectDays
	}
	return &StaleDetector{
		leads:      leads,
		projects:   projects,
		tasks:      tasks,
		activities: activities,
		settings:   settings,
		cfg:        cfg,
		now:        utils.Now,
		baseLogger: baseLogger.Named("stale_detector"),
	}
}

// WithClock overrides the time source.
func (d *StaleDetector) WithClock(now func() time.Time) *StaleDetector {
	d.now = now
	return d
}

// FindStaleLeads returns contacted leads with an owner and no activity at or after now-days.
// days <= 0 resolves the window from the stale_lead_days setting.
func (d *StaleDetector) FindStaleLeads(ctx context.Context, days int) ([]StaleLead, error) {
	if days <= 0 {
		days = d.settings.GetInt(ctx, model.SettingStaleLeadDays, d.cfg.StaleLeadDays)
	}
	log := logger.FromContextOr(ctx, d.baseLogger).With(zap.Int("window_days", days))

	candidates, err := d.leads.FindByStageWithOwner(ctx, model.LeadStageContacted)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate leads: %w", err)
	}

	now := d.now()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	stale := make([]StaleLead, 0)
	for _, lead := range candidates {
		if !lead.HasOwner() {
			continue
		}

		recent, err := d.activities.ExistsForEntitySince(ctx, model.EntityTypeLead, lead.ID, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to check activity for lead %s: %w", lead.ID, err)
		}
		if recent {
			continue
		}

		last := lead.CreatedAt
		latest, err := d.activities.FindLatestForEntity(ctx, model.EntityTypeLead, lead.ID)
		switch {
		case err == nil:
			last = latest.CreatedAt
		case !errors.Is(err, apperrors.ErrNotFound):
			log.Warn("Failed to load latest activity, measuring from lead creation",
				zap.String("lead_id", lead.ID), zap.Error(err))
		}

		stale = append(stale, StaleLead{
			Lead:                  lead,
			DaysSinceLastActivity: utils.WholeDaysBetween(last, now),
		})
	}

	observer.AddStaleEntities(model.EntityTypeLead, tenant.CompanyOrUnknown(ctx), len(stale))
	log.Debug("Stale lead scan finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("stale", len(stale)))
	return stale, nil
}

// FindStaleProjects returns active projects with no task created or updated at or after now-days
// and no task left open. days <= 0 resolves the window from the stale_project_days setting.
func (d *StaleDetector) FindStaleProjects(ctx context.Context, days int) ([]StaleProject, error) {
	if days <= 0 {
		days = d.settings.GetInt(ctx, model.SettingStaleProjectDays, d.cfg.StaleProjectDays)
	}
	log := logger.FromContextOr(ctx, d.baseLogger).With(zap.Int("window_days", days))

	candidates, err := d.projects.FindByStatus(ctx, model.ProjectStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate projects: %w", err)
	}

	now := d.now()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	stale := make([]StaleProject, 0)
	for _, project := range candidates {
		recent, err := d.tasks.ExistsForProjectSince(ctx, project.ID, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to check recent tasks for project %s: %w", project.ID, err)
		}
		if recent {
			continue
		}

		open, err := d.tasks.CountOpenForProject(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count open tasks for project %s: %w", project.ID, err)
		}
		if open > 0 {
			continue
		}

		last := project.CreatedAt
		latest, err := d.tasks.FindLatestForProject(ctx, project.ID)
		switch {
		case err == nil:
			last = latest.LastTouched()
		case !errors.Is(err, apperrors.ErrNotFound):
			log.Warn("Failed to load latest task, measuring from project creation",
				zap.String("project_id", project.ID), zap.Error(err))
		}

		stale = append(stale, StaleProject{
			Project:           project,
			DaysSinceLastTask: utils.WholeDaysBetween(last, now),
		})
	}

	observer.AddStaleEntities(model.EntityTypeProject, tenant.CompanyOrUnknown(ctx), len(stale))
	log.Debug("Stale project scan finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("stale", len(stale)))
	return stale, nil
}
