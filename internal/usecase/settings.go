package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

// SettingsProvider resolves numeric settings with a caller supplied fallback.
type SettingsProvider interface {
	GetInt(ctx context.Context, key string, defaultValue int) int
}

// RepoSettingsProvider reads settings from the settings table.
type RepoSettingsProvider struct {
	repo       storage.SettingsRepo
	baseLogger *zap.Logger
}

var _ SettingsProvider = (*RepoSettingsProvider)(nil)

// NewRepoSettingsProvider creates a settings provider backed by repo.
func NewRepoSettingsProvider(repo storage.SettingsRepo, baseLogger *zap.Logger) *RepoSettingsProvider {
	return &RepoSettingsProvider{
		repo:       repo,
		baseLogger: baseLogger.Named("settings"),
	}
}

// GetInt returns the setting parsed as a positive integer. Any read or parse failure yields defaultValue.
func (p *RepoSettingsProvider) GetInt(ctx context.Context, key string, defaultValue int) int {
	log := logger.FromContextOr(ctx, p.baseLogger).With(zap.String("setting_key", key))

	setting, err := p.repo.Find(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Debug("Setting not found, using default", zap.Int("default", defaultValue))
		} else {
			log.Warn("Failed to read setting, using default", zap.Int("default", defaultValue), zap.Error(err))
		}
		return defaultValue
	}

	value, err := strconv.Atoi(strings.TrimSpace(setting.Value))
	if err != nil || value <= 0 {
		log.Warn("Setting is not a positive integer, using default",
			zap.String("value", setting.Value),
			zap.Int("default", defaultValue))
		return defaultValue
	}
	return value
}
