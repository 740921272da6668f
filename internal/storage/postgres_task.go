package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-automation/pkg/utils"
)

// --- Task Repository Methods ---

// CreateTask inserts a task and returns the stored row.
// An empty ID is filled with a new UUID; zero timestamps are set to now.
func (r *PostgresRepo) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := utils.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	operation := func() error {
		result := r.db.WithContext(ctx).Create(&task)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: create operation affected 0 rows", apperrors.ErrDatabase)
		}
		return nil
	}

	if err := observedInsert(ctx, "task", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to create task after retries",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return nil, err
	}
	return &task, nil
}

// TaskExistsForProjectSince reports whether the project has a task created or updated at or after since.
func (r *PostgresRepo) TaskExistsForProjectSince(ctx context.Context, projectID string, since time.Time) (bool, error) {
	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Task{}).
			Where("project_id = ? AND (created_at >= ? OR updated_at >= ?)", projectID, since, since).
			Count(&count)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "exists_since", "task", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to check recent tasks for project",
			zap.String("project_id", projectID),
			zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// CountOpenTasksForProject counts the project's tasks whose status is not 'done'.
func (r *PostgresRepo) CountOpenTasksForProject(ctx context.Context, projectID string) (int64, error) {
	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.Task{}).
			Where("project_id = ? AND status <> ?", projectID, model.TaskStatusDone).
			Count(&count)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "count_open", "task", operation); err != nil {
		logger.FromContext(ctx).Error("Failed to count open tasks for project",
			zap.String("project_id", projectID),
			zap.Error(err))
		return 0, err
	}
	return count, nil
}

// FindLatestTaskForProject returns the most recently updated task of a project, or apperrors.ErrNotFound.
func (r *PostgresRepo) FindLatestTaskForProject(ctx context.Context, projectID string) (*model.Task, error) {
	var task model.Task
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("project_id = ?", projectID).
			Order("updated_at DESC").
			First(&task)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	if err := observedRead(ctx, "find_latest", "task", operation); err != nil {
		return nil, err
	}
	return &task, nil
}
