package main

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/model"
)

const (
	// Fresh entities get activity within this many days; stale ones strictly before it.
	freshWindowDays = 6
	staleMinDays    = 15
	staleMaxDays    = 60
)

// leadBatch is one unit of work for a seeding worker.
type leadBatch struct {
	Leads      []*model.Lead
	Activities []*model.Activity
}

// projectBatch holds projects and the tasks that keep some of them healthy.
type projectBatch struct {
	Projects []*model.Project
	Tasks    []*model.Task
}

func daysBefore(now time.Time, minDays, maxDays int) time.Time {
	return now.Add(-time.Duration(gofakeit.Number(minDays*24, maxDays*24)) * time.Hour).Truncate(time.Second)
}

// generateLeadBatch builds n contacted, owned leads. Roughly staleRatio of them get only old activity.
func generateLeadBatch(n int, staleRatio float64, now time.Time) leadBatch {
	batch := leadBatch{
		Leads:      make([]*model.Lead, 0, n),
		Activities: make([]*model.Activity, 0, n),
	}
	for i := 0; i < n; i++ {
		owner := gofakeit.UUID()
		lead := model.NewLead(&model.Lead{
			Stage:     model.LeadStageContacted,
			OwnerID:   &owner,
			CreatedAt: daysBefore(now, staleMaxDays, staleMaxDays+30),
		})

		lastTouch := daysBefore(now, 0, freshWindowDays)
		if gofakeit.Float64Range(0, 1) < staleRatio {
			lastTouch = daysBefore(now, staleMinDays, staleMaxDays)
		}

		batch.Leads = append(batch.Leads, lead)
		batch.Activities = append(batch.Activities, model.NewActivity(&model.Activity{
			EntityType: model.EntityTypeLead,
			EntityID:   lead.ID,
			Type:       gofakeit.RandomString([]string{model.ActivityTypeCall, model.ActivityTypeEmail, model.ActivityTypeNote}),
			CreatedBy:  &owner,
			CreatedAt:  lastTouch,
		}))
	}
	return batch
}

// generateProjectBatch builds n active, owned projects. Healthy ones get a recent open task.
func generateProjectBatch(n int, staleRatio float64, now time.Time) projectBatch {
	batch := projectBatch{Projects: make([]*model.Project, 0, n)}
	for i := 0; i < n; i++ {
		owner := gofakeit.UUID()
		project := model.NewProject(&model.Project{
			Status:    model.ProjectStatusActive,
			OwnerID:   &owner,
			CreatedAt: daysBefore(now, staleMaxDays, staleMaxDays+30),
		})
		batch.Projects = append(batch.Projects, project)

		if gofakeit.Float64Range(0, 1) < staleRatio {
			continue
		}
		touched := daysBefore(now, 0, freshWindowDays)
		batch.Tasks = append(batch.Tasks, model.NewTask(&model.Task{
			Status:     model.TaskStatusInProgress,
			ProjectID:  &project.ID,
			AssignedTo: &owner,
			CreatedBy:  &owner,
			CreatedAt:  touched,
			UpdatedAt:  touched,
		}))
	}
	return batch
}
