package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmops/internal/model"
)

func TestDiffTemplates_ClassifiesCriticalAndMinor(t *testing.T) {
	oldTpl := &model.RecurringTaskTemplate{
		Title:     "Seeding Check",
		Priority:  "medium",
		Location:  "greenhouse-1",
		Frequency: model.FrequencyDaily,
	}
	newTpl := &model.RecurringTaskTemplate{
		Title:     "Seeding Check v2",
		Priority:  "high",
		Location:  "greenhouse-2",
		Frequency: model.FrequencyDaily,
	}

	changes := DiffTemplates(oldTpl, newTpl)
	require.Len(t, changes, 3)

	byField := map[string]FieldChange{}
	for _, c := range changes {
		byField[c.Field] = c
	}

	assert.True(t, byField["title"].RequiresNotification, "title is critical")
	assert.True(t, byField["priority"].RequiresNotification, "priority is critical")
	assert.False(t, byField["location"].RequiresNotification, "location is minor")
	assert.Equal(t, "medium", byField["priority"].OldValue)
	assert.Equal(t, "high", byField["priority"].NewValue)
}

func TestDiffTemplates_ChecklistChangeIsCritical(t *testing.T) {
	oldTpl := &model.RecurringTaskTemplate{Title: "T", Frequency: model.FrequencyDaily}
	newTpl := &model.RecurringTaskTemplate{Title: "T", Frequency: model.FrequencyDaily}
	newTpl.ChecklistTemplate = []model.ChecklistStep{{Kind: model.StepInstruction, Label: "Rinse trays"}}

	changes := DiffTemplates(oldTpl, newTpl)
	require.Len(t, changes, 1)
	assert.Equal(t, "checklistTemplate", changes[0].Field)
	assert.True(t, changes[0].RequiresNotification)
}

func TestDiffTemplates_NoChangesAndDeterminism(t *testing.T) {
	tpl := &model.RecurringTaskTemplate{
		Title:      "T",
		Frequency:  model.FrequencyWeekly,
		DaysOfWeek: []string{"Monday", "Friday"},
	}
	other := *tpl

	assert.Empty(t, DiffTemplates(tpl, &other))

	other.DaysOfWeek = []string{"Monday"}
	first := DiffTemplates(tpl, &other)
	second := DiffTemplates(tpl, &other)
	assert.Equal(t, first, second, "same snapshots must diff identically")
}

func TestChangeDetectorScope(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	tpl, err := e.templates.Create(ctx, dailyTemplateInput("Scope"))
	require.NoError(t, err)

	created, err := e.templates.Generate(ctx, tpl.ID, testNow.AddDate(0, 0, 1), testNow.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, created, 10)

	// Two instances picked up and modified by workers, one completed.
	for i, status := range []model.TaskStatus{model.StatusInProgress, model.StatusInProgress, model.StatusCompleted} {
		task, err := e.taskRepo.FindByID(ctx, created[i].ID)
		require.NoError(t, err)
		task.Status = status
		task.IsModifiedAfterCreation = status == model.StatusInProgress
		require.NoError(t, e.taskRepo.Save(ctx, task))
	}

	detector := NewChangeDetector(e.taskRepo, fixedClock())
	affected, conflicts, err := detector.Scope(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, affected, "completed instance drops out of scope")
	assert.Equal(t, 2, conflicts)
}
