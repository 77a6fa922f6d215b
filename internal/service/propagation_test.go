package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmops/internal/model"
)

// seedTemplateWithInstances creates a daily template and n future pending
// instances for it.
func seedTemplateWithInstances(t *testing.T, e *env, n int) *model.RecurringTaskTemplate {
	t.Helper()
	ctx := context.Background()

	tpl, err := e.templates.Create(ctx, dailyTemplateInput("Daily Seeding Check"))
	require.NoError(t, err)

	created, err := e.generator.Generate(ctx, tpl, testNow.AddDate(0, 0, 1), testNow.AddDate(0, 0, n))
	require.NoError(t, err)
	require.Len(t, created, n)
	return tpl
}

func TestPropagation_UpdateAllWithoutConflicts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tpl := seedTemplateWithInstances(t, e, 10)

	updated, summary, err := e.templates.Update(ctx, tpl.ID, withPriority(dailyTemplateInput(tpl.Title), tpl, "high"), StrategyUpdateAll, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, 10, summary.AffectedTaskCount)
	assert.Equal(t, 0, summary.ConflictCount)
	assert.Equal(t, model.PropagationCompleted, summary.PropagationStatus)

	tasks, err := e.taskRepo.List(ctx, taskFilterForTemplate(tpl.ID))
	require.NoError(t, err)
	require.Len(t, tasks, 10)
	for _, task := range tasks {
		assert.Equal(t, "high", task.Priority)
		assert.Equal(t, 2, task.TemplateVersion)
	}
}

func TestPropagation_ConflictedInstancesAreNotOverwritten(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tpl := seedTemplateWithInstances(t, e, 10)

	worker := model.User{Name: "Sam", Email: "sam@farm.test"}
	require.NoError(t, e.userRepo.Create(ctx, &worker))
	assignee := worker.ID

	tasks, err := e.taskRepo.List(ctx, taskFilterForTemplate(tpl.ID))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		tasks[i].Status = model.StatusInProgress
		tasks[i].IsModifiedAfterCreation = true
		tasks[i].AssigneeID = &assignee
		tasks[i].Progress = 40
		require.NoError(t, e.taskRepo.Save(ctx, &tasks[i]))
	}

	_, summary, err := e.templates.Update(ctx, tpl.ID, withPriority(dailyTemplateInput(tpl.Title), tpl, "high"), StrategyUpdateAll, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.AffectedTaskCount)
	assert.Equal(t, 2, summary.ConflictCount)
	assert.Equal(t, model.PropagationCompletedWithConflicts, summary.PropagationStatus)

	after, err := e.taskRepo.List(ctx, taskFilterForTemplate(tpl.ID))
	require.NoError(t, err)

	var conflicted, clean int
	for _, task := range after {
		if task.Status == model.StatusInProgress {
			// In-progress user work is preserved and left version-behind.
			assert.Equal(t, "medium", task.Priority)
			assert.Equal(t, 1, task.TemplateVersion)
			assert.Equal(t, 40, task.Progress)
			assert.Equal(t, ConflictPending, ClassifyConflict(&task, 2))
			conflicted++
		} else {
			assert.Equal(t, "high", task.Priority)
			assert.Equal(t, 2, task.TemplateVersion)
			clean++
		}
	}
	assert.Equal(t, 2, conflicted)
	assert.Equal(t, 8, clean)

	// The assignee got a pending conflict notification per instance.
	notes, err := e.notifier.List(ctx, assignee, true)
	require.NoError(t, err)
	assert.Len(t, notes, 2)
	assert.Equal(t, NotifyTemplateConflict, notes[0].Type)
}

func TestPropagation_NeverTouchesCompletedWork(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tpl := seedTemplateWithInstances(t, e, 5)

	tasks, err := e.taskRepo.List(ctx, taskFilterForTemplate(tpl.ID))
	require.NoError(t, err)
	done := tasks[0]
	done.Status = model.StatusCompleted
	done.Progress = 100
	require.NoError(t, e.taskRepo.Save(ctx, &done))

	_, summary, err := e.templates.Update(ctx, tpl.ID, withPriority(dailyTemplateInput(tpl.Title), tpl, "high"), StrategyUpdateAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.AffectedTaskCount, "completed instance is out of scope")

	after, err := e.taskRepo.FindByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, "medium", after.Priority)
	assert.Equal(t, 1, after.TemplateVersion)
	assert.Equal(t, model.StatusCompleted, after.Status)
}

func TestPropagation_NewOnlyLeavesExistingInstancesAlone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tpl := seedTemplateWithInstances(t, e, 6)

	updated, summary, err := e.templates.Update(ctx, tpl.ID, withPriority(dailyTemplateInput(tpl.Title), tpl, "high"), StrategyNewOnly, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PropagationCompleted, summary.PropagationStatus)

	existing, err := e.taskRepo.List(ctx, taskFilterForTemplate(tpl.ID))
	require.NoError(t, err)
	for _, task := range existing {
		assert.Equal(t, "medium", task.Priority)
		assert.Equal(t, 1, task.TemplateVersion)
	}

	// Instances generated after the edit read the current template.
	created, err := e.generator.Generate(ctx, updated, testNow.AddDate(0, 0, 7), testNow.AddDate(0, 0, 8))
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, task := range created {
		assert.Equal(t, "high", task.Priority)
		assert.Equal(t, 2, task.TemplateVersion)
	}
}

func TestPropagation_ReportsIncrementalProgress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tpl := seedTemplateWithInstances(t, e, 4)

	var seen []Progress
	in := withPriority(dailyTemplateInput(tpl.Title), tpl, "high")
	_, _, err := e.templates.Update(ctx, tpl.ID, in, StrategyUpdateAll, func(p Progress) {
		seen = append(seen, p)
	})
	require.NoError(t, err)

	require.Len(t, seen, 4)
	for i, p := range seen {
		assert.Equal(t, i+1, p.Current)
		assert.Equal(t, 4, p.Total)
		assert.NotEmpty(t, p.Stage)
	}
}

func TestPropagation_ChangeRecordPersisted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tpl := seedTemplateWithInstances(t, e, 3)

	_, summary, err := e.templates.Update(ctx, tpl.ID, withPriority(dailyTemplateInput(tpl.Title), tpl, "high"), StrategyUpdateAll, nil)
	require.NoError(t, err)
	require.NotEmpty(t, summary.ChangeRecordID)

	rec, err := e.changeRepo.FindByID(ctx, summary.ChangeRecordID)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, rec.RecurringTaskID)
	assert.Equal(t, []string{"priority"}, []string(rec.ChangedFields))
	assert.Equal(t, "medium", rec.OldValues["priority"])
	assert.Equal(t, "high", rec.NewValues["priority"])
	assert.Equal(t, model.PropagationCompleted, rec.PropagationStatus)
}

func TestPropagation_RejectsUnknownStrategy(t *testing.T) {
	e := newEnv(t)
	tpl := seedTemplateWithInstances(t, e, 1)

	_, _, err := e.templates.Update(context.Background(), tpl.ID, withPriority(dailyTemplateInput(tpl.Title), tpl, "high"), Strategy("everything"), nil)
	require.Error(t, err)
}

// withPriority copies template identity into the input and changes just the
// priority, so the diff contains a single critical field.
func TestPropagation_NotifiesAssigneesOfCriticalUpdates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tpl := seedTemplateWithInstances(t, e, 3)

	worker := model.User{Name: "Ana", Email: "ana@farm.test"}
	require.NoError(t, e.userRepo.Create(ctx, &worker))
	assignee := worker.ID

	tasks, err := e.taskRepo.List(ctx, taskFilterForTemplate(tpl.ID))
	require.NoError(t, err)
	tasks[0].AssigneeID = &assignee
	require.NoError(t, e.taskRepo.Save(ctx, &tasks[0]))

	// Location is a minor field; no one is notified.
	in := dailyTemplateInput(tpl.Title)
	in.StartDate = tpl.StartDate
	in.Location = "greenhouse-2"
	tpl, _, err = e.templates.Update(ctx, tpl.ID, in, StrategyUpdateAll, nil)
	require.NoError(t, err)

	notes, err := e.notifier.List(ctx, assignee, true)
	require.NoError(t, err)
	assert.Empty(t, notes)

	// Priority is critical; the assignee of the updated instance hears
	// about it, unassigned instances notify no one.
	_, summary, err := e.templates.Update(ctx, tpl.ID, withPriority(in, tpl, "high"), StrategyUpdateAll, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ConflictCount)

	notes, err = e.notifier.List(ctx, assignee, true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, NotifyTemplateUpdated, notes[0].Type)
	assert.Equal(t, summary.ChangeRecordID, notes[0].RelatedID)
}

func withPriority(in TemplateInput, tpl *model.RecurringTaskTemplate, priority string) TemplateInput {
	in.StartDate = tpl.StartDate
	in.Priority = priority
	return in
}
