package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"farmops/internal/clock"
	apperrors "farmops/internal/errors"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// TaskInput creates a standalone task instance.
type TaskInput struct {
	Title       string
	Description string
	Type        string
	Priority    string
	Location    string
	DueDate     time.Time
	AssigneeID  *uint
	Checklist   []model.ChecklistStep
}

// TaskUpdate carries a partial edit to a task. Nil fields are untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *string
	AssigneeID  *uint
	Progress    *int
	Checklist   []model.ChecklistItem
}

// allowedTransitions is the task lifecycle. Keys are from-states.
var allowedTransitions = map[model.TaskStatus][]model.TaskStatus{
	model.StatusPending:    {model.StatusInProgress, model.StatusSkipped},
	model.StatusInProgress: {model.StatusPaused, model.StatusCompleted, model.StatusSkipped},
	model.StatusPaused:     {model.StatusInProgress, model.StatusSkipped},
	model.StatusCompleted:  {model.StatusApproved},
}

// TaskService wraps task-instance business logic: creation, edits with
// modification tracking, and status transitions.
type TaskService struct {
	tasks     *repository.TaskRepository
	templates *repository.TemplateRepository
	clock     clock.Clock
	log       zerolog.Logger
}

func NewTaskService(tasks *repository.TaskRepository, templates *repository.TemplateRepository, clk clock.Clock, log zerolog.Logger) *TaskService {
	return &TaskService{tasks: tasks, templates: templates, clock: clk, log: log}
}

// Create adds a standalone task (no template linkage).
func (s *TaskService) Create(ctx context.Context, in TaskInput) (*model.TaskInstance, error) {
	if in.Title == "" {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "title is required")
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	for _, step := range in.Checklist {
		if err := step.Validate(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrValidation, err.Error())
		}
	}

	task := &model.TaskInstance{
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Status:      model.StatusPending,
		Priority:    in.Priority,
		Location:    in.Location,
		DueDate:     in.DueDate,
		AssigneeID:  in.AssigneeID,
		Checklist:   model.NewChecklist(in.Checklist),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id uint) (*model.TaskInstance, error) {
	return s.tasks.FindByID(ctx, id)
}

func (s *TaskService) List(ctx context.Context, f repository.TaskFilter) ([]model.TaskInstance, error) {
	return s.tasks.List(ctx, f)
}

// ListWithTemplateUpdates returns template-linked tasks that are modified
// or version-behind, annotated with their conflict state.
func (s *TaskService) ListWithTemplateUpdates(ctx context.Context) ([]TaskWithConflict, error) {
	tasks, err := s.tasks.ListWithTemplateUpdates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TaskWithConflict, 0, len(tasks))
	for i := range tasks {
		state := ConflictNone
		if tasks[i].RecurringTaskID != nil {
			tpl, err := s.templates.FindByID(ctx, *tasks[i].RecurringTaskID)
			if err == nil {
				state = ClassifyConflict(&tasks[i], tpl.Version)
			}
		}
		out = append(out, TaskWithConflict{Task: tasks[i], ConflictState: state})
	}
	return out, nil
}

// TaskWithConflict pairs an instance with its classified conflict state.
type TaskWithConflict struct {
	Task          model.TaskInstance `json:"task"`
	ConflictState ConflictState      `json:"conflictState"`
}

// Update applies a partial edit. Edits to content fields of a
// template-linked task mark it as modified after creation, which is what
// later turns a template edit into a conflict instead of an overwrite.
func (s *TaskService) Update(ctx context.Context, id uint, in TaskUpdate) (*model.TaskInstance, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidTransition, "task %d is %s", id, task.Status)
	}

	contentTouched := false
	if in.Title != nil && *in.Title != task.Title {
		task.Title = *in.Title
		contentTouched = true
	}
	if in.Description != nil && *in.Description != task.Description {
		task.Description = *in.Description
		contentTouched = true
	}
	if in.Priority != nil && *in.Priority != task.Priority {
		task.Priority = *in.Priority
		contentTouched = true
	}
	if in.AssigneeID != nil {
		task.AssigneeID = in.AssigneeID
	}
	if in.Checklist != nil {
		task.Checklist = in.Checklist
		task.Progress = checklistProgress(in.Checklist)
		contentTouched = true
	}
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return nil, apperrors.Wrapf(apperrors.ErrValidation, "progress %d out of range", *in.Progress)
		}
		task.Progress = *in.Progress
	}

	if contentTouched && task.FromTemplate() && !task.IsModifiedAfterCreation {
		now := s.clock.Now()
		task.IsModifiedAfterCreation = true
		task.ModifiedFromTemplateAt = &now
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateStatus moves a task through its lifecycle, stamping the matching
// timestamp for the transition.
func (s *TaskService) UpdateStatus(ctx context.Context, id uint, status model.TaskStatus) (*model.TaskInstance, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(task.Status, status) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidTransition, "%s -> %s", task.Status, status)
	}

	now := s.clock.Now()
	task.Status = status
	switch status {
	case model.StatusInProgress:
		if task.StartedAt == nil {
			task.StartedAt = &now
		}
		task.PausedAt = nil
	case model.StatusPaused:
		task.PausedAt = &now
	case model.StatusCompleted:
		task.CompletedAt = &now
		task.Progress = 100
	case model.StatusSkipped:
		task.SkippedAt = &now
	}

	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes a task instance.
func (s *TaskService) Delete(ctx context.Context, id uint) error {
	return s.tasks.Delete(ctx, id)
}

func transitionAllowed(from, to model.TaskStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// checklistProgress derives percent done from per-item completion.
func checklistProgress(items []model.ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, item := range items {
		if item.Completed {
			done++
		}
	}
	return done * 100 / len(items)
}
