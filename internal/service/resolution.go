package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"farmops/internal/clock"
	apperrors "farmops/internal/errors"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// ResolutionInput is a user's decision for one conflicted instance.
type ResolutionInput struct {
	Action         model.ResolutionAction
	Notes          string
	ChangeRecordID string
}

// ResolutionHandler records conflict decisions and applies their effect.
// Every call is audit-logged. Calls are idempotent per task: resolving an
// instance that is no longer in conflict is a logged no-op.
type ResolutionHandler struct {
	db        *gorm.DB
	tasks     *repository.TaskRepository
	templates *repository.TemplateRepository
	changes   *repository.ChangeRepository
	users     *repository.UserRepository
	notifier  *Notifier
	clock     clock.Clock
	log       zerolog.Logger
}

func NewResolutionHandler(db *gorm.DB, tasks *repository.TaskRepository, templates *repository.TemplateRepository, changes *repository.ChangeRepository, users *repository.UserRepository, notifier *Notifier, clk clock.Clock, log zerolog.Logger) *ResolutionHandler {
	return &ResolutionHandler{
		db:        db,
		tasks:     tasks,
		templates: templates,
		changes:   changes,
		users:     users,
		notifier:  notifier,
		clock:     clk,
		log:       log,
	}
}

// Resolve applies one resolution action to one task and returns the task's
// resulting state.
func (h *ResolutionHandler) Resolve(ctx context.Context, taskID uint, in ResolutionInput) (*model.TaskInstance, error) {
	if !in.Action.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "unknown resolution action %q", in.Action)
	}

	task, err := h.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.FromTemplate() {
		return nil, apperrors.Wrapf(apperrors.ErrNotInConflict, "task %d is not linked to a live template", taskID)
	}
	tpl, err := h.templates.FindByID(ctx, *task.RecurringTaskID)
	if err != nil {
		return nil, err
	}

	state := ClassifyConflict(task, tpl.Version)

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txTasks := h.tasks.WithTx(tx)
		txChanges := h.changes.WithTx(tx)

		switch in.Action {
		case model.ResolutionKeepCurrent:
			if state == ConflictPending {
				// Acknowledged: fields and version stay as they are,
				// the modified flag is cleared so the classifier
				// stops firing. The instance remains version-behind
				// on purpose.
				task.IsModifiedAfterCreation = false
				if err := txTasks.Save(ctx, task); err != nil {
					return err
				}
			}

		case model.ResolutionApplyTemplate:
			if state != ConflictNone {
				task.Title = tpl.Title
				task.Description = tpl.Description
				task.Checklist = model.MergeChecklist(task.Checklist, tpl.ChecklistTemplate)
				task.TemplateVersion = tpl.Version
				task.IsModifiedAfterCreation = false
				task.ModifiedFromTemplateAt = nil
				if err := txTasks.Save(ctx, task); err != nil {
					return err
				}
			}

		case model.ResolutionManualMerge:
			// No automatic changes; a human merges outside this flow.
			managers, err := h.users.ListManagers(ctx)
			if err != nil {
				return err
			}
			txNotifier := h.notifier.WithTx(tx)
			for _, m := range managers {
				if err := txNotifier.Submit(ctx, m.ID, NotifyManualMerge,
					"Manual merge requested",
					fmt.Sprintf("Task %q needs a manual merge against template %q.", task.Title, tpl.Title),
					in.ChangeRecordID); err != nil {
					return err
				}
			}

		case model.ResolutionDefer:
			// Idempotent no-op; the conflict prompt may reappear.
		}

		return txChanges.LogResolution(ctx, &model.ConflictResolutionLog{
			TaskID:         task.ID,
			ChangeRecordID: in.ChangeRecordID,
			Action:         in.Action,
			Notes:          in.Notes,
		})
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConflictResolution.Error())
	}

	h.log.Info().
		Uint("task_id", task.ID).
		Str("action", string(in.Action)).
		Str("change_id", in.ChangeRecordID).
		Msg("conflict resolution recorded")
	return task, nil
}
