package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"farmops/internal/clock"
	apperrors "farmops/internal/errors"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// Strategy selects the propagation scope for a template edit.
type Strategy string

const (
	// StrategyUpdateAll pushes the edit onto existing future instances.
	StrategyUpdateAll Strategy = "update_all"
	// StrategyNewOnly leaves existing instances alone; only instances
	// generated from now on pick up the edit.
	StrategyNewOnly Strategy = "new_only"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyUpdateAll || s == StrategyNewOnly
}

// Progress is reported after each instance so a caller can render a
// progress indicator.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Stage   string `json:"stage"`
}

// ProgressFunc receives incremental propagation progress. May be nil.
type ProgressFunc func(Progress)

// PropagationEngine applies a template edit to the template's existing
// future instances under a chosen strategy. The batch runs inside a single
// transaction: a failed instance update rolls back the whole batch and the
// change record is marked with status error.
type PropagationEngine struct {
	db       *gorm.DB
	tasks    *repository.TaskRepository
	changes  *repository.ChangeRepository
	notifier *Notifier
	clock    clock.Clock
	log      zerolog.Logger
}

func NewPropagationEngine(db *gorm.DB, tasks *repository.TaskRepository, changes *repository.ChangeRepository, notifier *Notifier, clk clock.Clock, log zerolog.Logger) *PropagationEngine {
	return &PropagationEngine{db: db, tasks: tasks, changes: changes, notifier: notifier, clock: clk, log: log}
}

// Apply records the template edit and propagates it. tpl must already carry
// the new field values and the bumped version. The returned change record
// reflects the final propagation status.
func (e *PropagationEngine) Apply(ctx context.Context, tpl *model.RecurringTaskTemplate, changes []FieldChange, strategy Strategy, onProgress ProgressFunc) (*model.TemplateChangeRecord, error) {
	if !strategy.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "unknown propagation strategy %q", strategy)
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	now := e.clock.Now()
	affected, err := e.tasks.ListAffected(ctx, tpl.ID, now)
	if err != nil {
		return nil, err
	}

	conflicts := 0
	for i := range affected {
		if affected[i].Status == model.StatusInProgress && affected[i].IsModifiedAfterCreation {
			conflicts++
		}
	}

	rec := &model.TemplateChangeRecord{
		ID:                uuid.NewString(),
		RecurringTaskID:   tpl.ID,
		ChangedFields:     changedFieldNames(changes),
		OldValues:         changeValues(changes, false),
		NewValues:         changeValues(changes, true),
		AffectedTaskCount: len(affected),
		ConflictCount:     conflicts,
		PropagationStatus: model.PropagationPending,
	}
	if err := e.changes.Create(ctx, rec); err != nil {
		return nil, err
	}

	if strategy == StrategyNewOnly {
		// The generator always reads the current template, so nothing
		// to do here.
		rec.PropagationStatus = model.PropagationCompleted
		if err := e.changes.SetStatus(ctx, rec.ID, rec.PropagationStatus); err != nil {
			return nil, err
		}
		return rec, nil
	}

	critical := false
	for _, c := range changes {
		if c.RequiresNotification {
			critical = true
			break
		}
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txTasks := e.tasks.WithTx(tx)
		txNotifier := e.notifier.WithTx(tx)
		for i := range affected {
			inst := &affected[i]
			onProgress(Progress{
				Current: i + 1,
				Total:   len(affected),
				Stage:   fmt.Sprintf("Updating %q", inst.Title),
			})

			// Belt and braces: completed work is never mutated, even
			// if one slips into the affected list.
			if inst.Status == model.StatusCompleted || inst.Status == model.StatusApproved {
				continue
			}

			if inst.Status == model.StatusInProgress && inst.IsModifiedAfterCreation {
				// In-progress user work is never silently overwritten.
				// The instance stays version-behind, which is exactly
				// what marks it as conflicted; the assignee gets a
				// pending notification to resolve it.
				if inst.AssigneeID != nil {
					if err := txNotifier.Submit(ctx, *inst.AssigneeID, NotifyTemplateConflict,
						"Template changed under your task",
						fmt.Sprintf("The recurring template for %q was edited while you were working on it. Please resolve the conflict.", inst.Title),
						rec.ID); err != nil {
						return err
					}
				}
				continue
			}

			applyChanges(inst, tpl, changes)
			inst.TemplateVersion = tpl.Version
			if err := txTasks.Save(ctx, inst); err != nil {
				return err
			}
			if critical && inst.AssigneeID != nil {
				if err := txNotifier.Submit(ctx, *inst.AssigneeID, NotifyTemplateUpdated,
					"Your task was updated",
					fmt.Sprintf("%q picked up the latest template edit.", inst.Title),
					rec.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		// Best effort status write; the rollback already undid the batch.
		if stErr := e.changes.SetStatus(ctx, rec.ID, model.PropagationError); stErr != nil {
			e.log.Error().Err(stErr).Str("change_id", rec.ID).Msg("failed to record propagation error status")
		}
		rec.PropagationStatus = model.PropagationError
		return rec, apperrors.Wrap(err, apperrors.ErrPropagation.Error())
	}

	rec.PropagationStatus = model.PropagationCompleted
	if conflicts > 0 {
		rec.PropagationStatus = model.PropagationCompletedWithConflicts
	}
	if err := e.changes.SetStatus(ctx, rec.ID, rec.PropagationStatus); err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("template_id", tpl.ID).
		Str("change_id", rec.ID).
		Int("affected", len(affected)).
		Int("conflicts", conflicts).
		Str("status", string(rec.PropagationStatus)).
		Msg("propagation finished")
	return rec, nil
}

// applyChanges overwrites the instance fields named in changes with the
// template's new values. Only content fields propagate; schedule and
// automation fields affect future generation only.
func applyChanges(inst *model.TaskInstance, tpl *model.RecurringTaskTemplate, changes []FieldChange) {
	for _, c := range changes {
		switch c.Field {
		case "title":
			inst.Title = tpl.Title
		case "description":
			inst.Description = tpl.Description
		case "type":
			inst.Type = tpl.Type
		case "priority":
			inst.Priority = tpl.Priority
		case "location":
			inst.Location = tpl.Location
		case "checklistTemplate":
			inst.Checklist = model.MergeChecklist(inst.Checklist, tpl.ChecklistTemplate)
		}
	}
}

func changedFieldNames(changes []FieldChange) datatypes.JSONSlice[string] {
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		names = append(names, c.Field)
	}
	return names
}

func changeValues(changes []FieldChange, newSide bool) datatypes.JSONMap {
	vals := make(datatypes.JSONMap, len(changes))
	for _, c := range changes {
		if newSide {
			vals[c.Field] = c.NewValue
		} else {
			vals[c.Field] = c.OldValue
		}
	}
	return vals
}
