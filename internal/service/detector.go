package service

import (
	"context"
	"encoding/json"
	"reflect"

	"farmops/internal/clock"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// FieldChange describes one changed template field.
type FieldChange struct {
	Field                string `json:"field"`
	OldValue             any    `json:"oldValue"`
	NewValue             any    `json:"newValue"`
	RequiresNotification bool   `json:"requiresNotification"`
}

// criticalFields affect task execution semantics; changes to them warrant
// notifying assignees. Everything else is minor.
var criticalFields = map[string]bool{
	"title":             true,
	"checklistTemplate": true,
	"priority":          true,
}

// DiffTemplates computes the field-level diff between two template
// snapshots. Pure and deterministic: same snapshots, same result.
func DiffTemplates(oldTpl, newTpl *model.RecurringTaskTemplate) []FieldChange {
	var changes []FieldChange
	add := func(field string, oldV, newV any) {
		if equalValues(oldV, newV) {
			return
		}
		changes = append(changes, FieldChange{
			Field:                field,
			OldValue:             oldV,
			NewValue:             newV,
			RequiresNotification: criticalFields[field],
		})
	}

	add("title", oldTpl.Title, newTpl.Title)
	add("description", oldTpl.Description, newTpl.Description)
	add("type", oldTpl.Type, newTpl.Type)
	add("location", oldTpl.Location, newTpl.Location)
	add("priority", oldTpl.Priority, newTpl.Priority)
	add("frequency", string(oldTpl.Frequency), string(newTpl.Frequency))
	add("daysOfWeek", []string(oldTpl.DaysOfWeek), []string(newTpl.DaysOfWeek))
	add("dayOfMonth", oldTpl.DayOfMonth, newTpl.DayOfMonth)
	add("startDate", oldTpl.StartDate, newTpl.StartDate)
	add("isActive", oldTpl.IsActive, newTpl.IsActive)
	add("checklistTemplate", []model.ChecklistStep(oldTpl.ChecklistTemplate), []model.ChecklistStep(newTpl.ChecklistTemplate))
	add("automation", oldTpl.Automation.Data(), newTpl.Automation.Data())

	return changes
}

// equalValues compares via JSON encoding so slices, structs and time values
// all compare by content.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

// ChangeDetector estimates the scope of a pending template edit.
type ChangeDetector struct {
	tasks *repository.TaskRepository
	clock clock.Clock
}

func NewChangeDetector(tasks *repository.TaskRepository, clk clock.Clock) *ChangeDetector {
	return &ChangeDetector{tasks: tasks, clock: clk}
}

// Scope counts the future non-completed instances a propagation would
// touch, and how many of those would conflict (in progress and already
// modified by a user).
func (d *ChangeDetector) Scope(ctx context.Context, templateID uint) (affected, conflicts int, err error) {
	instances, err := d.tasks.ListAffected(ctx, templateID, d.clock.Now())
	if err != nil {
		return 0, 0, err
	}
	for _, inst := range instances {
		if inst.Status == model.StatusInProgress && inst.IsModifiedAfterCreation {
			conflicts++
		}
	}
	return len(instances), conflicts, nil
}
