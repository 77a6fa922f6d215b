package service

import "farmops/internal/model"

// ConflictState classifies a template-linked instance against its
// template's current version.
type ConflictState string

const (
	// ConflictNone means the instance is in sync or untracked.
	ConflictNone ConflictState = "none"
	// ConflictUpdateAvailable means the instance is behind the template
	// version but safe to update. Advisory only, never blocks.
	ConflictUpdateAvailable ConflictState = "update_available"
	// ConflictPending means in-progress user work collides with a newer
	// template version and needs explicit resolution.
	ConflictPending ConflictState = "conflict"
)

// ClassifyConflict decides whether a single instance is in conflict with
// its template at currentVersion.
//
// An instance is in conflict iff it tracks a live template, its version is
// behind, it is in progress, and a user has modified it after creation.
// Anything else that is merely version-behind gets the weaker
// update-available signal. Terminal instances are never reclassified.
func ClassifyConflict(task *model.TaskInstance, currentVersion int) ConflictState {
	if !task.FromTemplate() {
		return ConflictNone
	}
	if task.Status.Terminal() {
		return ConflictNone
	}
	if task.TemplateVersion >= currentVersion {
		return ConflictNone
	}
	if task.Status == model.StatusInProgress && task.IsModifiedAfterCreation {
		return ConflictPending
	}
	return ConflictUpdateAvailable
}
