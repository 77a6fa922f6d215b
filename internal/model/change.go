package model

import (
	"time"

	"gorm.io/datatypes"
)

// PropagationStatus is a change record's batch outcome.
type PropagationStatus string

const (
	PropagationPending                PropagationStatus = "pending"
	PropagationCompleted              PropagationStatus = "completed"
	PropagationCompletedWithConflicts PropagationStatus = "completed_with_conflicts"
	PropagationError                  PropagationStatus = "error"
)

// TemplateChangeRecord captures one propagation event: which template
// changed, what changed, how many instances were in scope and how many
// conflicted. Immutable after creation except for PropagationStatus.
type TemplateChangeRecord struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	RecurringTaskID uint   `gorm:"not null;index"`

	ChangedFields datatypes.JSONSlice[string]
	OldValues     datatypes.JSONMap
	NewValues     datatypes.JSONMap

	AffectedTaskCount int
	ConflictCount     int
	PropagationStatus PropagationStatus `gorm:"type:varchar(32);not null;default:pending;index"`

	CreatedAt time.Time `gorm:"index"`
}

// ResolutionAction is a user's decision for one conflicted instance.
type ResolutionAction string

const (
	ResolutionKeepCurrent   ResolutionAction = "keep_current"
	ResolutionApplyTemplate ResolutionAction = "apply_template"
	ResolutionManualMerge   ResolutionAction = "manual_merge"
	ResolutionDefer         ResolutionAction = "defer"
)

// Valid reports whether a is a known resolution action.
func (a ResolutionAction) Valid() bool {
	switch a {
	case ResolutionKeepCurrent, ResolutionApplyTemplate, ResolutionManualMerge, ResolutionDefer:
		return true
	}
	return false
}

// ConflictResolutionLog is the audit trail of resolve-conflict calls.
type ConflictResolutionLog struct {
	ID             uint             `gorm:"primaryKey"`
	TaskID         uint             `gorm:"not null;index"`
	ChangeRecordID string           `gorm:"type:varchar(36);index"`
	Action         ResolutionAction `gorm:"type:varchar(16);not null"`
	Notes          string
	CreatedAt      time.Time
}
