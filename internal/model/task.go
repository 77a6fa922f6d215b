package model

import (
	"time"

	"gorm.io/datatypes"
)

// TaskStatus is a task instance's lifecycle state.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusPaused     TaskStatus = "paused"
	StatusSkipped    TaskStatus = "skipped"
	StatusApproved   TaskStatus = "approved"
)

// Terminal reports whether the status ends the instance's lifecycle.
// Terminal instances are never reclassified as conflicted.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusApproved
}

// TaskInstance is a concrete task on the board, either standalone or
// generated from a recurring template (RecurringTaskID set).
type TaskInstance struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string
	Type        string     `gorm:"index"`
	Status      TaskStatus `gorm:"type:varchar(16);not null;default:pending;index"`
	Priority    string     `gorm:"default:medium"`
	Location    string     `gorm:"index"`
	DueDate     time.Time  `gorm:"index"`
	AssigneeID  *uint      `gorm:"index"`

	RecurringTaskID *uint `gorm:"index"`
	TemplateVersion int

	IsModifiedAfterCreation   bool
	ModifiedFromTemplateAt    *time.Time
	IsFromDeletedRecurring    bool
	DeletedRecurringTaskTitle string

	Progress  int `gorm:"default:0"`
	Checklist datatypes.JSONSlice[ChecklistItem]

	StartedAt   *time.Time
	CompletedAt *time.Time
	PausedAt    *time.Time
	SkippedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FromTemplate reports whether the instance still tracks a live template.
func (t *TaskInstance) FromTemplate() bool {
	return t.RecurringTaskID != nil && !t.IsFromDeletedRecurring
}
