package service

import (
	"context"

	"farmops/internal/model"
	"farmops/internal/repository"
)

// ChangeFeed serves the recent template-change records the UI polls for
// near-real-time notification of template edits.
type ChangeFeed struct {
	changes *repository.ChangeRepository
}

func NewChangeFeed(changes *repository.ChangeRepository) *ChangeFeed {
	return &ChangeFeed{changes: changes}
}

// Recent returns the newest change records, most recent first.
func (f *ChangeFeed) Recent(ctx context.Context, limit int) ([]model.TemplateChangeRecord, error) {
	return f.changes.ListRecent(ctx, limit)
}

// ResolutionHistory returns the resolution audit trail for one task.
func (f *ChangeFeed) ResolutionHistory(ctx context.Context, taskID uint) ([]model.ConflictResolutionLog, error) {
	return f.changes.ListResolutions(ctx, taskID)
}
