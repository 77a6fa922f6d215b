package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "farmops/internal/errors"
	"farmops/internal/model"
)

// ChangeRepository stores template change records and resolution logs.
type ChangeRepository struct {
	db *gorm.DB
}

func NewChangeRepository(db *gorm.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *ChangeRepository) WithTx(tx *gorm.DB) *ChangeRepository {
	return &ChangeRepository{db: tx}
}

func (r *ChangeRepository) Create(ctx context.Context, rec *model.TemplateChangeRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create change record: %w", err)
	}
	return nil
}

func (r *ChangeRepository) FindByID(ctx context.Context, id string) (*model.TemplateChangeRecord, error) {
	var rec model.TemplateChangeRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "change record %s", id)
		}
		return nil, fmt.Errorf("find change record: %w", err)
	}
	return &rec, nil
}

// ListRecent returns the newest change records, most recent first. The UI
// polls this for near-real-time template-change notifications.
func (r *ChangeRepository) ListRecent(ctx context.Context, limit int) ([]model.TemplateChangeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []model.TemplateChangeRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list change records: %w", err)
	}
	return recs, nil
}

// SetStatus transitions a change record's propagation status.
func (r *ChangeRepository) SetStatus(ctx context.Context, id string, status model.PropagationStatus) error {
	if err := r.db.WithContext(ctx).Model(&model.TemplateChangeRecord{}).
		Where("id = ?", id).
		Update("propagation_status", status).Error; err != nil {
		return fmt.Errorf("set change record status: %w", err)
	}
	return nil
}

func (r *ChangeRepository) LogResolution(ctx context.Context, entry *model.ConflictResolutionLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("log resolution: %w", err)
	}
	return nil
}

// ListResolutions returns the audit trail for one task, newest first.
func (r *ChangeRepository) ListResolutions(ctx context.Context, taskID uint) ([]model.ConflictResolutionLog, error) {
	var entries []model.ConflictResolutionLog
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	return entries, nil
}
