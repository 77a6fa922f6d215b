package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "farmops/internal/errors"
	"farmops/internal/model"
)

// TrainingRepository handles courses and completion records.
type TrainingRepository struct {
	db *gorm.DB
}

func NewTrainingRepository(db *gorm.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

func (r *TrainingRepository) CreateCourse(ctx context.Context, course *model.TrainingCourse) error {
	if err := r.db.WithContext(ctx).Create(course).Error; err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (r *TrainingRepository) FindCourse(ctx context.Context, id uint) (*model.TrainingCourse, error) {
	var course model.TrainingCourse
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "course %d", id)
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

func (r *TrainingRepository) ListCourses(ctx context.Context) ([]model.TrainingCourse, error) {
	var courses []model.TrainingCourse
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (r *TrainingRepository) CreateRecord(ctx context.Context, rec *model.TrainingRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create training record: %w", err)
	}
	return nil
}

func (r *TrainingRepository) ListRecordsByUser(ctx context.Context, userID uint) ([]model.TrainingRecord, error) {
	var recs []model.TrainingRecord
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("completed_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list training records: %w", err)
	}
	return recs, nil
}

// ListExpiring returns records expiring inside (now, until], soonest first.
func (r *TrainingRepository) ListExpiring(ctx context.Context, now, until time.Time) ([]model.TrainingRecord, error) {
	var recs []model.TrainingRecord
	if err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at > ? AND expires_at <= ?", now, until).
		Order("expires_at ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list expiring records: %w", err)
	}
	return recs, nil
}
