package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "farmops/internal/errors"
	"farmops/internal/model"
)

// TemplateRepository handles CRUD for recurring task templates.
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TemplateRepository) WithTx(tx *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: tx}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *model.RecurringTaskTemplate) error {
	if err := r.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, id uint) (*model.RecurringTaskTemplate, error) {
	var tpl model.RecurringTaskTemplate
	if err := r.db.WithContext(ctx).First(&tpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "template %d", id)
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return &tpl, nil
}

// List returns templates, optionally filtered to active ones or a location.
func (r *TemplateRepository) List(ctx context.Context, activeOnly bool, location string) ([]model.RecurringTaskTemplate, error) {
	q := r.db.WithContext(ctx).Order("title ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if location != "" {
		q = q.Where("location = ?", location)
	}
	var tpls []model.RecurringTaskTemplate
	if err := q.Find(&tpls).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return tpls, nil
}

// ListActive returns active templates only, for the generation pass.
func (r *TemplateRepository) ListActive(ctx context.Context) ([]model.RecurringTaskTemplate, error) {
	return r.List(ctx, true, "")
}

func (r *TemplateRepository) Save(ctx context.Context, tpl *model.RecurringTaskTemplate) error {
	if err := r.db.WithContext(ctx).Save(tpl).Error; err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.RecurringTaskTemplate{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete template: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.Wrapf(apperrors.ErrNotFound, "template %d", id)
	}
	return nil
}
