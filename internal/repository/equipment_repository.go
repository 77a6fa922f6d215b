package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "farmops/internal/errors"
	"farmops/internal/model"
)

// EquipmentRepository handles CRUD for tracked equipment.
type EquipmentRepository struct {
	db *gorm.DB
}

func NewEquipmentRepository(db *gorm.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

func (r *EquipmentRepository) Create(ctx context.Context, eq *model.Equipment) error {
	if err := r.db.WithContext(ctx).Create(eq).Error; err != nil {
		return fmt.Errorf("create equipment: %w", err)
	}
	return nil
}

func (r *EquipmentRepository) FindByID(ctx context.Context, id uint) (*model.Equipment, error) {
	var eq model.Equipment
	if err := r.db.WithContext(ctx).First(&eq, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "equipment %d", id)
		}
		return nil, fmt.Errorf("find equipment: %w", err)
	}
	return &eq, nil
}

func (r *EquipmentRepository) List(ctx context.Context, location string) ([]model.Equipment, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if location != "" {
		q = q.Where("location = ?", location)
	}
	var eqs []model.Equipment
	if err := q.Find(&eqs).Error; err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return eqs, nil
}

func (r *EquipmentRepository) Save(ctx context.Context, eq *model.Equipment) error {
	if err := r.db.WithContext(ctx).Save(eq).Error; err != nil {
		return fmt.Errorf("save equipment: %w", err)
	}
	return nil
}

// CountByStatus returns equipment counts grouped by status.
func (r *EquipmentRepository) CountByStatus(ctx context.Context) (map[model.EquipmentStatus]int64, error) {
	type row struct {
		Status model.EquipmentStatus
		N      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&model.Equipment{}).
		Select("status, count(*) as n").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count equipment: %w", err)
	}
	counts := make(map[model.EquipmentStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
