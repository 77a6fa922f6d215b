package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "farmops/internal/errors"
	"farmops/internal/model"
)

// InventoryRepository handles stock items and their transactions.
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *InventoryRepository) WithTx(tx *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: tx}
}

func (r *InventoryRepository) CreateItem(ctx context.Context, item *model.InventoryItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create inventory item: %w", err)
	}
	return nil
}

func (r *InventoryRepository) FindItem(ctx context.Context, id uint) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "inventory item %d", id)
		}
		return nil, fmt.Errorf("find inventory item: %w", err)
	}
	return &item, nil
}

func (r *InventoryRepository) ListItems(ctx context.Context, category, location string) ([]model.InventoryItem, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if location != "" {
		q = q.Where("location = ?", location)
	}
	var items []model.InventoryItem
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list inventory items: %w", err)
	}
	return items, nil
}

func (r *InventoryRepository) SaveItem(ctx context.Context, item *model.InventoryItem) error {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("save inventory item: %w", err)
	}
	return nil
}

func (r *InventoryRepository) CreateTransaction(ctx context.Context, tx *model.InventoryTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("create inventory transaction: %w", err)
	}
	return nil
}

func (r *InventoryRepository) ListTransactions(ctx context.Context, itemID uint) ([]model.InventoryTransaction, error) {
	var txs []model.InventoryTransaction
	if err := r.db.WithContext(ctx).Where("item_id = ?", itemID).
		Order("created_at DESC").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list inventory transactions: %w", err)
	}
	return txs, nil
}
