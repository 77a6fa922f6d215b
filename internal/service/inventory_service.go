package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	apperrors "farmops/internal/errors"
	"farmops/internal/model"
	"farmops/internal/repository"
)

// InventoryInput creates a stock item.
type InventoryInput struct {
	Name             string
	Category         string
	Unit             string
	Quantity         float64
	UnitCost         float64
	RestockThreshold float64
	Location         string
}

// TransactionInput records one stock movement.
type TransactionInput struct {
	Kind      model.TransactionKind
	Quantity  float64
	UnitCost  float64 // purchases only
	Reference string
}

// InventoryService manages stock levels with moving-average cost
// accounting. Purchases fold their price into the item's average unit
// cost; consumptions cost out at the current average. Managers are
// notified when a movement drops an item to its restock threshold.
type InventoryService struct {
	db       *gorm.DB
	items    *repository.InventoryRepository
	users    *repository.UserRepository
	notifier *Notifier
	log      zerolog.Logger
}

func NewInventoryService(db *gorm.DB, items *repository.InventoryRepository, users *repository.UserRepository, notifier *Notifier, log zerolog.Logger) *InventoryService {
	return &InventoryService{db: db, items: items, users: users, notifier: notifier, log: log}
}

func (s *InventoryService) CreateItem(ctx context.Context, in InventoryInput) (*model.InventoryItem, error) {
	if in.Name == "" {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "item name is required")
	}
	if in.Unit == "" {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "item unit is required")
	}
	if in.Quantity < 0 || in.UnitCost < 0 {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "quantity and unit cost must be non-negative")
	}

	item := &model.InventoryItem{
		Name:             in.Name,
		Category:         in.Category,
		Unit:             in.Unit,
		Quantity:         in.Quantity,
		UnitCost:         in.UnitCost,
		RestockThreshold: in.RestockThreshold,
		Location:         in.Location,
	}
	if err := s.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *InventoryService) GetItem(ctx context.Context, id uint) (*model.InventoryItem, error) {
	return s.items.FindItem(ctx, id)
}

func (s *InventoryService) ListItems(ctx context.Context, category, location string) ([]model.InventoryItem, error) {
	return s.items.ListItems(ctx, category, location)
}

// ListLowStock returns items at or below their restock threshold.
func (s *InventoryService) ListLowStock(ctx context.Context) ([]model.InventoryItem, error) {
	items, err := s.items.ListItems(ctx, "", "")
	if err != nil {
		return nil, err
	}
	low := items[:0]
	for _, item := range items {
		if item.LowStock() {
			low = append(low, item)
		}
	}
	return low, nil
}

// RecordTransaction applies one movement to an item and logs it, both
// inside one transaction.
func (s *InventoryService) RecordTransaction(ctx context.Context, itemID uint, in TransactionInput) (*model.InventoryTransaction, error) {
	if in.Quantity == 0 {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "transaction quantity must be non-zero")
	}

	var out *model.InventoryTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txItems := s.items.WithTx(tx)
		item, err := txItems.FindItem(ctx, itemID)
		if err != nil {
			return err
		}
		wasLow := item.LowStock()

		entry := &model.InventoryTransaction{
			ItemID:    itemID,
			Kind:      in.Kind,
			Quantity:  in.Quantity,
			Reference: in.Reference,
		}

		switch in.Kind {
		case model.TxPurchase:
			if in.Quantity < 0 || in.UnitCost < 0 {
				return apperrors.Wrap(apperrors.ErrValidation, "purchase quantity and unit cost must be non-negative")
			}
			newQty := item.Quantity + in.Quantity
			if newQty > 0 {
				item.UnitCost = (item.Quantity*item.UnitCost + in.Quantity*in.UnitCost) / newQty
			}
			item.Quantity = newQty
			entry.UnitCost = in.UnitCost
			entry.TotalCost = in.Quantity * in.UnitCost

		case model.TxConsumption:
			if in.Quantity < 0 {
				return apperrors.Wrap(apperrors.ErrValidation, "consumption quantity must be positive")
			}
			if in.Quantity > item.Quantity {
				return apperrors.Wrapf(apperrors.ErrInsufficientStock, "%s: have %.2f %s, need %.2f",
					item.Name, item.Quantity, item.Unit, in.Quantity)
			}
			item.Quantity -= in.Quantity
			entry.UnitCost = item.UnitCost
			entry.TotalCost = in.Quantity * item.UnitCost

		case model.TxAdjustment:
			// Signed delta from a stocktake. Costed at current average.
			if item.Quantity+in.Quantity < 0 {
				return apperrors.Wrapf(apperrors.ErrInsufficientStock, "%s: adjustment below zero", item.Name)
			}
			item.Quantity += in.Quantity
			entry.UnitCost = item.UnitCost
			entry.TotalCost = math.Abs(in.Quantity) * item.UnitCost

		default:
			return apperrors.Wrapf(apperrors.ErrValidation, "unknown transaction kind %q", in.Kind)
		}

		if err := txItems.SaveItem(ctx, item); err != nil {
			return err
		}
		if err := txItems.CreateTransaction(ctx, entry); err != nil {
			return err
		}
		if !wasLow && item.LowStock() {
			if err := s.alertLowStock(ctx, s.notifier.WithTx(tx), item); err != nil {
				return err
			}
		}
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// alertLowStock notifies every manager that an item needs restocking.
func (s *InventoryService) alertLowStock(ctx context.Context, notifier *Notifier, item *model.InventoryItem) error {
	managers, err := s.users.ListManagers(ctx)
	if err != nil {
		return err
	}
	msg := fmt.Sprintf("%s is down to %.2f %s (restock at %.2f).",
		item.Name, item.Quantity, item.Unit, item.RestockThreshold)
	for _, m := range managers {
		if err := notifier.Submit(ctx, m.ID, NotifyLowStock, "Low stock", msg, fmt.Sprintf("%d", item.ID)); err != nil {
			return err
		}
	}
	s.log.Info().Uint("item_id", item.ID).Float64("quantity", item.Quantity).Msg("low stock alert")
	return nil
}

// SweepLowStock re-alerts managers about every item still at or below its
// threshold. Meant to run on a daily schedule as a restock digest.
func (s *InventoryService) SweepLowStock(ctx context.Context) (int, error) {
	low, err := s.ListLowStock(ctx)
	if err != nil {
		return 0, err
	}
	for i := range low {
		if err := s.alertLowStock(ctx, s.notifier, &low[i]); err != nil {
			return 0, err
		}
	}
	return len(low), nil
}

// ListTransactions returns an item's movement history.
func (s *InventoryService) ListTransactions(ctx context.Context, itemID uint) ([]model.InventoryTransaction, error) {
	return s.items.ListTransactions(ctx, itemID)
}
