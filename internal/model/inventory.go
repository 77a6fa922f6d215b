package model

import "time"

// InventoryItem is a stocked material. UnitCost is a moving average
// recomputed on every purchase.
type InventoryItem struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"not null;index"`
	Category         string `gorm:"index"`
	Unit             string `gorm:"not null"`
	Quantity         float64
	UnitCost         float64
	RestockThreshold float64
	Location         string `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Transactions []InventoryTransaction `gorm:"foreignKey:ItemID"`
}

// Value returns the item's on-hand valuation at average cost.
func (i *InventoryItem) Value() float64 {
	return i.Quantity * i.UnitCost
}

// LowStock reports whether the item is at or below its restock threshold.
func (i *InventoryItem) LowStock() bool {
	return i.RestockThreshold > 0 && i.Quantity <= i.RestockThreshold
}

// TransactionKind discriminates inventory movements.
type TransactionKind string

const (
	TxPurchase    TransactionKind = "purchase"
	TxConsumption TransactionKind = "consumption"
	TxAdjustment  TransactionKind = "adjustment"
)

// InventoryTransaction is one stock movement with its cost impact.
// Consumptions are costed at the item's average cost at the time.
type InventoryTransaction struct {
	ID        uint            `gorm:"primaryKey"`
	ItemID    uint            `gorm:"not null;index"`
	Kind      TransactionKind `gorm:"type:varchar(16);not null"`
	Quantity  float64         `gorm:"not null"`
	UnitCost  float64
	TotalCost float64
	Reference string // free-form: supplier invoice, task id, stocktake note
	CreatedAt time.Time `gorm:"index"`
}
