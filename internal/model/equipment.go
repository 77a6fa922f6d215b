package model

import "time"

// EquipmentStatus is a machine's operational state.
type EquipmentStatus string

const (
	EquipmentOperational EquipmentStatus = "operational"
	EquipmentMaintenance EquipmentStatus = "maintenance"
	EquipmentBroken      EquipmentStatus = "broken"
)

// Valid reports whether s is a known equipment status.
func (s EquipmentStatus) Valid() bool {
	switch s {
	case EquipmentOperational, EquipmentMaintenance, EquipmentBroken:
		return true
	}
	return false
}

// Equipment is a tracked machine or system, surfaced on the equipment
// dashboard.
type Equipment struct {
	ID            uint            `gorm:"primaryKey"`
	Name          string          `gorm:"not null;index"`
	Status        EquipmentStatus `gorm:"type:varchar(16);not null;default:operational;index"`
	Location      string          `gorm:"index"`
	LastServiceAt *time.Time
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
