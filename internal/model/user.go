package model

import "time"

// User is a staff member: task assignee, notification recipient, trainee.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Email     string `gorm:"uniqueIndex"`
	Role      string `gorm:"default:worker"` // manager or worker
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Notification is a persisted alert for one user, polled by the UI.
type Notification struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	UserID    uint   `gorm:"not null;index"`
	Type      string `gorm:"not null"`
	Title     string
	Message   string
	RelatedID string `gorm:"index"`
	IsRead    bool   `gorm:"default:false;index"`
	CreatedAt time.Time
}
