package model

import "time"

// TrainingCourse is a course staff can complete. ValidityDays of zero
// means the certification never expires.
type TrainingCourse struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"not null;uniqueIndex"`
	Description  string
	ValidityDays int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TrainingRecord marks one user's completion of one course.
type TrainingRecord struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"not null;index"`
	CourseID    uint `gorm:"not null;index"`
	CompletedAt time.Time
	ExpiresAt   *time.Time `gorm:"index"`
	Score       int
	CreatedAt   time.Time
}

// Expired reports whether the record has lapsed as of now.
func (r *TrainingRecord) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}
