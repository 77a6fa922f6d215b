package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"farmops/internal/model"
)

// NotificationRepository stores per-user notifications.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, unread first, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint, unreadOnly bool) ([]model.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("is_read ASC, created_at DESC")
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var ns []model.Notification
	if err := q.Find(&ns).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return ns, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ?", id).
		Update("is_read", true).Error; err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
