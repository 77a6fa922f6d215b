package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"farmops/internal/model"
	"farmops/internal/repository"
)

// Notification types emitted by this package.
const (
	NotifyTemplateConflict = "template_conflict"
	NotifyTemplateUpdated  = "template_updated"
	NotifyManualMerge      = "manual_merge_review"
	NotifyLowStock         = "low_stock"
)

// Notifier persists per-user notifications. The UI polls them; nothing here
// pushes.
type Notifier struct {
	notifications *repository.NotificationRepository
	log           zerolog.Logger
}

func NewNotifier(notifications *repository.NotificationRepository, log zerolog.Logger) *Notifier {
	return &Notifier{notifications: notifications, log: log}
}

// WithTx returns a copy of the notifier writing through the given
// transaction, so notifications roll back with the batch that emits them.
func (n *Notifier) WithTx(tx *gorm.DB) *Notifier {
	return &Notifier{notifications: n.notifications.WithTx(tx), log: n.log}
}

// Submit records one notification for one user.
func (n *Notifier) Submit(ctx context.Context, userID uint, typ, title, message, relatedID string) error {
	note := &model.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
	}
	if err := n.notifications.Create(ctx, note); err != nil {
		return err
	}
	n.log.Debug().Uint("user_id", userID).Str("type", typ).Msg("notification submitted")
	return nil
}

// List returns a user's notifications.
func (n *Notifier) List(ctx context.Context, userID uint, unreadOnly bool) ([]model.Notification, error) {
	return n.notifications.ListByUser(ctx, userID, unreadOnly)
}

// MarkRead acknowledges one notification.
func (n *Notifier) MarkRead(ctx context.Context, id string) error {
	return n.notifications.MarkRead(ctx, id)
}
