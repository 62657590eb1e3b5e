package services

import (
	"context"

	"github.com/lumbarong/lumbarong-api/models"
	"gorm.io/gorm"
)

// NotificationSink receives best-effort, recipient-keyed messages from the order workflow.
// Callers log failures and never roll back on them.
type NotificationSink interface {
	Notify(ctx context.Context, recipientID uint, orderID *uint, message string) error
}

// DBNotificationSink appends notifications to the notifications table
type DBNotificationSink struct {
	db *gorm.DB
}

// NewDBNotificationSink creates a sink backed by db
func NewDBNotificationSink(db *gorm.DB) *DBNotificationSink {
	return &DBNotificationSink{db: db}
}

// Notify stores a single unread notification for recipientID
func (s *DBNotificationSink) Notify(ctx context.Context, recipientID uint, orderID *uint, message string) error {
	return s.db.WithContext(ctx).Create(&models.Notification{
		RecipientID: recipientID,
		OrderID:     orderID,
		Message:     message,
	}).Error
}
