package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumbarong/lumbarong-api/models"
)

// MaxMessageLength bounds a single order message
const MaxMessageLength = 2000

// PostMessage adds a message to the order conversation and notifies the other side:
// the sellers when the customer writes, the customer otherwise.
func (s *OrderService) PostMessage(ctx context.Context, actor Actor, orderID uint, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError(CodeValidation, "text is required")
	}
	if len(text) > MaxMessageLength {
		return nil, validationError(CodeValidation, fmt.Sprintf("text must be at most %d characters", MaxMessageLength))
	}

	order, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	message := models.Message{OrderID: order.ID, SenderID: actor.UserID, Text: text}
	db := s.db.WithContext(ctx)
	if err := db.Create(&message).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Sender").First(&message, message.ID).Error; err != nil {
		return nil, err
	}

	preview := text
	if len(preview) > 80 {
		preview = preview[:77] + "..."
	}
	if order.CustomerID == actor.UserID {
		s.notifySellers(ctx, order.ID, fmt.Sprintf("New message on order #%d: %s", order.ID, preview), EventOrderMessage, "")
	} else {
		s.dispatch(ctx, order.ID, []notice{
			{order.CustomerID, fmt.Sprintf("New message on order #%d: %s", order.ID, preview)},
		}, EventOrderMessage, "")
	}
	return &message, nil
}

// ListMessages returns the order conversation, oldest first
func (s *OrderService) ListMessages(ctx context.Context, actor Actor, orderID uint) ([]models.Message, error) {
	if _, err := s.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}
