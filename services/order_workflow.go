package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lumbarong/lumbarong-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ReviewInput is a customer's rating of a completed order
type ReviewInput struct {
	Rating  int
	Comment string
	Images  []string
}

// ReturnInput is a customer's request to return a delivered order
type ReturnInput struct {
	Reason      string
	ProofImages []string
	ProofVideo  *string
}

// cancelRequestClosed holds the statuses from which a customer can no longer ask to cancel
var cancelRequestClosed = map[string]bool{
	models.StatusShipped:       true,
	models.StatusToBeDelivered: true,
	models.StatusDelivered:     true,
	models.StatusCompleted:     true,
}

// RequestCancellation asks the sellers to cancel an order. Stock is restored only
// when a seller or admin later moves the order to Cancelled.
func (s *OrderService) RequestCancellation(ctx context.Context, actor Actor, orderID uint) (*models.Order, error) {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var order models.Order
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if err := requireOwner(actor, &order); err != nil {
			return err
		}
		switch {
		case cancelRequestClosed[order.Status]:
			return businessError(CodeCancellationClosed, fmt.Sprintf("Order cannot be cancelled once it is %s", order.Status))
		case order.Status == models.StatusCancellationRequested:
			return businessError(CodeCancellationRequested, "Cancellation has already been requested for this order")
		case order.Status == models.StatusCancelled, order.Status == models.StatusReturnRequested:
			return businessError(CodeInvalidTransition, fmt.Sprintf("Order is already %s", order.Status))
		}
		return tx.Model(&order).Update("status", models.StatusCancellationRequested).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("order_id", orderID).Msg("Order cancellation requested")
	s.notifySellers(ctx, orderID,
		fmt.Sprintf("The customer requested cancellation of order #%d.", orderID),
		EventOrderStatusChanged, models.StatusCancellationRequested)
	return s.loadOrder(ctx, orderID)
}

// SubmitPaymentProof stores the customer's payment reference and receipt and
// resets verification until a seller checks it again.
func (s *OrderService) SubmitPaymentProof(ctx context.Context, actor Actor, orderID uint, referenceNumber string, receiptImage *string) (*models.Order, error) {
	referenceNumber = strings.TrimSpace(referenceNumber)
	if referenceNumber == "" {
		return nil, validationError(CodeValidation, "referenceNumber is required")
	}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var order models.Order
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if err := requireOwner(actor, &order); err != nil {
			return err
		}
		if order.Status == models.StatusCancelled {
			return businessError(CodeOrderCancelled, "Payment proof cannot be submitted for a cancelled order")
		}
		return tx.Model(&order).Updates(map[string]interface{}{
			"reference_number":    referenceNumber,
			"receipt_image":       receiptImage,
			"is_payment_verified": false,
			"payment_verified_at": nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifySellers(ctx, orderID,
		fmt.Sprintf("Payment proof (ref %s) was submitted for order #%d.", referenceNumber, orderID),
		EventOrderUpdated, "")
	return s.loadOrder(ctx, orderID)
}

// VerifyPayment records a seller's or admin's settlement decision. A verified
// payment moves a pending order to Processing.
func (s *OrderService) VerifyPayment(ctx context.Context, actor Actor, orderID uint, verified bool) (*models.Order, error) {
	if actor.IsCustomer() {
		return nil, forbiddenError("Customers cannot verify payments")
	}

	var order models.Order
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if err := s.authorizeManage(tx, actor, &order); err != nil {
			return err
		}
		if order.Status == models.StatusCancelled {
			return businessError(CodeOrderCancelled, "Payment cannot be verified for a cancelled order")
		}

		updates := map[string]interface{}{
			"is_payment_verified": verified,
			"payment_verified_at": nil,
		}
		if verified {
			updates["payment_verified_at"] = s.now()
			if order.Status == models.StatusPending {
				updates["status"] = models.StatusProcessing
			}
		}
		return tx.Model(&order).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	outcome := "rejected"
	if verified {
		outcome = "verified"
	}
	log.Info().Uint("order_id", orderID).Bool("verified", verified).Uint("by", actor.UserID).Msg("Payment reviewed")
	s.dispatch(ctx, orderID, []notice{
		{order.CustomerID, fmt.Sprintf("Your payment for order #%d was %s.", orderID, outcome)},
	}, EventOrderUpdated, "")
	return s.loadOrder(ctx, orderID)
}

// SubmitReview rates a completed order. A later review overwrites the earlier one.
func (s *OrderService) SubmitReview(ctx context.Context, actor Actor, orderID uint, in ReviewInput) (*models.Order, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, validationError(CodeValidation, "rating must be between 1 and 5")
	}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var order models.Order
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if err := requireOwner(actor, &order); err != nil {
			return err
		}
		if order.Status != models.StatusCompleted {
			return businessError(CodeOrderNotCompleted, "Only completed orders can be reviewed")
		}
		comment := strings.TrimSpace(in.Comment)
		return tx.Model(&order).Updates(map[string]interface{}{
			"rating":            in.Rating,
			"review_comment":    comment,
			"review_images":     models.StringList(nonNil(in.Images)),
			"review_created_at": s.now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifySellers(ctx, orderID,
		fmt.Sprintf("Order #%d received a %d-star review.", orderID, in.Rating),
		EventOrderUpdated, "")
	return s.loadOrder(ctx, orderID)
}

// SubmitReturnRequest opens a return for a delivered or completed order and moves
// the order to Return Requested.
func (s *OrderService) SubmitReturnRequest(ctx context.Context, actor Actor, orderID uint, in ReturnInput) (*models.Order, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, validationError(CodeValidation, "reason is required")
	}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var order models.Order
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if err := requireOwner(actor, &order); err != nil {
			return err
		}
		if order.Status != models.StatusDelivered && order.Status != models.StatusCompleted {
			return businessError(CodeOrderNotDelivered, "Only delivered or completed orders can be returned")
		}

		var existing int64
		if err := tx.Model(&models.ReturnRequest{}).Where("order_id = ?", orderID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return businessError(CodeReturnExists, "A return has already been requested for this order")
		}

		request := models.ReturnRequest{
			OrderID:     orderID,
			Reason:      reason,
			ProofImages: models.StringList(nonNil(in.ProofImages)),
			ProofVideo:  in.ProofVideo,
			Status:      models.ReturnPending,
			RequestedAt: s.now(),
		}
		if err := tx.Create(&request).Error; err != nil {
			return err
		}
		return tx.Model(&order).Update("status", models.StatusReturnRequested).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("order_id", orderID).Msg("Return requested")
	s.notifySellers(ctx, orderID,
		fmt.Sprintf("A return was requested for order #%d.", orderID),
		EventOrderStatusChanged, models.StatusReturnRequested)
	return s.loadOrder(ctx, orderID)
}

// CompleteOrder lets the customer confirm receipt of a delivered order
func (s *OrderService) CompleteOrder(ctx context.Context, actor Actor, orderID uint) (*models.Order, error) {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var order models.Order
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if err := requireOwner(actor, &order); err != nil {
			return err
		}
		if order.Status != models.StatusDelivered {
			return businessError(CodeOrderNotDelivered, "Only delivered orders can be completed")
		}
		return tx.Model(&order).Update("status", models.StatusCompleted).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifySellers(ctx, orderID,
		fmt.Sprintf("Order #%d was marked as received by the customer.", orderID),
		EventOrderStatusChanged, models.StatusCompleted)
	return s.loadOrder(ctx, orderID)
}

// ResolveReturnRequest approves or rejects a pending return
func (s *OrderService) ResolveReturnRequest(ctx context.Context, actor Actor, orderID uint, status string) (*models.Order, error) {
	if status != models.ReturnApproved && status != models.ReturnRejected {
		return nil, validationError(CodeInvalidStatus, fmt.Sprintf("status must be %q or %q", models.ReturnApproved, models.ReturnRejected))
	}
	if actor.IsCustomer() {
		return nil, forbiddenError("Customers cannot resolve return requests")
	}

	var order models.Order
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		if err := s.authorizeManage(tx, actor, &order); err != nil {
			return err
		}

		var request models.ReturnRequest
		if err := tx.Where("order_id = ?", orderID).First(&request).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError(CodeReturnNotFound, "No return request exists for this order")
			}
			return err
		}
		if request.Status != models.ReturnPending {
			return businessError(CodeReturnResolved, fmt.Sprintf("Return request is already %s", request.Status))
		}
		return tx.Model(&request).Updates(map[string]interface{}{
			"status":      status,
			"resolved_at": s.now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, orderID, []notice{
		{order.CustomerID, fmt.Sprintf("Your return request for order #%d was %s.", orderID, strings.ToLower(status))},
	}, EventOrderUpdated, "")
	return s.loadOrder(ctx, orderID)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
