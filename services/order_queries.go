package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinzhu/copier"
	"github.com/lumbarong/lumbarong-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Pagination limits for order listings
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// OrderFilter narrows and pages an order listing
type OrderFilter struct {
	Status string
	Page   int
	Limit  int
}

// Normalize applies the default page and limit
func (f *OrderFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
}

// OrderLineView is the rendered shape of an order item
type OrderLineView struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	SellerID    uint            `json:"seller_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderView is the rendered shape of an order returned by every order endpoint
type OrderView struct {
	ID                uint                  `json:"id"`
	CustomerID        uint                  `json:"customer_id"`
	CustomerName      string                `json:"customer_name,omitempty"`
	TotalAmount       decimal.Decimal       `json:"total_amount"`
	PaymentMethod     string                `json:"payment_method"`
	Status            string                `json:"status"`
	ShippingAddress   string                `json:"shipping_address"`
	ReferenceNumber   *string               `json:"reference_number"`
	ReceiptImage      *string               `json:"receipt_image"`
	ReceiptImageURL   *string               `json:"receipt_image_url,omitempty"`
	IsPaymentVerified bool                  `json:"is_payment_verified"`
	PaymentVerifiedAt *time.Time            `json:"payment_verified_at"`
	Rating            *int                  `json:"rating"`
	ReviewComment     *string               `json:"review_comment"`
	ReviewImages      models.StringList     `json:"review_images"`
	ReviewCreatedAt   *time.Time            `json:"review_created_at"`
	Lines             []OrderLineView       `json:"items"`
	ReturnRequest     *models.ReturnRequest `json:"return_request,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// NewOrderView renders an order loaded with its customer, items and products
func NewOrderView(order *models.Order) (OrderView, error) {
	var view OrderView
	if err := copier.Copy(&view, order); err != nil {
		return view, fmt.Errorf("failed to render order %d: %w", order.ID, err)
	}
	if order.Customer != nil {
		view.CustomerName = order.Customer.Name
	}
	if view.ReviewImages == nil {
		view.ReviewImages = models.StringList{}
	}

	view.Lines = make([]OrderLineView, 0, len(order.Items))
	for _, item := range order.Items {
		line := OrderLineView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.SellerID = item.Product.SellerID
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}

// withOrderGraph preloads everything NewOrderView renders. Delisted products still show.
func withOrderGraph(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("ReturnRequest")
}

func (s *OrderService) loadOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Scopes(withOrderGraph).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError(CodeOrderNotFound, "Order not found")
		}
		return nil, err
	}
	return &order, nil
}

// GetOrder returns one order the actor may see: customers their own, sellers
// orders containing their products or placed by them, admins any.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uint) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || order.CustomerID == actor.UserID {
		return order, nil
	}
	if actor.Role == models.RoleSeller {
		for _, item := range order.Items {
			if item.Product != nil && item.Product.SellerID == actor.UserID {
				return order, nil
			}
		}
	}
	return nil, forbiddenError("You do not have permission to view this order")
}

// ListOrders pages through the orders visible to the actor, newest first
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, filter OrderFilter) ([]models.Order, int64, error) {
	filter.Normalize()
	if filter.Status != "" && !models.IsValidOrderStatus(filter.Status) {
		return nil, 0, validationError(CodeInvalidStatus, fmt.Sprintf("Unknown order status %q", filter.Status))
	}

	db := s.db.WithContext(ctx)
	visible := func(q *gorm.DB) *gorm.DB {
		switch actor.Role {
		case models.RoleAdmin:
		case models.RoleSeller:
			sellerOrders := db.Table("order_items").
				Select("order_items.order_id").
				Joins("JOIN products ON products.id = order_items.product_id").
				Where("products.seller_id = ?", actor.UserID)
			q = q.Where("orders.customer_id = ? OR orders.id IN (?)", actor.UserID, sellerOrders)
		default:
			q = q.Where("orders.customer_id = ?", actor.UserID)
		}
		if filter.Status != "" {
			q = q.Where("orders.status = ?", filter.Status)
		}
		return q
	}

	var total int64
	if err := db.Model(&models.Order{}).Scopes(visible).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := db.Scopes(visible, withOrderGraph).
		Order("orders.created_at DESC, orders.id DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
