package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	StatusPending               = "Pending"
	StatusProcessing            = "Processing"
	StatusToShip                = "To Ship"
	StatusShipped               = "Shipped"
	StatusToBeDelivered         = "To Be Delivered"
	StatusDelivered             = "Delivered"
	StatusCompleted             = "Completed"
	StatusCancellationRequested = "Cancellation Requested"
	StatusCancelled             = "Cancelled"
	StatusReturnRequested       = "Return Requested"
)

// OrderStatuses lists every order status in workflow order
var OrderStatuses = []string{
	StatusPending,
	StatusProcessing,
	StatusToShip,
	StatusShipped,
	StatusToBeDelivered,
	StatusDelivered,
	StatusCompleted,
	StatusCancellationRequested,
	StatusCancelled,
	StatusReturnRequested,
}

// Payment methods
const (
	PaymentGCash          = "GCash"
	PaymentCashOnDelivery = "Cash on Delivery"
)

// paymentAliases maps the compact wire forms some clients send to the stored value
var paymentAliases = map[string]string{
	"CashOnDelivery": PaymentCashOnDelivery,
}

// IsValidOrderStatus reports whether status is a known order status
func IsValidOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// NormalizePaymentMethod returns the stored form of method, or "" when it is not accepted
func NormalizePaymentMethod(method string) string {
	if method == PaymentGCash || method == PaymentCashOnDelivery {
		return method
	}
	return paymentAliases[method]
}

// IsValidPaymentMethod reports whether method is an accepted payment method
func IsValidPaymentMethod(method string) bool {
	return NormalizePaymentMethod(method) != ""
}

// Order is one checkout transaction. Orders are never deleted; cancellation is a status.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CustomerID      uint            `gorm:"not null;index" json:"customer_id"`
	Customer        *User           `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"` // snapshot at creation
	PaymentMethod   string          `gorm:"not null" json:"payment_method"`
	Status          string          `gorm:"not null;default:'Pending';index" json:"status"`
	ShippingAddress string          `gorm:"type:text;not null" json:"shipping_address"`

	ReferenceNumber   *string    `json:"reference_number"`
	ReceiptImage      *string    `json:"receipt_image"` // storage key
	IsPaymentVerified bool       `gorm:"not null;default:false" json:"is_payment_verified"`
	PaymentVerifiedAt *time.Time `json:"payment_verified_at"`

	Rating          *int       `gorm:"check:rating IS NULL OR (rating >= 1 AND rating <= 5)" json:"rating"`
	ReviewComment   *string    `gorm:"type:text" json:"review_comment"`
	ReviewImages    StringList `json:"review_images"`
	ReviewCreatedAt *time.Time `json:"review_created_at"`

	Items         []OrderItem    `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	ReturnRequest *ReturnRequest `gorm:"foreignKey:OrderID" json:"return_request,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one product line of an order. Price is the unit price captured at order time.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}
