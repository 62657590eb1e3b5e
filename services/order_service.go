package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lumbarong/lumbarong-api/config"
	"github.com/lumbarong/lumbarong-api/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor is the authenticated principal invoking an order operation
type Actor struct {
	UserID uint
	Role   string
}

// IsCustomer reports whether the actor has the customer role
func (a Actor) IsCustomer() bool { return a.Role == models.RoleCustomer }

// IsAdmin reports whether the actor has the admin role
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// OrderLine is one requested product line of a new order
type OrderLine struct {
	ProductID uint
	Quantity  int
	Price     decimal.Decimal
}

// CreateOrderInput carries everything a customer submits at checkout
type CreateOrderInput struct {
	Items           []OrderLine
	TotalAmount     decimal.Decimal
	PaymentMethod   string
	ShippingAddress string
	ReferenceNumber *string
	ReceiptImage    *string
}

// OrderServiceOptions tunes the order engine
type OrderServiceOptions struct {
	PricePolicy string
	LockTimeout time.Duration
}

// OrderService owns orders, their items and return requests, and the stock they reserve
type OrderService struct {
	db          *gorm.DB
	notifier    NotificationSink
	broadcaster Broadcaster
	pricePolicy string
	lockTimeout time.Duration
	now         func() time.Time
}

var orderServiceInstance *OrderService

// NewOrderService creates an order engine. notifier and broadcaster are called after commit.
func NewOrderService(db *gorm.DB, notifier NotificationSink, broadcaster Broadcaster, opts OrderServiceOptions) *OrderService {
	if opts.PricePolicy == "" {
		opts.PricePolicy = config.PricePolicyClient
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	return &OrderService{
		db:          db,
		notifier:    notifier,
		broadcaster: broadcaster,
		pricePolicy: opts.PricePolicy,
		lockTimeout: opts.LockTimeout,
		now:         time.Now,
	}
}

// InitOrderService creates the global order engine instance
func InitOrderService(db *gorm.DB, notifier NotificationSink, broadcaster Broadcaster, opts OrderServiceOptions) *OrderService {
	orderServiceInstance = NewOrderService(db, notifier, broadcaster, opts)
	return orderServiceInstance
}

// GetOrderService returns the initialized order engine
func GetOrderService() *OrderService {
	return orderServiceInstance
}

// SetOrderService sets the order engine instance (primarily for testing)
func SetOrderService(service *OrderService) {
	orderServiceInstance = service
}

func (in CreateOrderInput) validate() error {
	if len(in.Items) == 0 {
		return validationError(CodeValidation, "Order must contain at least one item")
	}
	for i, line := range in.Items {
		if line.ProductID == 0 {
			return validationError(CodeValidation, fmt.Sprintf("items[%d].product is required", i))
		}
		if line.Quantity <= 0 {
			return validationError(CodeValidation, fmt.Sprintf("items[%d].quantity must be greater than 0", i))
		}
		if line.Price.IsNegative() {
			return validationError(CodeValidation, fmt.Sprintf("items[%d].price must not be negative", i))
		}
	}
	if !models.IsValidPaymentMethod(in.PaymentMethod) {
		return validationError(CodeValidation, fmt.Sprintf("paymentMethod must be %q or %q", models.PaymentGCash, models.PaymentCashOnDelivery))
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return validationError(CodeValidation, "shippingAddress is required")
	}
	if in.TotalAmount.IsNegative() {
		return validationError(CodeValidation, "totalAmount must not be negative")
	}
	return nil
}

// CreateOrder reserves stock for every line and records the order in one transaction.
// Product rows are locked in ascending id order before any stock is decremented.
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*models.Order, error) {
	if !actor.IsCustomer() {
		return nil, forbiddenError("Only customers can place orders")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	requested := make(map[uint]int, len(in.Items))
	for _, line := range in.Items {
		requested[line.ProductID] += line.Quantity
	}
	productIDs := sortedKeys(requested)

	order := models.Order{
		CustomerID:      actor.UserID,
		PaymentMethod:   models.NormalizePaymentMethod(in.PaymentMethod),
		Status:          models.StatusPending,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		ReferenceNumber: in.ReferenceNumber,
		ReceiptImage:    in.ReceiptImage,
		ReviewImages:    models.StringList{},
	}
	var sellerIDs []uint

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		products := make(map[uint]models.Product, len(productIDs))
		for _, id := range productIDs {
			var product models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return businessError(CodeProductNotFound, fmt.Sprintf("Product %d not found", id))
				}
				return err
			}
			if product.Stock < requested[id] {
				return insufficientStock(product.Name)
			}
			products[id] = product
		}

		total := in.TotalAmount
		if s.pricePolicy == config.PricePolicyCatalog {
			total = decimal.Zero
		}
		order.Items = make([]models.OrderItem, 0, len(in.Items))
		for _, line := range in.Items {
			price := line.Price
			if s.pricePolicy == config.PricePolicyCatalog {
				price = products[line.ProductID].Price
				total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			}
			order.Items = append(order.Items, models.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     price,
			})
		}
		order.TotalAmount = total

		seen := make(map[uint]bool)
		for _, id := range productIDs {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", id, requested[id]).
				Update("stock", gorm.Expr("stock - ?", requested[id]))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return insufficientStock(products[id].Name)
			}
			if seller := products[id].SellerID; !seen[seller] {
				seen[seller] = true
				sellerIDs = append(sellerIDs, seller)
			}
		}

		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint("order_id", order.ID).Uint("customer_id", actor.UserID).
		Str("total", order.TotalAmount.StringFixed(2)).Int("lines", len(order.Items)).
		Msg("Order created")

	notices := make([]notice, 0, len(sellerIDs)+1)
	for _, sellerID := range sellerIDs {
		notices = append(notices, notice{sellerID, fmt.Sprintf("New order #%d has been placed for your products.", order.ID)})
	}
	notices = append(notices, notice{actor.UserID, fmt.Sprintf("Your order #%d has been placed and is pending.", order.ID)})
	s.dispatch(ctx, order.ID, notices, EventOrderCreated, order.Status)

	loaded, err := s.loadOrder(ctx, order.ID)
	if err != nil {
		log.Warn().Err(err).Uint("order_id", order.ID).Msg("Failed to reload created order")
		return &order, nil
	}
	return loaded, nil
}

// cancellationClosed holds the statuses from which an order can no longer be cancelled
var cancellationClosed = map[string]bool{
	models.StatusShipped:   true,
	models.StatusDelivered: true,
	models.StatusCompleted: true,
}

// forwardTransitions lists the non-cancel status writes sellers and admins may make
var forwardTransitions = map[string][]string{
	models.StatusPending:               {models.StatusProcessing},
	models.StatusProcessing:            {models.StatusToShip},
	models.StatusToShip:                {models.StatusShipped},
	models.StatusShipped:               {models.StatusToBeDelivered, models.StatusDelivered},
	models.StatusToBeDelivered:         {models.StatusDelivered},
	models.StatusCancellationRequested: {models.StatusPending, models.StatusProcessing},
}

func checkTransition(from, to string) error {
	if to == models.StatusCancelled {
		if cancellationClosed[from] {
			return businessError(CodeCancellationClosed, fmt.Sprintf("Order cannot be cancelled once it is %s", from))
		}
		return nil
	}
	for _, allowed := range forwardTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return businessError(CodeInvalidTransition, fmt.Sprintf("Order cannot move from %s to %s", from, to))
}

// UpdateStatus writes a new status. Customers may only cancel their own orders.
// Cancelling restores every item's stock in the same transaction as the status write.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, orderID uint, status string) (*models.Order, error) {
	if !models.IsValidOrderStatus(status) {
		return nil, validationError(CodeInvalidStatus, fmt.Sprintf("Unknown order status %q", status))
	}
	if actor.IsCustomer() && status != models.StatusCancelled {
		return nil, forbiddenError("Customers can only cancel orders")
	}

	var order models.Order
	changed := false
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, &order); err != nil {
			return err
		}
		switch {
		case order.CustomerID == actor.UserID && status == models.StatusCancelled:
			// owners may always cancel their own order
		case actor.IsCustomer():
			return forbiddenError("You do not have permission to modify this order")
		default:
			if err := s.authorizeManage(tx, actor, &order); err != nil {
				return err
			}
		}

		if order.Status == status {
			return nil
		}
		if err := checkTransition(order.Status, status); err != nil {
			return err
		}
		if status == models.StatusCancelled {
			if err := restoreStock(tx, order.ID); err != nil {
				return err
			}
		}
		if err := tx.Model(&order).Update("status", status).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log.Info().Uint("order_id", orderID).Str("status", status).Str("role", actor.Role).Msg("Order status updated")
		s.dispatch(ctx, orderID, []notice{
			{order.CustomerID, fmt.Sprintf("Your order #%d is now %s.", orderID, status)},
		}, EventOrderStatusChanged, status)
	}

	return s.loadOrder(ctx, orderID)
}

// restoreStock returns every item's quantity to its product, delisted ones included.
// Products that no longer exist are skipped.
func restoreStock(tx *gorm.DB, orderID uint) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return err
	}
	quantities := make(map[uint]int, len(items))
	for _, item := range items {
		quantities[item.ProductID] += item.Quantity
	}

	for _, id := range sortedKeys(quantities) {
		var product models.Product
		if err := tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warn().Uint("order_id", orderID).Uint("product_id", id).Msg("Skipping stock restore for missing product")
				continue
			}
			return err
		}
		if err := tx.Unscoped().Model(&product).Update("stock", gorm.Expr("stock + ?", quantities[id])).Error; err != nil {
			return err
		}
	}
	return nil
}

// transaction runs fn in a transaction whose lock waits are bounded by the lock timeout
func (s *OrderService) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
	return classifyTxError(err)
}

func lockOrder(tx *gorm.DB, orderID uint, order *models.Order) error {
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError(CodeOrderNotFound, "Order not found")
		}
		return err
	}
	return nil
}

// authorizeManage allows admins, and sellers who own at least one product in the order
func (s *OrderService) authorizeManage(db *gorm.DB, actor Actor, order *models.Order) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleSeller:
		ok, err := sellerInOrder(db, actor.UserID, order.ID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return forbiddenError("You do not have permission to manage this order")
}

func requireOwner(actor Actor, order *models.Order) error {
	if order.CustomerID != actor.UserID {
		return forbiddenError("You do not have permission to modify this order")
	}
	return nil
}

func sellerInOrder(db *gorm.DB, sellerID, orderID uint) (bool, error) {
	var count int64
	err := db.Table("order_items").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id = ? AND products.seller_id = ?", orderID, sellerID).
		Count(&count).Error
	return count > 0, err
}

// orderSellerIDs returns the distinct sellers owning products in the order
func orderSellerIDs(db *gorm.DB, orderID uint) ([]uint, error) {
	var ids []uint
	err := db.Table("order_items").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id = ?", orderID).
		Distinct().
		Order("products.seller_id").
		Pluck("products.seller_id", &ids).Error
	return ids, err
}

func insufficientStock(productName string) error {
	return businessError(CodeInsufficientStock, fmt.Sprintf("Insufficient stock for %s", productName))
}

func sortedKeys(m map[uint]int) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

type notice struct {
	recipientID uint
	message     string
}

const notifyConcurrency = 4

// dispatch sends notifications and a realtime event after commit. Failures are logged only.
func (s *OrderService) dispatch(ctx context.Context, orderID uint, notices []notice, eventType, status string) {
	ctx = context.WithoutCancel(ctx)

	if s.notifier != nil {
		var g errgroup.Group
		g.SetLimit(notifyConcurrency)
		for _, n := range notices {
			g.Go(func() error {
				if err := s.notifier.Notify(ctx, n.recipientID, &orderID, n.message); err != nil {
					log.Warn().Err(err).Uint("order_id", orderID).Uint("recipient_id", n.recipientID).
						Msg("Failed to send order notification")
					return err
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if s.broadcaster != nil {
		audience, err := s.orderAudience(ctx, orderID)
		if err != nil {
			log.Warn().Err(err).Uint("order_id", orderID).Msg("Failed to resolve realtime audience")
		}
		event := Event{Type: eventType, OrderID: orderID, Status: status, Audience: audience, At: s.now()}
		if err := s.broadcaster.Broadcast(ctx, event); err != nil {
			log.Warn().Err(err).Uint("order_id", orderID).Str("event", eventType).Msg("Failed to broadcast order event")
		}
	}
}

// orderAudience returns the customer and sellers involved in an order
func (s *OrderService) orderAudience(ctx context.Context, orderID uint) ([]uint, error) {
	db := s.db.WithContext(ctx)
	var order models.Order
	if err := db.Select("id", "customer_id").First(&order, orderID).Error; err != nil {
		return nil, err
	}
	sellerIDs, err := orderSellerIDs(db, orderID)
	if err != nil {
		return nil, err
	}
	return append([]uint{order.CustomerID}, sellerIDs...), nil
}

// notifySellers loads the order's sellers and notifies each of them
func (s *OrderService) notifySellers(ctx context.Context, orderID uint, message, eventType, status string) {
	sellerIDs, err := orderSellerIDs(s.db.WithContext(ctx), orderID)
	if err != nil {
		log.Warn().Err(err).Uint("order_id", orderID).Msg("Failed to load sellers for notification")
	}
	notices := make([]notice, 0, len(sellerIDs))
	for _, id := range sellerIDs {
		notices = append(notices, notice{id, message})
	}
	s.dispatch(ctx, orderID, notices, eventType, status)
}
