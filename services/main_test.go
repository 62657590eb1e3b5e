package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lumbarong/lumbarong-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a migrated in-memory database on a single connection
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db), "Failed to migrate test database")
	return db
}

type recordedNotice struct {
	RecipientID uint
	OrderID     uint
	Message     string
}

// fakeSink records notifications and can be told to fail
type fakeSink struct {
	mu      sync.Mutex
	notices []recordedNotice
	err     error
}

func (f *fakeSink) Notify(_ context.Context, recipientID uint, orderID *uint, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	n := recordedNotice{RecipientID: recipientID, Message: message}
	if orderID != nil {
		n.OrderID = *orderID
	}
	f.notices = append(f.notices, n)
	return nil
}

func (f *fakeSink) recipients() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uint, 0, len(f.notices))
	for _, n := range f.notices {
		ids = append(ids, n.RecipientID)
	}
	return ids
}

func (f *fakeSink) reset() {
	f.mu.Lock()
	f.notices = nil
	f.mu.Unlock()
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, event Event) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	return nil
}

func (f *fakeBroadcaster) last() Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return Event{}
	}
	return f.events[len(f.events)-1]
}

// marketplace is a seeded catalog with one admin, two customers and two sellers
type marketplace struct {
	db          *gorm.DB
	service     *OrderService
	sink        *fakeSink
	broadcaster *fakeBroadcaster

	admin, customer, otherCustomer, seller, otherSeller models.User
}

func newMarketplace(t *testing.T, opts OrderServiceOptions) *marketplace {
	t.Helper()
	db := setupTestDB(t)
	m := &marketplace{db: db, sink: &fakeSink{}, broadcaster: &fakeBroadcaster{}}
	m.service = NewOrderService(db, m.sink, m.broadcaster, opts)
	m.service.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	m.admin = m.user(t, "admin", models.RoleAdmin)
	m.customer = m.user(t, "customer", models.RoleCustomer)
	m.otherCustomer = m.user(t, "other-customer", models.RoleCustomer)
	m.seller = m.user(t, "seller", models.RoleSeller)
	m.otherSeller = m.user(t, "other-seller", models.RoleSeller)
	return m
}

func (m *marketplace) user(t *testing.T, name, role string) models.User {
	t.Helper()
	u := models.User{Auth0ID: "auth0|" + name, Name: name, Email: name + "@lumbarong.test", Role: role}
	require.NoError(t, m.db.Create(&u).Error)
	return u
}

func (m *marketplace) product(t *testing.T, seller models.User, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		SellerID: seller.ID,
		Name:     name,
		Slug:     fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
	require.NoError(t, m.db.Create(&p).Error)
	return p
}

func (m *marketplace) stockOf(t *testing.T, productID uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, m.db.Unscoped().First(&p, productID).Error)
	return p.Stock
}

func (m *marketplace) setStatus(t *testing.T, orderID uint, status string) {
	t.Helper()
	require.NoError(t, m.db.Model(&models.Order{}).Where("id = ?", orderID).Update("status", status).Error)
}

func actorOf(u models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

func orderInput(lines ...OrderLine) CreateOrderInput {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return CreateOrderInput{
		Items:           lines,
		TotalAmount:     total,
		PaymentMethod:   models.PaymentGCash,
		ShippingAddress: "123 Rizal St, Lumban, Laguna",
	}
}

func line(p models.Product, qty int) OrderLine {
	return OrderLine{ProductID: p.ID, Quantity: qty, Price: p.Price}
}

func requireOrderError(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	require.Error(t, err)
	oe, ok := AsOrderError(err)
	require.True(t, ok, "expected an OrderError, got %v", err)
	require.Equal(t, kind, oe.Kind, oe.Message)
	require.Equal(t, code, oe.Code, oe.Message)
}
