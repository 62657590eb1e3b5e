package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrateAndRoundTrip(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	seller := User{Auth0ID: "auth0|seller", Name: "Seller", Email: "seller@example.com", Role: RoleSeller}
	require.NoError(t, db.Create(&seller).Error)

	product := Product{SellerID: seller.ID, Name: "Barong Tagalog", Slug: "barong-tagalog", Price: decimal.RequireFromString("2500.50"), Stock: 4}
	require.NoError(t, db.Create(&product).Error)

	order := Order{
		CustomerID:      seller.ID,
		TotalAmount:     decimal.RequireFromString("5001"),
		PaymentMethod:   PaymentGCash,
		Status:          StatusPending,
		ShippingAddress: "Lumban, Laguna",
		ReviewImages:    StringList{"r1.png"},
		Items: []OrderItem{
			{ProductID: product.ID, Quantity: 2, Price: product.Price},
		},
	}
	require.NoError(t, db.Create(&order).Error)

	var loaded Order
	require.NoError(t, db.Preload("Items").First(&loaded, order.ID).Error)
	assert.True(t, loaded.TotalAmount.Equal(decimal.NewFromInt(5001)))
	assert.Equal(t, StringList{"r1.png"}, loaded.ReviewImages)
	require.Len(t, loaded.Items, 1)
	assert.True(t, loaded.Items[0].Price.Equal(decimal.RequireFromString("2500.5")))
}

func TestProductStockCannotGoNegative(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	product := Product{SellerID: 1, Name: "Pina Cloth", Slug: "pina-cloth", Price: decimal.NewFromInt(100), Stock: 1}
	require.NoError(t, db.Create(&product).Error)

	err = db.Model(&product).Update("stock", -1).Error
	assert.Error(t, err, "the stock check constraint should reject negative values")
}
