package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/lumbarong/lumbarong-api/config"
	"github.com/lumbarong/lumbarong-api/models"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateProductRequest represents the request body for listing a product
type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required,max=200"`
	Description string          `json:"description"`
	Category    string          `json:"category" binding:"max=100"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"gte=0"`
	ImageKey    *string         `json:"imageKey"`
}

// UpdateStockRequest sets a product's available stock
type UpdateStockRequest struct {
	Stock *int `json:"stock" binding:"required,gte=0"`
}

// withImageURL resolves the stored image key for rendering
func withImageURL(c *gin.Context, product *models.Product) {
	media := services.GetMediaService()
	if media == nil || product.ImageKey == nil || *product.ImageKey == "" {
		return
	}
	url, err := media.URL(c.Request.Context(), *product.ImageKey)
	if err != nil {
		log.Warn().Err(err).Uint("product_id", product.ID).Msg("Failed to resolve product image URL")
		return
	}
	product.ImageURL = &url
}

// ListProducts handles GET /api/v1/products - ?category, ?seller, ?q, ?page, ?limit
func ListProducts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", services.DefaultPageLimit)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > services.MaxPageLimit {
		limit = services.DefaultPageLimit
	}

	category := c.Query("category")
	sellerID := queryInt(c, "seller", 0)
	search := strings.TrimSpace(c.Query("q"))
	filtered := func(q *gorm.DB) *gorm.DB {
		if category != "" {
			q = q.Where("category = ?", category)
		}
		if sellerID > 0 {
			q = q.Where("seller_id = ?", sellerID)
		}
		if search != "" {
			q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
		return q
	}

	db := config.GetDB().WithContext(c.Request.Context())
	var total int64
	if err := db.Model(&models.Product{}).Scopes(filtered).Count(&total).Error; err != nil {
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count products")
		return
	}

	var products []models.Product
	err := db.Scopes(filtered).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch products")
		return
	}
	for i := range products {
		withImageURL(c, &products[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       products,
		"pagination": pagination(page, limit, total),
	})
}

// GetProduct handles GET /api/v1/products/:id
func GetProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := config.GetDB().WithContext(c.Request.Context()).Preload("Seller").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorResponse(c, http.StatusNotFound, services.CodeProductNotFound, "Product not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch product")
		return
	}
	withImageURL(c, &product)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    product,
	})
}

// CreateProduct handles POST /api/v1/products - lists a product owned by the caller
func CreateProduct(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if user.Role == models.RoleCustomer {
		errorResponse(c, http.StatusForbidden, "FORBIDDEN", "Only sellers can list products")
		return
	}

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}
	if !req.Price.IsPositive() {
		errorResponse(c, http.StatusBadRequest, services.CodeValidation, "price must be greater than 0")
		return
	}

	base := slug.Make(req.Name)
	product := models.Product{
		SellerID:    user.ID,
		Name:        strings.TrimSpace(req.Name),
		Slug:        base + "-" + uuid.NewString(), // replaced with the id once it is known
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageKey:    req.ImageKey,
	}

	err := config.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		product.Slug = fmt.Sprintf("%s-%d", base, product.ID)
		return tx.Model(&product).Update("slug", product.Slug).Error
	})
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create product")
		return
	}
	withImageURL(c, &product)

	log.Info().Uint("product_id", product.ID).Uint("seller_id", user.ID).Msg("Product listed")
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    product,
	})
}

// UpdateProductStock handles PUT /api/v1/products/:id/stock - restocks a product (owner or admin)
func UpdateProductStock(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	var product models.Product
	errForbidden := errors.New("forbidden")
	err := config.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
			return err
		}
		if user.Role != models.RoleAdmin && product.SellerID != user.ID {
			return errForbidden
		}
		product.Stock = *req.Stock
		return tx.Model(&product).Update("stock", product.Stock).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		errorResponse(c, http.StatusNotFound, services.CodeProductNotFound, "Product not found")
		return
	case errors.Is(err, errForbidden):
		errorResponse(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to modify this product")
		return
	case err != nil:
		errorResponse(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update stock")
		return
	}
	withImageURL(c, &product)

	log.Info().Uint("product_id", product.ID).Int("stock", product.Stock).Uint("by", user.ID).Msg("Product restocked")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    product,
	})
}
