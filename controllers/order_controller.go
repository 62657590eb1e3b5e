package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumbarong/lumbarong-api/models"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// OrderItemRequest is one line of a checkout request
type OrderItemRequest struct {
	Product  uint            `json:"product" binding:"required"`
	Quantity int             `json:"quantity" binding:"required,gt=0"`
	Price    decimal.Decimal `json:"price"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	PaymentMethod   string             `json:"paymentMethod" binding:"required,payment_method"`
	ShippingAddress string             `json:"shippingAddress" binding:"required"`
	ReferenceNumber *string            `json:"referenceNumber"`
	ReceiptImage    *string            `json:"receiptImage"`
}

// UpdateStatusRequest represents the request body for a status change
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

// PaymentProofRequest carries the customer's payment reference and receipt
type PaymentProofRequest struct {
	ReferenceNumber string  `json:"referenceNumber" binding:"required"`
	ReceiptImage    *string `json:"receiptImage"`
}

// VerifyPaymentRequest carries a seller's settlement decision
type VerifyPaymentRequest struct {
	IsVerified *bool `json:"isVerified" binding:"required"`
}

// ReviewRequest represents the request body for reviewing an order
type ReviewRequest struct {
	Rating  int      `json:"rating" binding:"required,gte=1,lte=5"`
	Comment string   `json:"comment"`
	Images  []string `json:"images"`
}

// ReturnRequestBody represents the request body for requesting a return
type ReturnRequestBody struct {
	Reason      string   `json:"reason" binding:"required"`
	ProofImages []string `json:"proofImages"`
	ProofVideo  *string  `json:"proofVideo"`
}

// ResolveReturnRequest carries a seller's decision on a return
type ResolveReturnRequest struct {
	Status string `json:"status" binding:"required,return_status"`
}

// renderOrder builds the order view and resolves the receipt image to a URL
func renderOrder(c *gin.Context, order *models.Order) (services.OrderView, error) {
	view, err := services.NewOrderView(order)
	if err != nil {
		return view, err
	}

	media := services.GetMediaService()
	if media == nil || order.ReceiptImage == nil || *order.ReceiptImage == "" {
		return view, nil
	}
	url, err := media.URL(c.Request.Context(), *order.ReceiptImage)
	if err != nil {
		log.Warn().Err(err).Uint("order_id", order.ID).Msg("Failed to resolve receipt image URL")
		return view, nil
	}
	view.ReceiptImageURL = &url
	return view, nil
}

func respondOrder(c *gin.Context, status int, order *models.Order) {
	view, err := renderOrder(c, order)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(status, gin.H{
		"success": true,
		"data":    view,
	})
}

// CreateOrder handles POST /api/v1/orders - reserves stock and places an order (customers only)
func CreateOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	input := services.CreateOrderInput{
		Items:           make([]services.OrderLine, 0, len(req.Items)),
		TotalAmount:     req.TotalAmount,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		ReferenceNumber: req.ReferenceNumber,
		ReceiptImage:    req.ReceiptImage,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, services.OrderLine{
			ProductID: item.Product,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	order, err := services.GetOrderService().CreateOrder(c.Request.Context(), actorOf(user), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders - lists the orders visible to the caller
func ListOrders(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	filter := services.OrderFilter{
		Status: c.Query("status"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", services.DefaultPageLimit),
	}
	filter.Normalize()

	orders, total, err := services.GetOrderService().ListOrders(c.Request.Context(), actorOf(user), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	views := make([]services.OrderView, 0, len(orders))
	for i := range orders {
		view, err := renderOrder(c, &orders[i])
		if err != nil {
			respondServiceError(c, err)
			return
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       views,
		"pagination": pagination(filter.Page, filter.Limit, total),
	})
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	order, err := services.GetOrderService().GetOrder(c.Request.Context(), actorOf(user), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusOK, order)
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status
func UpdateOrderStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	order, err := services.GetOrderService().UpdateStatus(c.Request.Context(), actorOf(user), orderID, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusOK, order)
}

// RequestCancellation handles POST /api/v1/orders/:id/cancel-request
func RequestCancellation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	order, err := services.GetOrderService().RequestCancellation(c.Request.Context(), actorOf(user), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusOK, order)
}

// SubmitPaymentProof handles POST /api/v1/orders/:id/payment-proof
func SubmitPaymentProof(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req PaymentProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	order, err := services.GetOrderService().SubmitPaymentProof(c.Request.Context(), actorOf(user), orderID, req.ReferenceNumber, req.ReceiptImage)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusOK, order)
}

// VerifyPayment handles PUT /api/v1/orders/:id/verify-payment (sellers and admins)
func VerifyPayment(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	order, err := services.GetOrderService().VerifyPayment(c.Request.Context(), actorOf(user), orderID, *req.IsVerified)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusOK, order)
}

// SubmitReview handles POST /api/v1/orders/:id/review
func SubmitReview(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	order, err := services.GetOrderService().SubmitReview(c.Request.Context(), actorOf(user), orderID, services.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
		Images:  req.Images,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusOK, order)
}

// CompleteOrder handles POST /api/v1/orders/:id/complete
func CompleteOrder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	order, err := services.GetOrderService().CompleteOrder(c.Request.Context(), actorOf(user), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusOK, order)
}

// SubmitReturnRequest handles POST /api/v1/orders/:id/return-request
func SubmitReturnRequest(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req ReturnRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	order, err := services.GetOrderService().SubmitReturnRequest(c.Request.Context(), actorOf(user), orderID, services.ReturnInput{
		Reason:      req.Reason,
		ProofImages: req.ProofImages,
		ProofVideo:  req.ProofVideo,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusCreated, order)
}

// ResolveReturn handles PUT /api/v1/orders/:id/return-request (sellers and admins)
func ResolveReturn(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req ResolveReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationResponse(c, err)
		return
	}

	order, err := services.GetOrderService().ResolveReturnRequest(c.Request.Context(), actorOf(user), orderID, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOrder(c, http.StatusOK, order)
}
