package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lumbarong/lumbarong-api/models"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiClient talks to a running server the way the storefront does
type apiClient struct {
	t       *testing.T
	baseURL string
	token   string
}

func (c apiClient) call(method, path string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, c.baseURL+path, &payload)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func (c apiClient) order(path string, body interface{}, wantStatus int) map[string]interface{} {
	c.t.Helper()
	status, response := c.call(http.MethodPost, path, body)
	require.Equal(c.t, wantStatus, status, "%v", response)
	return response["data"].(map[string]interface{})
}

type marketplace struct {
	server    *httptest.Server
	app       *testApp
	customer  apiClient
	seller    apiClient
	productID uint
}

// startMarketplace runs the API on a real listener with a seller, a customer and one product of stock 10
func startMarketplace(t *testing.T) *marketplace {
	t.Helper()
	app := setupTestApp(t)
	server := httptest.NewServer(app.router)
	t.Cleanup(server.Close)

	customerToken := tokenFor(t, "local|customer", models.RoleCustomer)
	sellerToken := tokenFor(t, "local|seller", models.RoleSeller)
	app.register(t, customerToken, "Maria Santos", "maria@example.com")
	app.register(t, sellerToken, "Lumban Weavers", "weavers@example.com")

	m := &marketplace{
		server:   server,
		app:      app,
		customer: apiClient{t: t, baseURL: server.URL, token: customerToken},
		seller:   apiClient{t: t, baseURL: server.URL, token: sellerToken},
	}
	product := m.seller.order("/api/v1/products", map[string]interface{}{
		"name": "Pina Barong", "category": "Barong", "price": "100", "stock": 10,
	}, http.StatusCreated)
	m.productID = uint(product["id"].(float64))
	return m
}

func (m *marketplace) placeOrder(t *testing.T, method string) uint {
	t.Helper()
	order := m.customer.order("/api/v1/orders", map[string]interface{}{
		"items":           []map[string]interface{}{{"product": m.productID, "quantity": 3, "price": "100"}},
		"totalAmount":     "300",
		"paymentMethod":   method,
		"shippingAddress": "12 Rizal St, Lumban, Laguna",
	}, http.StatusCreated)
	return uint(order["id"].(float64))
}

func (m *marketplace) stock(t *testing.T) float64 {
	t.Helper()
	status, response := m.customer.call(http.MethodGet, fmt.Sprintf("/api/v1/products/%d", m.productID), nil)
	require.Equal(t, http.StatusOK, status)
	return response["data"].(map[string]interface{})["stock"].(float64)
}

func (m *marketplace) setStatus(t *testing.T, orderID uint, status string) {
	t.Helper()
	code, response := m.seller.call(http.MethodPut, fmt.Sprintf("/api/v1/orders/%d/status", orderID), map[string]string{"status": status})
	require.Equal(t, http.StatusOK, code, "moving to %s: %v", status, response)
}

// TestScenarioA_OrderReservesStock: stock 10, order 3 at 100 → total matches request, stock 7
func TestScenarioA_OrderReservesStock(t *testing.T) {
	m := startMarketplace(t)

	order := m.customer.order("/api/v1/orders", map[string]interface{}{
		"items":           []map[string]interface{}{{"product": m.productID, "quantity": 3, "price": "100"}},
		"totalAmount":     "300",
		"paymentMethod":   models.PaymentCashOnDelivery,
		"shippingAddress": "12 Rizal St, Lumban, Laguna",
	}, http.StatusCreated)

	assert.Equal(t, "300", order["total_amount"])
	assert.Equal(t, models.StatusPending, order["status"])
	assert.Equal(t, float64(7), m.stock(t))
}

// TestScenarioB_VerifiedPaymentStartsProcessing: GCash order, seller verifies → Processing
func TestScenarioB_VerifiedPaymentStartsProcessing(t *testing.T) {
	m := startMarketplace(t)
	orderID := m.placeOrder(t, models.PaymentGCash)

	status, response := m.seller.call(http.MethodPut, fmt.Sprintf("/api/v1/orders/%d/verify-payment", orderID), map[string]bool{"isVerified": true})
	require.Equal(t, http.StatusOK, status, "%v", response)

	order := response["data"].(map[string]interface{})
	assert.Equal(t, true, order["is_payment_verified"])
	assert.Equal(t, models.StatusProcessing, order["status"])
	assert.NotNil(t, order["payment_verified_at"])
}

// TestScenarioC_FulfilmentThenReview walks the order to Completed and reviews it
func TestScenarioC_FulfilmentThenReview(t *testing.T) {
	m := startMarketplace(t)
	orderID := m.placeOrder(t, models.PaymentCashOnDelivery)

	for _, status := range []string{models.StatusProcessing, models.StatusToShip, models.StatusShipped, models.StatusDelivered} {
		m.setStatus(t, orderID, status)
	}

	order := m.customer.order(fmt.Sprintf("/api/v1/orders/%d/complete", orderID), nil, http.StatusOK)
	assert.Equal(t, models.StatusCompleted, order["status"])

	order = m.customer.order(fmt.Sprintf("/api/v1/orders/%d/review", orderID), map[string]interface{}{"rating": 5}, http.StatusOK)
	assert.Equal(t, float64(5), order["rating"])
	assert.NotNil(t, order["review_created_at"])
}

// TestScenarioD_ReturnRequest opens a return on a delivered order
func TestScenarioD_ReturnRequest(t *testing.T) {
	m := startMarketplace(t)
	orderID := m.placeOrder(t, models.PaymentCashOnDelivery)
	for _, status := range []string{models.StatusProcessing, models.StatusToShip, models.StatusShipped, models.StatusDelivered} {
		m.setStatus(t, orderID, status)
	}

	order := m.customer.order(fmt.Sprintf("/api/v1/orders/%d/return-request", orderID), map[string]interface{}{
		"reason":      "Torn seam",
		"proofImages": []string{"seam.png"},
	}, http.StatusCreated)

	assert.Equal(t, models.StatusReturnRequested, order["status"])
	returnRequest := order["return_request"].(map[string]interface{})
	assert.Equal(t, models.ReturnPending, returnRequest["status"])
	assert.Equal(t, []interface{}{"seam.png"}, returnRequest["proof_images"])
}

func TestCancellationRestoresStock(t *testing.T) {
	m := startMarketplace(t)
	orderID := m.placeOrder(t, models.PaymentGCash)
	require.Equal(t, float64(7), m.stock(t))

	m.customer.order(fmt.Sprintf("/api/v1/orders/%d/cancel-request", orderID), nil, http.StatusOK)
	assert.Equal(t, float64(7), m.stock(t))

	m.setStatus(t, orderID, models.StatusCancelled)
	assert.Equal(t, float64(10), m.stock(t))
}

func TestRealtimeOrderEvents(t *testing.T) {
	m := startMarketplace(t)

	wsURL := "ws" + strings.TrimPrefix(m.server.URL, "http") + "/api/v1/ws?access_token=" + m.seller.token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.Eventually(t, func() bool { return m.app.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	orderID := m.placeOrder(t, models.PaymentGCash)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event services.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, services.EventOrderCreated, event.Type)
	assert.Equal(t, orderID, event.OrderID)
	assert.Equal(t, models.StatusPending, event.Status)
}

func TestRealtimeRequiresToken(t *testing.T) {
	m := startMarketplace(t)

	wsURL := "ws" + strings.TrimPrefix(m.server.URL, "http") + "/api/v1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
