package controllers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/lumbarong/lumbarong-api/models"
	"github.com/lumbarong/lumbarong-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	barong := env.createProduct(env.seller, "Pina Barong", "1000", 5)
	orderID := env.placeOrder(env.customer, barong, 1)

	tests := []struct {
		name           string
		user           models.User
		orderID        uint
		body           map[string]string
		expectedStatus int
		expectedCode   string
	}{
		{"customer on own order", env.customer, orderID, map[string]string{"text": "Can you hem the sleeves?"}, http.StatusCreated, ""},
		{"seller of an item", env.seller, orderID, map[string]string{"text": "Yes, by Friday."}, http.StatusCreated, ""},
		{"admin", env.admin, orderID, map[string]string{"text": "Following up."}, http.StatusCreated, ""},
		{"other customer", env.otherCustomer, orderID, map[string]string{"text": "Hello"}, http.StatusForbidden, "FORBIDDEN"},
		{"unrelated seller", env.otherSeller, orderID, map[string]string{"text": "Hello"}, http.StatusForbidden, "FORBIDDEN"},
		{"missing order", env.customer, orderID + 50, map[string]string{"text": "Hello"}, http.StatusNotFound, "ORDER_NOT_FOUND"},
		{"missing text", env.customer, orderID, map[string]string{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank text", env.customer, orderID, map[string]string{"text": "   "}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"text too long", env.customer, orderID, map[string]string{"text": strings.Repeat("a", services.MaxMessageLength+1)}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(env.routerFor(tt.user), http.MethodPost, orderPath(tt.orderID, "/messages"), tt.body)

			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCodeOf(t, w))
				return
			}
			data := dataOf(t, w)
			assert.Equal(t, tt.body["text"], data["text"])
			assert.Equal(t, float64(tt.user.ID), data["sender_id"])
			sender := data["sender"].(map[string]interface{})
			assert.Equal(t, tt.user.Name, sender["name"])
		})
	}
}

func TestSendMessage_NotifiesTheOtherSide(t *testing.T) {
	env := newTestEnv(t)
	barong := env.createProduct(env.seller, "Pina Barong", "1000", 5)
	orderID := env.placeOrder(env.customer, barong, 1)
	env.db.Where("1 = 1").Delete(&models.Notification{})

	w := perform(env.routerFor(env.customer), http.MethodPost, orderPath(orderID, "/messages"), map[string]string{"text": "Is it lined?"})
	require.Equal(t, http.StatusCreated, w.Code)

	var sellerNotices []models.Notification
	env.db.Where("recipient_id = ?", env.seller.ID).Find(&sellerNotices)
	require.Len(t, sellerNotices, 1)
	assert.Contains(t, sellerNotices[0].Message, "Is it lined?")

	w = perform(env.routerFor(env.seller), http.MethodPost, orderPath(orderID, "/messages"), map[string]string{"text": "It is."})
	require.Equal(t, http.StatusCreated, w.Code)

	var customerNotices int64
	env.db.Model(&models.Notification{}).Where("recipient_id = ?", env.customer.ID).Count(&customerNotices)
	assert.Equal(t, int64(1), customerNotices)
}

func TestListMessages(t *testing.T) {
	env := newTestEnv(t)
	barong := env.createProduct(env.seller, "Pina Barong", "1000", 5)
	orderID := env.placeOrder(env.customer, barong, 1)
	quiet := env.placeOrder(env.customer, barong, 1)

	for _, step := range []struct {
		user models.User
		text string
	}{
		{env.customer, "First"},
		{env.seller, "Second"},
		{env.customer, "Third <b>"},
	} {
		w := perform(env.routerFor(step.user), http.MethodPost, orderPath(orderID, "/messages"), map[string]string{"text": step.text})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	t.Run("oldest first", func(t *testing.T) {
		w := perform(env.routerFor(env.seller), http.MethodGet, orderPath(orderID, "/messages"), nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Third <b>", "Messages are written without HTML escaping")
		messages := decodeResponse(t, w)["data"].([]interface{})
		require.Len(t, messages, 3)
		assert.Equal(t, "First", messages[0].(map[string]interface{})["text"])
		assert.Equal(t, "Second", messages[1].(map[string]interface{})["text"])
		assert.Equal(t, "Third <b>", messages[2].(map[string]interface{})["text"])
	})

	t.Run("other orders stay separate", func(t *testing.T) {
		w := perform(env.routerFor(env.customer), http.MethodGet, orderPath(quiet, "/messages"), nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decodeResponse(t, w)["data"])
	})

	t.Run("other customer", func(t *testing.T) {
		w := perform(env.routerFor(env.otherCustomer), http.MethodGet, orderPath(orderID, "/messages"), nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := perform(env.routerFor(env.customer), http.MethodGet, "/api/v1/orders/x/messages", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_ID", errorCodeOf(t, w))
	})
}
